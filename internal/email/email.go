// Package email provides email sending for waitlist campaigns.
//
// This package defines an EmailService interface with an SMTP implementation
// that works with Mailhog in development and any SMTP relay in production.
package email

import (
	"context"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EmailService defines the interface for sending waitlist emails.
//
// All methods are context-aware for timeout and cancellation support.
type EmailService interface {
	// SendCampaignEmail delivers one campaign message to one signup.
	SendCampaignEmail(ctx context.Context, msg CampaignMessage) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	HTMLBody string // HTML content of the email
	TextBody string // Plain text fallback content
}

// CampaignMessage is the per-recipient content of a campaign.
type CampaignMessage struct {
	To           string
	ProjectName  string
	Subject      string
	Body         string // plain text written by the project owner
	ReferralCode string // recipient's own code, used for the status link
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

// =============================================================================
// Common Constants
// =============================================================================

const (
	// DefaultFromEmail is the default sender email for campaign emails.
	DefaultFromEmail = "noreply@waitlist.local"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Waitlist"
)
