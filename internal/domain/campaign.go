// Package domain contains core business types and interfaces.
//
// This file defines email campaigns sent to a project's waitlist.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus is the delivery state of a campaign.
type CampaignStatus string

const (
	CampaignDraft   CampaignStatus = "draft"
	CampaignQueued  CampaignStatus = "queued"
	CampaignSending CampaignStatus = "sending"
	CampaignSent    CampaignStatus = "sent"
	CampaignFailed  CampaignStatus = "failed"
)

// DeliveryStatus is the outcome of sending a campaign to one signup.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// MaxCampaignSubjectLength bounds subject lines.
const MaxCampaignSubjectLength = 200

// CanTransitionTo checks if a campaign can move to target.
//
// Valid transitions:
// - draft -> queued (send requested)
// - queued -> sending (worker picked it up)
// - sending -> sent | failed
// - failed -> queued (retry)
func (s CampaignStatus) CanTransitionTo(target CampaignStatus) bool {
	switch s {
	case CampaignDraft:
		return target == CampaignQueued
	case CampaignQueued:
		return target == CampaignSending
	case CampaignSending:
		return target == CampaignSent || target == CampaignFailed
	case CampaignFailed:
		return target == CampaignQueued
	}
	return false
}

// Campaign is an email blast to every signup of a project.
type Campaign struct {
	ID          uuid.UUID      `json:"id"`
	ProjectID   uuid.UUID      `json:"project_id"`
	Subject     string         `json:"subject"`
	Body        string         `json:"body"`
	Status      CampaignStatus `json:"status"`
	SentCount   int            `json:"sent_count"`
	FailedCount int            `json:"failed_count"`
	SentAt      *time.Time     `json:"sent_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TransitionTo moves the campaign to target or returns an error, leaving it unchanged.
func (c *Campaign) TransitionTo(target CampaignStatus) error {
	if !c.Status.CanTransitionTo(target) {
		return Invalid("Campaign.TransitionTo",
			fmt.Sprintf("cannot transition campaign from %s to %s", c.Status, target))
	}
	c.Status = target
	return nil
}

// CreateCampaignParams contains the parameters for creating a campaign.
type CreateCampaignParams struct {
	ProjectID uuid.UUID `json:"-"`
	AccountID uuid.UUID `json:"-"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
}

// Export is a CSV snapshot of a project's signups.
type Export struct {
	ID        uuid.UUID  `json:"id"`
	ProjectID uuid.UUID  `json:"project_id"`
	Status    string     `json:"status"`
	URL       string     `json:"url,omitempty"`
	RowCount  int        `json:"row_count"`
	Completed *time.Time `json:"completed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Export statuses.
const (
	ExportPending   = "pending"
	ExportCompleted = "completed"
	ExportFailed    = "failed"
)
