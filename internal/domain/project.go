// Package domain contains core business types and interfaces.
//
// This file defines branded waitlist projects.
package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxProjectNameLength bounds project names.
const MaxProjectNameLength = 100

var (
	hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	slugStrip       = regexp.MustCompile(`[^a-z0-9]+`)
)

// Project is a branded waitlist owned by an account.
type Project struct {
	ID               uuid.UUID `json:"id"`
	AccountID        uuid.UUID `json:"account_id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	Description      string    `json:"description,omitempty"`
	LogoURL          string    `json:"logo_url,omitempty"`
	PrimaryColor     string    `json:"primary_color"`
	ABTestingEnabled bool      `json:"ab_testing_enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DefaultPrimaryColor is used when a project has no brand color.
const DefaultPrimaryColor = "#4F46E5"

// IsOwnedBy reports whether accountID owns the project.
func (p *Project) IsOwnedBy(accountID uuid.UUID) bool {
	return p.AccountID == accountID
}

// Slugify lowercases name and collapses every run of non-alphanumerics into one dash.
func Slugify(name string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}

// ValidHexColor reports whether c looks like #RRGGBB.
func ValidHexColor(c string) bool {
	return hexColorPattern.MatchString(c)
}

// CreateProjectParams contains the parameters for creating a project.
type CreateProjectParams struct {
	AccountID    uuid.UUID `json:"-"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	PrimaryColor string    `json:"primary_color"`
}

// UpdateProjectParams contains the parameters for updating a project.
type UpdateProjectParams struct {
	ID               uuid.UUID `json:"-"`
	AccountID        uuid.UUID `json:"-"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	PrimaryColor     string    `json:"primary_color"`
	ABTestingEnabled bool      `json:"ab_testing_enabled"`
}

// VariantInput is one entry of a SetVariants request. An entry with an ID
// edits that variant in place and keeps its exposures and conversions; an
// entry without one creates a new variant.
type VariantInput struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Name        string     `json:"name"`
	Traffic     int        `json:"traffic"`
	Headline    string     `json:"headline"`
	Description string     `json:"description"`
	CTAText     string     `json:"cta_text"`
}

// SetVariantsResult reports the saved variants and any traffic warning.
type SetVariantsResult struct {
	Variants     []Variant `json:"variants"`
	TrafficTotal int       `json:"traffic_total"`
	Warning      string    `json:"warning,omitempty"`
}
