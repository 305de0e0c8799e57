// Package domain contains core business types and interfaces.
//
// This file defines waitlist signups and their referral bookkeeping.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReferralCodeLength is the length of generated referral codes.
const ReferralCodeLength = 8

// ReferralCodeAlphabet omits look-alike characters (0/O, 1/I).
const ReferralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Signup is one person on a project's waitlist.
type Signup struct {
	ID            uuid.UUID  `json:"id"`
	ProjectID     uuid.UUID  `json:"project_id"`
	Email         string     `json:"email"`
	Name          string     `json:"name,omitempty"`
	ReferralCode  string     `json:"referral_code"`
	ReferredBy    *uuid.UUID `json:"referred_by,omitempty"`
	ReferralCount int        `json:"referral_count"`
	Position      int        `json:"position"`
	Tier          Tier       `json:"tier"`
	Points        int        `json:"points"`
	Badges        []BadgeID  `json:"badges"`
	VariantID     *uuid.UUID `json:"variant_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Standing returns the persisted gamification fields.
func (s *Signup) Standing() ReferralStanding {
	return ReferralStanding{Tier: s.Tier, Points: s.Points, Badges: s.Badges}
}

// Recompute overwrites the standing from the canonical counters.
func (s *Signup) Recompute() {
	st := CalculateStanding(s.ReferralCount, s.Position)
	s.Tier = st.Tier
	s.Points = st.Points
	s.Badges = st.Badges
}

// NormalizeReferralCode uppercases and trims a user-supplied code.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidReferralCode reports whether code has the generated shape.
func ValidReferralCode(code string) bool {
	if len(code) != ReferralCodeLength {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(ReferralCodeAlphabet, c) {
			return false
		}
	}
	return true
}

// JoinParams contains the parameters for joining a waitlist.
type JoinParams struct {
	ProjectSlug  string     `json:"-"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	ReferralCode string     `json:"referral_code"`
	VariantID    *uuid.UUID `json:"variant_id"`
}

// JoinResult is returned to a new signup.
type JoinResult struct {
	Signup      *Signup `json:"signup"`
	ReferralURL string  `json:"referral_url"`
	Referred    bool    `json:"referred"`
}

// SignupStatus is the public view of a signup looked up by referral code.
type SignupStatus struct {
	ProjectName   string           `json:"project_name"`
	Position      int              `json:"position"`
	TotalSignups  int              `json:"total_signups"`
	ReferralCount int              `json:"referral_count"`
	ReferralCode  string           `json:"referral_code"`
	Standing      ReferralStanding `json:"standing"`
	Badges        []Badge          `json:"badge_details"`
}

// ListSignupsParams contains parameters for listing signups.
type ListSignupsParams struct {
	ProjectID uuid.UUID
	AccountID uuid.UUID
	Limit     int32
	Offset    int32
}

// ListSignupsResult is a page of signups.
type ListSignupsResult struct {
	Signups    []Signup `json:"signups"`
	TotalCount int64    `json:"total_count"`
	Limit      int32    `json:"limit"`
	Offset     int32    `json:"offset"`
}

// HasMore returns true if there are more results after this page.
func (r *ListSignupsResult) HasMore() bool {
	return int64(r.Offset)+int64(len(r.Signups)) < r.TotalCount
}
