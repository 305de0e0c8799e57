// Package domain contains core business types and interfaces.
//
// This file defines plan limits and the subscription eligibility gate. The gate
// has two layers: an activity check (active, or within the grace period after
// endDate) followed by a quantity check against the plan's limits.
package domain

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PlanTier represents the pricing tier of an account's subscription.
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// ParsePlanTier converts a stored string into a PlanTier, rejecting unknown values.
func ParsePlanTier(s string) (PlanTier, error) {
	switch PlanTier(s) {
	case PlanFree, PlanPro, PlanEnterprise:
		return PlanTier(s), nil
	}
	return "", Invalid("domain.ParsePlanTier", fmt.Sprintf("unknown plan tier %q", s))
}

// DisplayName returns the plan name in title case.
func (t PlanTier) DisplayName() string {
	return cases.Title(language.English).String(string(t))
}

// SubscriptionStatus represents the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// ParseSubscriptionStatus converts a stored string into a SubscriptionStatus.
func ParseSubscriptionStatus(s string) (SubscriptionStatus, error) {
	switch SubscriptionStatus(s) {
	case SubscriptionActive, SubscriptionExpired, SubscriptionCancelled:
		return SubscriptionStatus(s), nil
	}
	return "", Invalid("domain.ParseSubscriptionStatus", fmt.Sprintf("unknown subscription status %q", s))
}

// Unlimited marks a plan limit with no ceiling.
const Unlimited = -1

// GracePeriodDays is how long a lapsed subscription stays usable after its end date.
const GracePeriodDays = 10

// GracePeriod is GracePeriodDays as a duration.
const GracePeriod = GracePeriodDays * 24 * time.Hour

// PlanLimits caps what an account may own on a given plan.
type PlanLimits struct {
	MaxProjects      int `json:"max_projects"`
	MaxWaitlistUsers int `json:"max_waitlist_users"`
}

// Plan describes a purchasable tier.
type Plan struct {
	Tier       PlanTier   `json:"tier"`
	Name       string     `json:"name"`
	PriceCents int64      `json:"price_cents"`
	Limits     PlanLimits `json:"limits"`
}

// plans maps each tier to its fixed record.
var plans = map[PlanTier]Plan{
	PlanFree: {
		Tier:   PlanFree,
		Name:   "Free",
		Limits: PlanLimits{MaxProjects: 3, MaxWaitlistUsers: 100},
	},
	PlanPro: {
		Tier:       PlanPro,
		Name:       "Pro",
		PriceCents: 2900,
		Limits:     PlanLimits{MaxProjects: 20, MaxWaitlistUsers: 10000},
	},
	PlanEnterprise: {
		Tier:       PlanEnterprise,
		Name:       "Enterprise",
		PriceCents: 9900,
		Limits:     PlanLimits{MaxProjects: Unlimited, MaxWaitlistUsers: Unlimited},
	},
}

// Plans returns every plan ordered from cheapest to most expensive.
func Plans() []Plan {
	return []Plan{plans[PlanFree], plans[PlanPro], plans[PlanEnterprise]}
}

// GetPlanLimits returns the limits for a tier, defaulting to free for unknown tiers.
func GetPlanLimits(tier PlanTier) PlanLimits {
	if p, ok := plans[tier]; ok {
		return p.Limits
	}
	return plans[PlanFree].Limits
}

// =============================================================================
// Grace Period Arithmetic
// =============================================================================

// GraceDeadline is the last instant a lapsed subscription remains usable.
// All grace computations go through this helper.
func GraceDeadline(endDate time.Time) time.Time {
	return endDate.Add(GracePeriod)
}

// IsSubscriptionActive reports whether the account may use the product at all.
// An active status always passes; otherwise now must be at or before endDate + grace.
func IsSubscriptionActive(status SubscriptionStatus, endDate *time.Time, now time.Time) bool {
	if status == SubscriptionActive {
		return true
	}
	if endDate == nil {
		return false
	}
	return !now.After(GraceDeadline(*endDate))
}

// IsInGracePeriod reports whether a non-active subscription is past its end date
// but still inside the grace window.
func IsInGracePeriod(status SubscriptionStatus, endDate *time.Time, now time.Time) bool {
	if status == SubscriptionActive || endDate == nil {
		return false
	}
	return now.After(*endDate) && !now.After(GraceDeadline(*endDate))
}

// DaysLeftInGrace returns whole days (rounded up) until the grace deadline, never negative.
func DaysLeftInGrace(endDate *time.Time, now time.Time) int {
	if endDate == nil {
		return 0
	}
	remaining := GraceDeadline(*endDate).Sub(now)
	if remaining <= 0 {
		return 0
	}
	day := 24 * time.Hour
	return int((remaining + day - 1) / day)
}

// =============================================================================
// Quantity Gate
// =============================================================================

// withinLimit reports whether one more item fits. currentCount is the count
// before the new item is added.
func withinLimit(limit, currentCount int) bool {
	if limit == Unlimited {
		return true
	}
	return currentCount < limit
}

// CanCreateProject reports whether an account may create another project.
func CanCreateProject(tier PlanTier, currentCount int, status SubscriptionStatus, endDate *time.Time, now time.Time) bool {
	if !IsSubscriptionActive(status, endDate, now) {
		return false
	}
	return withinLimit(GetPlanLimits(tier).MaxProjects, currentCount)
}

// CanAddWaitlistUser reports whether a project owner's account may accept another signup.
func CanAddWaitlistUser(tier PlanTier, currentCount int, status SubscriptionStatus, endDate *time.Time, now time.Time) bool {
	if !IsSubscriptionActive(status, endDate, now) {
		return false
	}
	return withinLimit(GetPlanLimits(tier).MaxWaitlistUsers, currentCount)
}

// =============================================================================
// Subscription Value Type
// =============================================================================

// Subscription is the billing state attached to an account. It is created as
// free/active at registration and only ever mutated afterwards.
type Subscription struct {
	Tier             PlanTier           `json:"tier"`
	Status           SubscriptionStatus `json:"status"`
	EndDate          *time.Time         `json:"end_date,omitempty"`
	StripeCustomerID string             `json:"-"`
	StripeSubID      string             `json:"-"`
}

// NewFreeSubscription returns the state every account starts with.
func NewFreeSubscription() Subscription {
	return Subscription{Tier: PlanFree, Status: SubscriptionActive}
}

// Limits returns the plan limits for the subscription's tier.
func (s Subscription) Limits() PlanLimits {
	return GetPlanLimits(s.Tier)
}

// IsActive reports whether the subscription is usable at now.
func (s Subscription) IsActive(now time.Time) bool {
	return IsSubscriptionActive(s.Status, s.EndDate, now)
}

// InGracePeriod reports whether the subscription is lapsed but still usable.
func (s Subscription) InGracePeriod(now time.Time) bool {
	return IsInGracePeriod(s.Status, s.EndDate, now)
}

// DaysLeftInGrace returns the remaining grace days at now.
func (s Subscription) DaysLeftInGrace(now time.Time) int {
	return DaysLeftInGrace(s.EndDate, now)
}

// CanCreateProject applies the project gate to this subscription.
func (s Subscription) CanCreateProject(currentCount int, now time.Time) bool {
	return CanCreateProject(s.Tier, currentCount, s.Status, s.EndDate, now)
}

// CanAddWaitlistUser applies the signup gate to this subscription.
func (s Subscription) CanAddWaitlistUser(currentCount int, now time.Time) bool {
	return CanAddWaitlistUser(s.Tier, currentCount, s.Status, s.EndDate, now)
}

// ApplyPayment records a confirmed payment: tier set, status active, end date advanced.
func (s *Subscription) ApplyPayment(tier PlanTier, periodEnd time.Time) {
	s.Tier = tier
	s.Status = SubscriptionActive
	end := periodEnd
	s.EndDate = &end
}

// Cancel marks the subscription cancelled. The end date is kept so grace still applies.
func (s *Subscription) Cancel() {
	s.Status = SubscriptionCancelled
}

// Expire marks an active subscription whose end date has passed as expired.
// It returns true if the state changed.
func (s *Subscription) Expire(now time.Time) bool {
	if s.Status != SubscriptionActive || s.EndDate == nil || !now.After(*s.EndDate) {
		return false
	}
	s.Status = SubscriptionExpired
	return true
}

// UsageSummary reports plan consumption for display.
type UsageSummary struct {
	Subscription     Subscription `json:"subscription"`
	Limits           PlanLimits   `json:"limits"`
	ProjectsUsed     int          `json:"projects_used"`
	Active           bool         `json:"active"`
	InGracePeriod    bool         `json:"in_grace_period"`
	GraceDaysLeft    int          `json:"grace_days_left"`
	CanCreateProject bool         `json:"can_create_project"`
}
