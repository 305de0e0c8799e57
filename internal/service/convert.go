package service

import (
	"encoding/json"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/repository"
)

// =============================================================================
// Repository -> Domain Conversions
// =============================================================================

// accountFromRepo converts a repository.Account to domain.Account.
// Unknown tier or status strings fall back to free/expired so a corrupt row
// can never grant more than the free plan.
func accountFromRepo(a repository.Account) *domain.Account {
	tier, err := domain.ParsePlanTier(a.PlanTier)
	if err != nil {
		tier = domain.PlanFree
	}
	status, err := domain.ParseSubscriptionStatus(a.SubscriptionStatus)
	if err != nil {
		status = domain.SubscriptionExpired
	}

	return &domain.Account{
		ID:           a.ID,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Name:         a.Name,
		Subscription: domain.Subscription{
			Tier:             tier,
			Status:           status,
			EndDate:          domain.NullTimeValue(a.SubscriptionEndDate),
			StripeCustomerID: domain.NullStringValue(a.StripeCustomerID),
			StripeSubID:      domain.NullStringValue(a.StripeSubscriptionID),
		},
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func projectFromRepo(p repository.Project) *domain.Project {
	return &domain.Project{
		ID:               p.ID,
		AccountID:        p.AccountID,
		Name:             p.Name,
		Slug:             p.Slug,
		Description:      domain.NullStringValue(p.Description),
		LogoURL:          domain.NullStringValue(p.LogoURL),
		PrimaryColor:     p.PrimaryColor,
		ABTestingEnabled: p.AbTestingEnabled,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func variantFromRepo(v repository.Variant) domain.Variant {
	var overrides json.RawMessage
	if v.Overrides.Valid {
		overrides = v.Overrides.RawMessage
	}
	return domain.Variant{
		ID:          v.ID,
		ProjectID:   v.ProjectID,
		Name:        v.Name,
		Traffic:     int(v.Traffic),
		Position:    int(v.Position),
		Headline:    domain.NullStringValue(v.Headline),
		Description: domain.NullStringValue(v.Description),
		CTAText:     domain.NullStringValue(v.CtaText),
		Overrides:   overrides,
		CreatedAt:   v.CreatedAt,
	}
}

func variantsFromRepo(rows []repository.Variant) []domain.Variant {
	out := make([]domain.Variant, 0, len(rows))
	for _, v := range rows {
		out = append(out, variantFromRepo(v))
	}
	return out
}

// signupFromRepo converts a repository.Signup to domain.Signup. A stored
// standing with an unknown tier or badge is re-derived from the counters.
func signupFromRepo(s repository.Signup) *domain.Signup {
	out := &domain.Signup{
		ID:            s.ID,
		ProjectID:     s.ProjectID,
		Email:         s.Email,
		Name:          domain.NullStringValue(s.Name),
		ReferralCode:  s.ReferralCode,
		ReferralCount: int(s.ReferralCount),
		Position:      int(s.Position),
		CreatedAt:     s.CreatedAt,
	}
	if s.ReferredBy.Valid {
		id := s.ReferredBy.UUID
		out.ReferredBy = &id
	}
	if s.VariantID.Valid {
		id := s.VariantID.UUID
		out.VariantID = &id
	}

	tier, err := domain.ParseTier(s.Tier)
	badges := make([]domain.BadgeID, 0, len(s.Badges))
	for _, b := range s.Badges {
		id, berr := domain.ParseBadgeID(b)
		if berr != nil {
			err = berr
			break
		}
		badges = append(badges, id)
	}
	if err != nil {
		out.Recompute()
		return out
	}
	out.Tier = tier
	out.Points = int(s.Points)
	out.Badges = badges
	return out
}

func campaignFromRepo(c repository.Campaign) *domain.Campaign {
	return &domain.Campaign{
		ID:          c.ID,
		ProjectID:   c.ProjectID,
		Subject:     c.Subject,
		Body:        c.Body,
		Status:      domain.CampaignStatus(c.Status),
		SentCount:   int(c.SentCount),
		FailedCount: int(c.FailedCount),
		SentAt:      domain.NullTimeValue(c.SentAt),
		CreatedAt:   c.CreatedAt,
	}
}

// badgeStrings converts badge ids for storage in a text[] column.
func badgeStrings(badges []domain.BadgeID) []string {
	out := make([]string, len(badges))
	for i, b := range badges {
		out[i] = string(b)
	}
	return out
}

func exportFromRepo(e repository.Export) *domain.Export {
	return &domain.Export{
		ID:        e.ID,
		ProjectID: e.ProjectID,
		Status:    e.Status,
		RowCount:  int(e.RowCount),
		Completed: domain.NullTimeValue(e.CompletedAt),
		CreatedAt: e.CreatedAt,
	}
}
