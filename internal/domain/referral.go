// Package domain contains core business types and interfaces.
//
// This file defines referral gamification: the tier, point total and badge set
// derived from a waitlist signup's referral count and position. Standings are
// always derived from canonical counters and overwritten, never incremented.
package domain

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tier is a referral-count-derived status label.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Tier thresholds (inclusive lower bounds on referral count).
const (
	SilverThreshold   = 5
	GoldThreshold     = 10
	PlatinumThreshold = 25
)

// Point formula constants.
const (
	BasePoints         = 10
	PointsPerReferral  = 50
	EarlyBirdCutoff    = 100
	EarlyBirdMaxPoints = 100
)

var tierRank = map[Tier]int{
	TierBronze:   0,
	TierSilver:   1,
	TierGold:     2,
	TierPlatinum: 3,
}

// ParseTier converts a stored string into a Tier, rejecting unknown values.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if _, ok := tierRank[t]; !ok {
		return "", Invalid("domain.ParseTier", fmt.Sprintf("unknown tier %q", s))
	}
	return t, nil
}

// Rank orders tiers bronze < silver < gold < platinum.
func (t Tier) Rank() int {
	return tierRank[t]
}

// DisplayName returns the tier name in title case.
func (t Tier) DisplayName() string {
	return cases.Title(language.English).String(string(t))
}

// BadgeID identifies a static achievement marker.
type BadgeID string

const (
	BadgeEarlyBird       BadgeID = "early_bird"
	BadgeFirstReferral   BadgeID = "first_referral"
	BadgeInfluencer      BadgeID = "influencer"
	BadgeSuperInfluencer BadgeID = "super_influencer"
	BadgeLegend          BadgeID = "legend"
)

// Badge is static reference data describing a BadgeID.
type Badge struct {
	ID          BadgeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

// badgeCatalog is ordered; AwardBadges returns ids in this order.
var badgeCatalog = []Badge{
	{ID: BadgeEarlyBird, Name: "Early Bird", Description: "Joined within the first 100 signups", Icon: "🐦"},
	{ID: BadgeFirstReferral, Name: "First Referral", Description: "Referred your first friend", Icon: "🤝"},
	{ID: BadgeInfluencer, Name: "Influencer", Description: "Referred 5 friends", Icon: "⭐"},
	{ID: BadgeSuperInfluencer, Name: "Super Influencer", Description: "Referred 10 friends", Icon: "🌟"},
	{ID: BadgeLegend, Name: "Legend", Description: "Referred 25 friends", Icon: "👑"},
}

// Badges returns a copy of the badge catalog.
func Badges() []Badge {
	out := make([]Badge, len(badgeCatalog))
	copy(out, badgeCatalog)
	return out
}

// LookupBadge returns the catalog entry for id.
func LookupBadge(id BadgeID) (Badge, bool) {
	for _, b := range badgeCatalog {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// ParseBadgeID converts a stored string into a BadgeID, rejecting unknown values.
func ParseBadgeID(s string) (BadgeID, error) {
	if _, ok := LookupBadge(BadgeID(s)); !ok {
		return "", Invalid("domain.ParseBadgeID", fmt.Sprintf("unknown badge %q", s))
	}
	return BadgeID(s), nil
}

// ReferralStanding is the derived gamification state of one signup.
type ReferralStanding struct {
	Tier   Tier      `json:"tier"`
	Points int       `json:"points"`
	Badges []BadgeID `json:"badges"`
}

// HasBadge reports whether the standing includes id.
func (s ReferralStanding) HasBadge(id BadgeID) bool {
	for _, b := range s.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// CalculateTier maps a referral count to its tier.
func CalculateTier(referralCount int) Tier {
	switch {
	case referralCount >= PlatinumThreshold:
		return TierPlatinum
	case referralCount >= GoldThreshold:
		return TierGold
	case referralCount >= SilverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// CalculatePoints returns base points plus the referral and early-bird bonuses.
// Negative referral counts contribute nothing.
func CalculatePoints(referralCount, position int) int {
	if referralCount < 0 {
		referralCount = 0
	}
	earlyBird := EarlyBirdMaxPoints - position
	if earlyBird < 0 {
		earlyBird = 0
	}
	return BasePoints + referralCount*PointsPerReferral + earlyBird
}

// AwardBadges returns every badge whose threshold the inputs clear.
func AwardBadges(referralCount, position int) []BadgeID {
	badges := make([]BadgeID, 0, len(badgeCatalog))
	if position <= EarlyBirdCutoff {
		badges = append(badges, BadgeEarlyBird)
	}
	if referralCount >= 1 {
		badges = append(badges, BadgeFirstReferral)
	}
	if referralCount >= SilverThreshold {
		badges = append(badges, BadgeInfluencer)
	}
	if referralCount >= GoldThreshold {
		badges = append(badges, BadgeSuperInfluencer)
	}
	if referralCount >= PlatinumThreshold {
		badges = append(badges, BadgeLegend)
	}
	return badges
}

// CalculateStanding derives the full standing. It is pure: equal inputs give equal output.
func CalculateStanding(referralCount, position int) ReferralStanding {
	return ReferralStanding{
		Tier:   CalculateTier(referralCount),
		Points: CalculatePoints(referralCount, position),
		Badges: AwardBadges(referralCount, position),
	}
}
