// Package domain contains core business types and interfaces.
//
// This file defines A/B test variants and the deterministic bucketing of a
// visitor session into one of them.
package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TrafficTotal is the sum variant weights are expected (not required) to reach.
const TrafficTotal = 100

// Variant is one treatment in a project's A/B test.
type Variant struct {
	ID          uuid.UUID       `json:"id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	Name        string          `json:"name"`
	Traffic     int             `json:"traffic"` // integer percentage 0-100
	Position    int             `json:"position"`
	Headline    string          `json:"headline,omitempty"`
	Description string          `json:"description,omitempty"`
	CTAText     string          `json:"cta_text,omitempty"`
	Overrides   json.RawMessage `json:"overrides,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Assignment is the outcome of SelectVariant.
type Assignment struct {
	Variant  Variant
	Bucket   int  // percentage in [0,100) derived from the session id
	Fallback bool // no cumulative weight exceeded Bucket; first variant returned
	OK       bool // false only when there were no variants at all
}

// SessionBucket hashes sessionID into [0,100). The first four bytes of the
// SHA-256 digest are read as a big-endian integer and reduced modulo 100.
func SessionBucket(sessionID string) int {
	sum := sha256.Sum256([]byte(sessionID))
	return int(binary.BigEndian.Uint32(sum[:4]) % TrafficTotal)
}

// SelectVariant deterministically picks a variant for a session. The same
// session always lands in the same variant while the variant list is unchanged.
//
// Weights are not validated. When they sum to less than the bucket, the first
// variant is returned with Fallback set so callers can log or count it.
func SelectVariant(variants []Variant, sessionID string) Assignment {
	bucket := SessionBucket(sessionID)
	if len(variants) == 0 {
		return Assignment{Bucket: bucket}
	}

	cumulative := 0
	for _, v := range variants {
		cumulative += v.Traffic
		if cumulative > bucket {
			return Assignment{Variant: v, Bucket: bucket, OK: true}
		}
	}

	return Assignment{Variant: variants[0], Bucket: bucket, Fallback: true, OK: true}
}

// ValidateTraffic returns the sum of all weights and whether it equals 100.
// A false result is a warning for the project owner, not an error.
func ValidateTraffic(variants []Variant) (int, bool) {
	total := 0
	for _, v := range variants {
		total += v.Traffic
	}
	return total, total == TrafficTotal
}

// VariantStats aggregates exposure and conversion for one variant.
type VariantStats struct {
	VariantID   uuid.UUID `json:"variant_id"`
	Name        string    `json:"name"`
	Traffic     int       `json:"traffic"`
	Views       int64     `json:"views"`
	Conversions int64     `json:"conversions"`
}

// ConversionRate returns conversions/views, or 0 with no views.
func (s VariantStats) ConversionRate() float64 {
	if s.Views == 0 {
		return 0
	}
	return float64(s.Conversions) / float64(s.Views)
}
