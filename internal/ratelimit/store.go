// Package ratelimit implements a fixed-window request counter keyed by
// client address and route.
//
// The counter state lives in a Store that callers construct and pass in,
// so tests get isolated instances and production can swap the in-process
// map for Redis without touching the decision logic.
package ratelimit

import (
	"context"
	"time"
)

// Window is the bookkeeping record backing one fixed-window bucket.
type Window struct {
	Count     int
	ResetTime time.Time
}

// Store records hits against fixed windows.
//
// Hit increments the counter for key and returns the updated window. On the
// first hit for a key, or once now is after the stored ResetTime, the window
// is reinitialized to {Count: 1, ResetTime: now + window}.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration) (Window, error)
}
