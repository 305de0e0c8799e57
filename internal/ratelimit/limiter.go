package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Policy is the pair of parameters a limiter enforces. The limiter holds no
// policy of its own; callers pick one per endpoint.
type Policy struct {
	MaxRequests int
	Window      time.Duration
}

// Common policies.
var (
	LoginPolicy    = Policy{MaxRequests: 5, Window: 15 * time.Minute}
	RegisterPolicy = Policy{MaxRequests: 3, Window: time.Hour}
	JoinPolicy     = Policy{MaxRequests: 3, Window: 5 * time.Minute}
)

// Decision is the outcome of a Check.
type Decision struct {
	Allowed    bool
	Count      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter applies a Policy against a Store.
type Limiter struct {
	store  Store
	policy Policy
	logger *slog.Logger
	now    func() time.Time
}

// New creates a limiter.
func New(store Store, policy Policy, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Policy returns the limiter's policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Key builds the bucket key for a client and route.
func Key(clientAddress, routePath string) string {
	return clientAddress + routePath
}

// Check counts a request from clientAddress to routePath and reports whether
// it may proceed. Rejected requests still count against the window.
//
// Store failures allow the request; the error is logged and also returned
// so callers can record it.
func (l *Limiter) Check(ctx context.Context, clientAddress, routePath string) (Decision, error) {
	key := Key(clientAddress, routePath)

	w, err := l.store.Hit(ctx, key, l.policy.Window)
	if err != nil {
		if l.logger != nil {
			l.logger.Error("rate limit store failed, allowing request", "key", key, "error", err)
		}
		return Decision{Allowed: true, Remaining: l.policy.MaxRequests}, err
	}

	d := Decision{
		Allowed: w.Count <= l.policy.MaxRequests,
		Count:   w.Count,
	}
	if d.Allowed {
		d.Remaining = l.policy.MaxRequests - w.Count
		return d, nil
	}

	d.RetryAfter = w.ResetTime.Sub(l.now())
	if d.RetryAfter < time.Second {
		d.RetryAfter = time.Second
	}
	return d, nil
}
