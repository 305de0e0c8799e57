package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Task names, also used as the metrics label.
const (
	TaskExpireSubscriptions = "expire_subscriptions"
	TaskCleanupSessions     = "cleanup_sessions"
	TaskSweepRateLimits     = "sweep_rate_limits"
)

// SubscriptionExpirer is satisfied by service.SubscriptionService.
type SubscriptionExpirer interface {
	ExpireLapsed(ctx context.Context) (int64, error)
}

// SessionCleaner is satisfied by service.AccountService.
type SessionCleaner interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// WindowSweeper is satisfied by ratelimit.MemoryStore.
type WindowSweeper interface {
	Sweep(now time.Time) int
}

// ExpireSubscriptionsTask moves lapsed subscriptions to expired. Their grace
// period still applies afterwards.
func ExpireSubscriptionsTask(schedule string, subs SubscriptionExpirer, logger *slog.Logger) Task {
	return Task{
		Name:     TaskExpireSubscriptions,
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			n, err := subs.ExpireLapsed(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("expired lapsed subscriptions", "count", n)
			}
			return nil
		},
	}
}

// CleanupSessionsTask deletes expired account sessions.
func CleanupSessionsTask(schedule string, sessions SessionCleaner, logger *slog.Logger) Task {
	return Task{
		Name:     TaskCleanupSessions,
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			n, err := sessions.DeleteExpiredSessions(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("deleted expired sessions", "count", n)
			}
			return nil
		},
	}
}

// SweepRateLimitsTask evicts finished windows from an in-memory limiter store.
func SweepRateLimitsTask(schedule string, store WindowSweeper, logger *slog.Logger) Task {
	return Task{
		Name:     TaskSweepRateLimits,
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			if n := store.Sweep(time.Now()); n > 0 {
				logger.Debug("rate limit windows evicted", "count", n)
			}
			return nil
		},
	}
}
