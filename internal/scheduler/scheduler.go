// Package scheduler runs periodic maintenance on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/waitlist/internal/metrics"
	"github.com/robfig/cron/v3"
)

// DefaultTaskTimeout bounds a single task run.
const DefaultTaskTimeout = 5 * time.Minute

// Task is one named unit of periodic work.
type Task struct {
	Name     string
	Schedule string // standard five-field cron spec or a descriptor like "@hourly"
	Run      func(ctx context.Context) error
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a scheduler. Panicking tasks are recovered and logged.
func New(logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:    c,
		logger:  logger,
		timeout: DefaultTaskTimeout,
	}
}

// Add registers a task. An invalid schedule is returned as an error.
func (s *Scheduler) Add(task Task) error {
	if _, err := s.cron.AddFunc(task.Schedule, func() { s.runTask(task) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", task.Name, task.Schedule, err)
	}
	s.logger.Info("scheduled task", "task", task.Name, "schedule", task.Schedule)
	return nil
}

// Start starts the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling. The returned context is done once running tasks finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runTask(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := task.Run(ctx)
	metrics.ScheduledTaskRan(task.Name, err)

	if err != nil {
		s.logger.Error("scheduled task failed",
			"task", task.Name,
			"duration", time.Since(start),
			"error", err,
		)
		return
	}
	s.logger.Debug("scheduled task completed", "task", task.Name, "duration", time.Since(start))
}
