package worker

import (
	"errors"
	"fmt"
	"time"
)

// Config controls the job worker. Campaign sends dominate job duration, so
// JobTimeout must cover mailing a full waitlist.
type Config struct {
	Concurrency       int           // polling goroutines
	PollInterval      time.Duration // idle wait between polls
	JobTimeout        time.Duration // per-job context deadline
	ShutdownTimeout   time.Duration // wait for in-flight jobs on Stop
	StaleJobThreshold time.Duration // running jobs older than this are reset on Start
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      5 * time.Second,
		JobTimeout:        5 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

const maxConcurrency = 100

// Validate reports every out-of-range setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 || c.Concurrency > maxConcurrency {
		errs = append(errs, fmt.Errorf("concurrency must be between 1 and %d, got %d", maxConcurrency, c.Concurrency))
	}
	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("poll interval must be at least 1s, got %v", c.PollInterval))
	}
	if c.JobTimeout < time.Second {
		errs = append(errs, fmt.Errorf("job timeout must be at least 1s, got %v", c.JobTimeout))
	}
	if c.ShutdownTimeout < time.Second {
		errs = append(errs, fmt.Errorf("shutdown timeout must be at least 1s, got %v", c.ShutdownTimeout))
	}
	if c.StaleJobThreshold < time.Minute {
		errs = append(errs, fmt.Errorf("stale job threshold must be at least 1m, got %v", c.StaleJobThreshold))
	}
	return errors.Join(errs...)
}
