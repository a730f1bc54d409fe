package processor

import "time"

// Config tunes the worker pool and retry scheduler.
type Config struct {
	Workers       int
	BatchSize     int
	PollInterval  time.Duration
	RetryInterval time.Duration
	MaxRetries    int
}

// Normalize corrects invalid values to safe defaults. These are internal
// tuning knobs, not user input, so a bad value is fixed rather than fatal.
func (c Config) Normalize() Config {
	if c.Workers < 1 {
		c.Workers = 5
	}
	if c.BatchSize < 1 {
		c.BatchSize = 10
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 30 * time.Second
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 3
	}
	return c
}

// claimTimeout is how long a claim may sit at status=processing before the
// scheduler assumes the owning worker died and requeues the row.
func (c Config) claimTimeout() time.Duration {
	return 5 * c.PollInterval
}
