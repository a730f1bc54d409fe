package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by all delivery workers. It caps the
// aggregate delivery rate so a large backlog drains without hammering
// downstream transports after an outage.
// Burst equals the rate: no "saved up" burst above the per-second maximum.
type Limiter struct {
	bucket *rate.Limiter
}

// New creates a Limiter granting ratePerSec tokens per second.
func New(ratePerSec int) *Limiter {
	if ratePerSec <= 0 {
		ratePerSec = 100
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)}
}

// Wait blocks until a token is granted. Returns a non-nil error only if ctx
// is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.bucket.Wait(ctx)
}
