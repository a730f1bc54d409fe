package delivery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/notifyhub/realtime-delivery/internal/domain"
	"github.com/notifyhub/realtime-delivery/internal/ratelimiter"
)

// Dispatcher fans one notification out to every configured channel, behind a
// shared rate limiter. It implements Channel itself, so the processor stays
// unaware of how many transports are active.
//
// A failure on any channel fails the whole attempt; the retry then repeats
// every channel. Hub push is idempotent from the client's point of view
// (clients key on notification ID), so the at-least-once semantics hold.
type Dispatcher struct {
	channels []Channel
	limiter  *ratelimiter.Limiter
	logger   *zap.Logger
}

func NewDispatcher(channels []Channel, limiter *ratelimiter.Limiter, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{channels: channels, limiter: limiter, logger: logger}
}

func (d *Dispatcher) Name() string { return "dispatcher" }

func (d *Dispatcher) Deliver(ctx context.Context, n *domain.Notification) error {
	if err := d.limiter.Wait(ctx); err != nil {
		// ctx cancelled while waiting for a token — shutting down.
		return err
	}

	for _, ch := range d.channels {
		if err := ch.Deliver(ctx, n); err != nil {
			return fmt.Errorf("%s: %w", ch.Name(), err)
		}
	}
	return nil
}

var _ Channel = (*Dispatcher)(nil)
