package processor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/realtime-delivery/internal/domain"
)

// runWorker polls the store on a fixed interval and drives each fetched
// notification to delivered, a scheduled retry, or dead-letter. Store and
// transport errors are logged and never terminate the loop: one bad
// notification must not take the pool down.
func (p *Processor) runWorker(ctx context.Context, id int) {
	logger := p.logger.With(zap.Int("worker_id", id))
	logger.Info("worker started")

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopping", zap.String("reason", "context cancelled"))
			return
		case <-p.stop:
			logger.Info("worker stopping", zap.String("reason", "stop requested"))
			return
		case <-ticker.C:
			p.processBatch(ctx, logger)
		}
	}
}

func (p *Processor) processBatch(ctx context.Context, logger *zap.Logger) {
	batch, err := p.repo.GetPendingBatch(ctx, p.cfg.BatchSize)
	if err != nil {
		logger.Error("poll pending batch failed", zap.Error(err))
		return
	}

	for _, n := range batch {
		// Shutdown is checked per notification, not per batch, so stop
		// latency is bounded by one delivery attempt.
		if p.stopping(ctx) {
			return
		}
		p.processOne(ctx, logger, n)
	}
}

func (p *Processor) processOne(ctx context.Context, logger *zap.Logger, n *domain.Notification) {
	log := logger.With(
		zap.String("notification_id", n.ID),
		zap.String("owner_id", n.OwnerID),
	)

	claimed, err := p.repo.Claim(ctx, n.ID)
	if err != nil {
		log.Error("claim failed", zap.Error(err))
		return
	}
	if claimed == nil {
		// Another worker got there first. Not an error; move on.
		log.Debug("claim lost, skipping")
		return
	}

	start := time.Now()
	if err := p.channel.Deliver(ctx, claimed); err != nil {
		log.Warn("delivery failed",
			zap.Error(err),
			zap.Int("retry_count", claimed.RetryCount),
		)
		p.handleFailure(ctx, log, claimed, err)
		return
	}

	if err := p.repo.MarkDelivered(ctx, claimed.ID); err != nil {
		log.Error("failed to mark delivered", zap.Error(err))
		return
	}

	elapsed := time.Since(start)
	p.hooks.OnDelivered(elapsed)
	log.Info("notification delivered", zap.Duration("latency", elapsed))
}

// handleFailure either schedules a retry or dead-letters the notification.
// n is the freshly claimed row; the attempt being recorded is RetryCount+1,
// and when that reaches the maximum the row goes terminal with the last
// error preserved for audit.
func (p *Processor) handleFailure(ctx context.Context, log *zap.Logger, n *domain.Notification, deliverErr error) {
	attempts := n.RetryCount + 1

	maxRetries := n.MaxRetries
	if maxRetries < 1 {
		maxRetries = p.cfg.MaxRetries
	}

	if attempts >= maxRetries {
		if err := p.repo.MarkFailed(ctx, n.ID, attempts, deliverErr.Error()); err != nil {
			log.Error("failed to dead-letter notification", zap.Error(err))
			return
		}
		p.hooks.OnFailed()
		log.Warn("notification dead-lettered", zap.Int("attempts", attempts))
		return
	}

	nextRetry := time.Now().UTC().Add(p.cfg.RetryInterval)
	if err := p.repo.ScheduleRetry(ctx, n.ID, attempts, nextRetry, deliverErr.Error()); err != nil {
		log.Error("failed to schedule retry", zap.Error(err))
		return
	}
	p.hooks.OnRetried()
	log.Info("retry scheduled",
		zap.Int("attempt", attempts),
		zap.Time("next_retry_at", nextRetry),
	)
}
