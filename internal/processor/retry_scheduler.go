package processor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// schedulerBatchLimit bounds one scheduler pass so a huge backlog cannot
// starve the tick loop.
const schedulerBatchLimit = 500

// runRetryScheduler requeues notifications whose next_retry_at has elapsed,
// and rescues rows stuck at processing past the claim timeout (worker crash
// between claim and status update). It only ever flips rows back to plain
// pending — dispatching is exclusively the workers' job.
func (p *Processor) runRetryScheduler(ctx context.Context) {
	logger := p.logger.With(zap.String("component", "retry_scheduler"))
	logger.Info("retry scheduler started", zap.Duration("interval", p.cfg.RetryInterval))

	ticker := time.NewTicker(p.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("retry scheduler stopping")
			return
		case <-p.stop:
			logger.Info("retry scheduler stopping")
			return
		case <-ticker.C:
			p.requeueDueRetries(ctx, logger)
			p.requeueStuckClaims(ctx, logger)
		}
	}
}

func (p *Processor) requeueDueRetries(ctx context.Context, logger *zap.Logger) {
	due, err := p.repo.GetRetryable(ctx, schedulerBatchLimit)
	if err != nil {
		logger.Error("retry poll failed", zap.Error(err))
		return
	}

	for _, n := range due {
		if err := p.repo.Requeue(ctx, n.ID); err != nil {
			logger.Error("failed to requeue retry",
				zap.String("notification_id", n.ID), zap.Error(err))
		}
	}

	if len(due) > 0 {
		logger.Info("requeued due retries", zap.Int("count", len(due)))
	}
}

func (p *Processor) requeueStuckClaims(ctx context.Context, logger *zap.Logger) {
	cutoff := time.Now().Add(-p.cfg.claimTimeout())
	stuck, err := p.repo.GetStuckProcessing(ctx, cutoff, schedulerBatchLimit)
	if err != nil {
		logger.Error("stuck-claim poll failed", zap.Error(err))
		return
	}

	for _, n := range stuck {
		if err := p.repo.Requeue(ctx, n.ID); err != nil {
			logger.Error("failed to requeue stuck claim",
				zap.String("notification_id", n.ID), zap.Error(err))
			continue
		}
		logger.Warn("requeued stuck claim",
			zap.String("notification_id", n.ID),
			zap.Timep("claimed_at", n.ClaimedAt),
		)
	}
}
