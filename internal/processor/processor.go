// Package processor drains the durable notification backlog: a bounded pool
// of poller workers claims pending rows one at a time and hands them to the
// delivery channel, and a single retry scheduler requeues rows whose retry
// time has come. Claims are compare-and-set on the store, so no two workers
// — in this process or any other sharing the store — ever dispatch the same
// notification concurrently.
package processor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/realtime-delivery/internal/delivery"
	"github.com/notifyhub/realtime-delivery/internal/domain"
	"github.com/notifyhub/realtime-delivery/internal/repository"
)

// Hooks carries optional metric callbacks injected by main.
type Hooks struct {
	OnDelivered func(latency time.Duration)
	OnRetried   func()
	OnFailed    func()
}

// Stats is the processor's introspection snapshot.
type Stats struct {
	Running       bool          `json:"running"`
	Workers       int           `json:"workers"`
	BatchSize     int           `json:"batch_size"`
	PollInterval  time.Duration `json:"poll_interval"`
	RetryInterval time.Duration `json:"retry_interval"`
	MaxRetries    int           `json:"max_retries"`
	Pending       int           `json:"pending"`
	Processing    int           `json:"processing"`
	Delivered     int           `json:"delivered"`
	Failed        int           `json:"failed"`
}

// Processor owns the worker pool and the retry scheduler.
type Processor struct {
	cfg     Config
	repo    repository.NotificationRepository
	channel delivery.Channel
	hooks   Hooks
	logger  *zap.Logger

	mu       sync.Mutex
	running  bool
	draining bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(cfg Config, repo repository.NotificationRepository, channel delivery.Channel, hooks Hooks, logger *zap.Logger) *Processor {
	if hooks.OnDelivered == nil {
		hooks.OnDelivered = func(time.Duration) {}
	}
	if hooks.OnRetried == nil {
		hooks.OnRetried = func() {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func() {}
	}
	return &Processor{
		cfg:     cfg.Normalize(),
		repo:    repo,
		channel: channel,
		hooks:   hooks,
		logger:  logger,
	}
}

// Start launches the worker pool and the retry scheduler. Every goroutine
// honors both the supplied ctx and the internal stop signal — whichever
// fires first wins. Starting an already-running processor is rejected.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return domain.ErrAlreadyRunning
	}
	p.running = true
	p.stop = make(chan struct{})

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runRetryScheduler(ctx)
	}()

	p.logger.Info("queue processor started",
		zap.Int("workers", p.cfg.Workers),
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Duration("poll_interval", p.cfg.PollInterval),
		zap.Duration("retry_interval", p.cfg.RetryInterval),
		zap.Int("max_retries", p.cfg.MaxRetries),
	)
	return nil
}

// Stop signals every goroutine and blocks until all have drained.
// Stopping a processor that is not running is rejected.
func (p *Processor) Stop() error {
	p.mu.Lock()
	if !p.running || p.draining {
		p.mu.Unlock()
		return domain.ErrNotRunning
	}
	p.draining = true
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.draining = false
	p.mu.Unlock()

	p.logger.Info("queue processor stopped")
	return nil
}

func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// GetStats combines store-side status counts with runtime configuration.
func (p *Processor) GetStats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Running:       p.IsRunning(),
		Workers:       p.cfg.Workers,
		BatchSize:     p.cfg.BatchSize,
		PollInterval:  p.cfg.PollInterval,
		RetryInterval: p.cfg.RetryInterval,
		MaxRetries:    p.cfg.MaxRetries,
	}

	counts := []struct {
		status domain.Status
		dst    *int
	}{
		{domain.StatusPending, &stats.Pending},
		{domain.StatusProcessing, &stats.Processing},
		{domain.StatusDelivered, &stats.Delivered},
		{domain.StatusFailed, &stats.Failed},
	}
	for _, c := range counts {
		n, err := p.repo.CountByStatus(ctx, c.status)
		if err != nil {
			return Stats{}, err
		}
		*c.dst = n
	}
	return stats, nil
}

// stopping reports whether shutdown has been requested via either signal.
func (p *Processor) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-p.stop:
		return true
	default:
		return false
	}
}
