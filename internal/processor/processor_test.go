package processor_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/realtime-delivery/internal/domain"
	"github.com/notifyhub/realtime-delivery/internal/processor"
	"github.com/notifyhub/realtime-delivery/internal/repository"
)

// fakeChannel implements delivery.Channel with a pluggable Deliver func.
type fakeChannel struct {
	deliver func(ctx context.Context, n *domain.Notification) error
	calls   atomic.Int64
}

func (f *fakeChannel) Name() string { return "fake" }

func (f *fakeChannel) Deliver(ctx context.Context, n *domain.Notification) error {
	f.calls.Add(1)
	if f.deliver == nil {
		return nil
	}
	return f.deliver(ctx, n)
}

func fastConfig() processor.Config {
	return processor.Config{
		Workers:       2,
		BatchSize:     5,
		PollInterval:  10 * time.Millisecond,
		RetryInterval: 10 * time.Millisecond,
		MaxRetries:    3,
	}
}

func seed(t *testing.T, repo *repository.MockNotificationRepository, id string) *domain.Notification {
	t.Helper()
	n := &domain.Notification{
		ID:         id,
		OwnerID:    "owner-1",
		Category:   domain.CategoryOrder,
		Priority:   domain.PriorityNormal,
		Title:      "Order shipped",
		Message:    "Your order is on the way",
		Status:     domain.StatusPending,
		MaxRetries: 3,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), n); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return n
}

// waitFor polls cond until it returns true or the deadline expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func statusOf(t *testing.T, repo *repository.MockNotificationRepository, id string) domain.Status {
	t.Helper()
	n, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return n.Status
}

func TestProcessor_DeliversPending(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ch := &fakeChannel{}
	p := processor.New(fastConfig(), repo, ch, processor.Hooks{}, zap.NewNop())

	seed(t, repo, "n1")

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop() //nolint:errcheck

	waitFor(t, 2*time.Second, func() bool {
		return statusOf(t, repo, "n1") == domain.StatusDelivered
	})
}

func TestProcessor_RetriesThenDeadLetters(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ch := &fakeChannel{
		deliver: func(context.Context, *domain.Notification) error {
			return errors.New("transport down")
		},
	}
	p := processor.New(fastConfig(), repo, ch, processor.Hooks{}, zap.NewNop())

	seed(t, repo, "n1")

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop() //nolint:errcheck

	waitFor(t, 5*time.Second, func() bool {
		return statusOf(t, repo, "n1") == domain.StatusFailed
	})

	n, _ := repo.GetByID(context.Background(), "n1")
	if n.RetryCount != 3 {
		t.Fatalf("expected retry_count=3 after dead-letter, got %d", n.RetryCount)
	}
	if n.ErrorMessage == nil || *n.ErrorMessage == "" {
		t.Fatal("expected error_message to record the last delivery error")
	}
	if n.NextRetryAt != nil {
		t.Fatal("expected next_retry_at cleared on terminal failure")
	}
}

func TestProcessor_FailedIsNeverRevisited(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ch := &fakeChannel{
		deliver: func(context.Context, *domain.Notification) error {
			return errors.New("transport down")
		},
	}
	p := processor.New(fastConfig(), repo, ch, processor.Hooks{}, zap.NewNop())

	seed(t, repo, "n1")

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop() //nolint:errcheck

	waitFor(t, 5*time.Second, func() bool {
		return statusOf(t, repo, "n1") == domain.StatusFailed
	})

	attempts := ch.calls.Load()
	if attempts != 3 {
		t.Fatalf("expected exactly 3 delivery attempts, got %d", attempts)
	}

	// Give the pool several more poll cycles; the terminal row must stay put.
	time.Sleep(100 * time.Millisecond)
	if got := ch.calls.Load(); got != attempts {
		t.Fatalf("dead-lettered notification was retried: %d → %d attempts", attempts, got)
	}
}

// staleBatchRepo hands out poll results with retry_count frozen at zero,
// mimicking a batch that aged while the worker ground through its earlier
// entries. Attempt accounting must come from the claimed row, not from here.
type staleBatchRepo struct {
	*repository.MockNotificationRepository
}

func (r *staleBatchRepo) GetPendingBatch(ctx context.Context, limit int) ([]*domain.Notification, error) {
	batch, err := r.MockNotificationRepository.GetPendingBatch(ctx, limit)
	for _, n := range batch {
		n.RetryCount = 0
	}
	return batch, err
}

func TestProcessor_AttemptCountComesFromClaimedRow(t *testing.T) {
	repo := &staleBatchRepo{repository.NewMockNotificationRepository()}
	ch := &fakeChannel{
		deliver: func(context.Context, *domain.Notification) error {
			return errors.New("transport down")
		},
	}
	p := processor.New(fastConfig(), repo, ch, processor.Hooks{}, zap.NewNop())

	// Two failed attempts already on record; the next failure is terminal.
	now := time.Now().UTC()
	n := &domain.Notification{
		ID:         "n1",
		OwnerID:    "owner-1",
		Category:   domain.CategoryOrder,
		Priority:   domain.PriorityNormal,
		Title:      "Order shipped",
		Message:    "Your order is on the way",
		Status:     domain.StatusPending,
		RetryCount: 2,
		MaxRetries: 3,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.Create(context.Background(), n); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop() //nolint:errcheck

	// A worker counting attempts off the stale poll copy would schedule
	// retry after retry and never dead-letter.
	waitFor(t, 2*time.Second, func() bool {
		return statusOf(t, repo.MockNotificationRepository, "n1") == domain.StatusFailed
	})

	row, err := repo.GetByID(context.Background(), "n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.RetryCount != 3 {
		t.Fatalf("attempt counter rolled back: got retry_count=%d, want 3", row.RetryCount)
	}
}

func TestProcessor_ClaimConflictSkippedSilently(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ch := &fakeChannel{}
	p := processor.New(fastConfig(), repo, ch, processor.Hooks{}, zap.NewNop())

	n := seed(t, repo, "n1")

	// Simulate another process winning the claim between poll and claim.
	claimed, err := repo.Claim(context.Background(), n.ID)
	if err != nil || claimed == nil {
		t.Fatalf("pre-claim failed: claimed=%v err=%v", claimed, err)
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got := ch.calls.Load(); got != 0 {
		t.Fatalf("expected no delivery for an already-claimed notification, got %d", got)
	}
}

func TestProcessor_RequeuesStuckClaims(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ch := &fakeChannel{}
	p := processor.New(fastConfig(), repo, ch, processor.Hooks{}, zap.NewNop())

	// A row parked at processing with a stale claim: the worker that owned
	// it died before reaching a terminal status.
	old := time.Now().Add(-time.Hour)
	stuck := &domain.Notification{
		ID:         "n1",
		OwnerID:    "owner-1",
		Category:   domain.CategoryOrder,
		Priority:   domain.PriorityNormal,
		Title:      "Order shipped",
		Message:    "Your order is on the way",
		Status:     domain.StatusProcessing,
		ClaimedAt:  &old,
		MaxRetries: 3,
		CreatedAt:  old,
		UpdatedAt:  old,
	}
	if err := repo.Create(context.Background(), stuck); err != nil {
		t.Fatalf("seed stuck row: %v", err)
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop() //nolint:errcheck

	waitFor(t, 2*time.Second, func() bool {
		return statusOf(t, repo, "n1") == domain.StatusDelivered
	})
}

func TestProcessor_Lifecycle(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	p := processor.New(fastConfig(), repo, &fakeChannel{}, processor.Hooks{}, zap.NewNop())

	if p.IsRunning() {
		t.Fatal("expected not running before Start")
	}
	if err := p.Stop(); err != domain.ErrNotRunning {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !p.IsRunning() {
		t.Fatal("expected running after Start")
	}
	if err := p.Start(context.Background()); err != domain.ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.IsRunning() {
		t.Fatal("expected not running after Stop")
	}
	if err := p.Stop(); err != domain.ErrNotRunning {
		t.Fatalf("expected ErrNotRunning on second Stop, got %v", err)
	}

	// Restart must work after a clean Stop.
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("stop after restart: %v", err)
	}
}

func TestProcessor_StopDrainsWorkers(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ch := &fakeChannel{}
	p := processor.New(fastConfig(), repo, ch, processor.Hooks{}, zap.NewNop())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// After Stop returns no goroutine may touch the store: new pending work
	// must sit untouched.
	seed(t, repo, "after-stop")
	time.Sleep(100 * time.Millisecond)
	if got := statusOf(t, repo, "after-stop"); got != domain.StatusPending {
		t.Fatalf("worker still active after Stop: status=%s", got)
	}
}

func TestProcessor_ExternalCancelStopsWork(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ch := &fakeChannel{}
	p := processor.New(fastConfig(), repo, ch, processor.Hooks{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()

	// Workers exit on the external context; Stop still reaps them cleanly.
	if err := p.Stop(); err != nil {
		t.Fatalf("stop after cancel: %v", err)
	}

	seed(t, repo, "after-cancel")
	time.Sleep(100 * time.Millisecond)
	if got := statusOf(t, repo, "after-cancel"); got != domain.StatusPending {
		t.Fatalf("worker still active after cancel: status=%s", got)
	}
}

func TestProcessor_GetStats(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	cfg := fastConfig()
	p := processor.New(cfg, repo, &fakeChannel{}, processor.Hooks{}, zap.NewNop())

	seed(t, repo, "n1")
	seed(t, repo, "n2")
	if err := repo.MarkFailed(context.Background(), "n2", 3, "gone"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	stats, err := p.GetStats(context.Background())
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.Running {
		t.Fatal("expected running=false before Start")
	}
	if stats.Pending != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected counts: pending=%d failed=%d", stats.Pending, stats.Failed)
	}
	if stats.Workers != cfg.Workers || stats.MaxRetries != cfg.MaxRetries {
		t.Fatalf("config not reflected in stats: %+v", stats)
	}
}

func TestConfig_NormalizeCorrectsInvalidValues(t *testing.T) {
	cfg := processor.Config{
		Workers:       0,
		BatchSize:     -1,
		PollInterval:  0,
		RetryInterval: -time.Second,
		MaxRetries:    0,
	}.Normalize()

	if cfg.Workers < 1 || cfg.BatchSize < 1 || cfg.MaxRetries < 1 {
		t.Fatalf("normalize left invalid counts: %+v", cfg)
	}
	if cfg.PollInterval <= 0 || cfg.RetryInterval <= 0 {
		t.Fatalf("normalize left invalid intervals: %+v", cfg)
	}
}
