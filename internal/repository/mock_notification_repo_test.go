package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/notifyhub/realtime-delivery/internal/domain"
	"github.com/notifyhub/realtime-delivery/internal/repository"
)

func pending(id string) *domain.Notification {
	now := time.Now().UTC()
	return &domain.Notification{
		ID:         id,
		OwnerID:    "alice",
		Category:   domain.CategorySystem,
		Priority:   domain.PriorityNormal,
		Title:      "t",
		Message:    "m",
		Status:     domain.StatusPending,
		MaxRetries: 3,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TestClaim_AtMostOneWinner drives the claim contract the processor relies
// on: of any number of concurrent claimants, exactly one succeeds and the
// rest observe a lost claim without error.
func TestClaim_AtMostOneWinner(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, pending("n1")); err != nil {
		t.Fatal(err)
	}

	const claimants = 32
	var wg sync.WaitGroup
	wins := make(chan *domain.Notification, claimants)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.Claim(ctx, "n1")
			if err != nil {
				t.Errorf("claim error: %v", err)
				return
			}
			wins <- claimed
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for claimed := range wins {
		if claimed != nil {
			winners++
			if claimed.Status != domain.StatusProcessing {
				t.Errorf("winning claim returned status=%s", claimed.Status)
			}
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly 1 winning claim, got %d", winners)
	}

	n, err := repo.GetByID(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if n.Status != domain.StatusProcessing {
		t.Fatalf("expected status=processing after claim, got %s", n.Status)
	}
	if n.ClaimedAt == nil {
		t.Fatal("expected claimed_at set by the winning claim")
	}
}

func TestClaim_NonPendingIsRejected(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ctx := context.Background()

	for _, status := range []domain.Status{
		domain.StatusProcessing, domain.StatusDelivered, domain.StatusFailed,
	} {
		n := pending("n-" + string(status))
		n.Status = status
		if err := repo.Create(ctx, n); err != nil {
			t.Fatal(err)
		}
		claimed, err := repo.Claim(ctx, n.ID)
		if err != nil {
			t.Fatalf("claim error for %s: %v", status, err)
		}
		if claimed != nil {
			t.Fatalf("claim succeeded for status=%s", status)
		}
	}
}

// TestClaim_ReturnsCurrentRow pins down the freshness contract: a row that
// went through a retry cycle after being polled must come back from Claim
// with its current retry_count, not the polled one.
func TestClaim_ReturnsCurrentRow(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, pending("n1")); err != nil {
		t.Fatal(err)
	}
	if err := repo.ScheduleRetry(ctx, "n1", 2, time.Now().Add(-time.Minute), "flaky"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Requeue(ctx, "n1"); err != nil {
		t.Fatal(err)
	}

	claimed, err := repo.Claim(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil {
		t.Fatal("expected the claim to succeed")
	}
	if claimed.RetryCount != 2 {
		t.Fatalf("claim returned stale retry_count: got %d, want 2", claimed.RetryCount)
	}
	if claimed.Status != domain.StatusProcessing || claimed.ClaimedAt == nil {
		t.Fatalf("claim returned inconsistent row: %+v", claimed)
	}
}

func TestGetPendingBatch_ExcludesScheduledRetries(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ctx := context.Background()

	ready := pending("ready")
	if err := repo.Create(ctx, ready); err != nil {
		t.Fatal(err)
	}

	parked := pending("parked")
	if err := repo.Create(ctx, parked); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	if err := repo.ScheduleRetry(ctx, "parked", 1, future, "try later"); err != nil {
		t.Fatal(err)
	}

	batch, err := repo.GetPendingBatch(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 1 || batch[0].ID != "ready" {
		t.Fatalf("expected only the ready row, got %d rows", len(batch))
	}
}

func TestGetRetryable_ReturnsOnlyElapsed(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ctx := context.Background()

	for _, id := range []string{"due", "future"} {
		if err := repo.Create(ctx, pending(id)); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.ScheduleRetry(ctx, "due", 1, time.Now().Add(-time.Minute), "e"); err != nil {
		t.Fatal(err)
	}
	if err := repo.ScheduleRetry(ctx, "future", 1, time.Now().Add(time.Hour), "e"); err != nil {
		t.Fatal(err)
	}

	due, err := repo.GetRetryable(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].ID != "due" {
		t.Fatalf("expected only the elapsed retry, got %d rows", len(due))
	}
}

func TestRequeue_ClearsRetryStateAndClaim(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, pending("n1")); err != nil {
		t.Fatal(err)
	}
	if claimed, _ := repo.Claim(ctx, "n1"); claimed == nil {
		t.Fatal("claim failed")
	}
	if err := repo.Requeue(ctx, "n1"); err != nil {
		t.Fatal(err)
	}

	n, err := repo.GetByID(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if n.Status != domain.StatusPending || n.NextRetryAt != nil || n.ClaimedAt != nil {
		t.Fatalf("requeue left residual state: %+v", n)
	}
}

func TestCountByStatus(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := repo.Create(ctx, pending(id)); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.MarkFailed(ctx, "c", 3, "gone"); err != nil {
		t.Fatal(err)
	}

	if got, _ := repo.CountByStatus(ctx, domain.StatusPending); got != 2 {
		t.Fatalf("expected 2 pending, got %d", got)
	}
	if got, _ := repo.CountByStatus(ctx, domain.StatusFailed); got != 1 {
		t.Fatalf("expected 1 failed, got %d", got)
	}
}
