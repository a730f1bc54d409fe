package repository

import (
	"context"
	"time"

	"github.com/notifyhub/realtime-delivery/internal/domain"
)

// NotificationRepository defines all persistence operations for notifications.
// The pgx implementation is in pg_notification_repo.go.
// Tests use a hand-written mock (mock_notification_repo.go).
//
// Implementations must be safe for concurrent use by multiple workers, and
// Claim must be atomic: of any number of concurrent callers for the same ID,
// at most one may receive the claimed row.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Notification, int, error)

	// GetPendingBatch returns up to limit notifications that are ready for
	// immediate delivery (status=pending with no future retry scheduled).
	GetPendingBatch(ctx context.Context, limit int) ([]*domain.Notification, error)

	// GetRetryable returns up to limit notifications whose next_retry_at
	// has elapsed. The retry scheduler requeues these; workers never see
	// them directly.
	GetRetryable(ctx context.Context, limit int) ([]*domain.Notification, error)

	// GetStuckProcessing returns notifications claimed before the cutoff
	// that never reached a terminal status (worker crash mid-claim).
	GetStuckProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Notification, error)

	// Claim atomically transitions pending → processing and returns the row
	// as written, so callers work from current state rather than the polled
	// snapshot. A nil row with a nil error means another worker already
	// holds the notification.
	Claim(ctx context.Context, id string) (*domain.Notification, error)

	MarkDelivered(ctx context.Context, id string) error

	// MarkFailed dead-letters the notification, recording the final attempt
	// count and the last delivery error for audit.
	MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error
	ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error

	// Requeue resets a notification to plain pending, clearing any retry
	// schedule and claim timestamp, so ordinary workers pick it up.
	Requeue(ctx context.Context, id string) error

	CountByStatus(ctx context.Context, status domain.Status) (int, error)
}
