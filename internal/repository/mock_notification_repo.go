package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/notifyhub/realtime-delivery/internal/domain"
)

// MockNotificationRepository is a hand-written, in-memory implementation of
// NotificationRepository used in unit tests. No mock-generation library needed.
//
// Claim holds the same mutex as every other method, so its check-then-write
// is atomic exactly like the SQL conditional update it stands in for.
type MockNotificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]*domain.Notification

	// Optional error overrides — set in tests to simulate failure paths.
	CreateErr          error
	GetPendingBatchErr error
	ClaimErr           error
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{
		notifications: make(map[string]*domain.Notification),
	}
}

func (m *MockNotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *n
	m.notifications[n.ID] = &clone
	return nil
}

func (m *MockNotificationRepository) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (m *MockNotificationRepository) List(_ context.Context, f domain.ListFilter) ([]*domain.Notification, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Notification
	for _, n := range m.notifications {
		if f.OwnerID != nil && n.OwnerID != *f.OwnerID {
			continue
		}
		if f.Status != nil && n.Status != *f.Status {
			continue
		}
		clone := *n
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, len(result), nil
}

func (m *MockNotificationRepository) GetPendingBatch(_ context.Context, limit int) ([]*domain.Notification, error) {
	if m.GetPendingBatchErr != nil {
		return nil, m.GetPendingBatchErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Notification
	for _, n := range m.notifications {
		if n.Status == domain.StatusPending && n.NextRetryAt == nil {
			clone := *n
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockNotificationRepository) GetRetryable(_ context.Context, limit int) ([]*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	var result []*domain.Notification
	for _, n := range m.notifications {
		if n.Status == domain.StatusPending && n.NextRetryAt != nil && !n.NextRetryAt.After(now) {
			clone := *n
			result = append(result, &clone)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockNotificationRepository) GetStuckProcessing(_ context.Context, cutoff time.Time, limit int) ([]*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Notification
	for _, n := range m.notifications {
		if n.Status == domain.StatusProcessing && n.ClaimedAt != nil && !n.ClaimedAt.After(cutoff) {
			clone := *n
			result = append(result, &clone)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockNotificationRepository) Claim(_ context.Context, id string) (*domain.Notification, error) {
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.Status != domain.StatusPending {
		return nil, nil
	}
	now := time.Now().UTC()
	n.Status = domain.StatusProcessing
	n.ClaimedAt = &now
	n.UpdatedAt = now
	clone := *n
	return &clone, nil
}

func (m *MockNotificationRepository) MarkDelivered(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		n.Status = domain.StatusDelivered
		n.ErrorMessage = nil
		n.NextRetryAt = nil
		n.ClaimedAt = nil
		n.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockNotificationRepository) MarkFailed(_ context.Context, id string, retryCount int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		n.Status = domain.StatusFailed
		n.RetryCount = retryCount
		n.ErrorMessage = &errMsg
		n.NextRetryAt = nil
		n.ClaimedAt = nil
		n.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockNotificationRepository) ScheduleRetry(_ context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		n.Status = domain.StatusPending
		n.RetryCount = retryCount
		n.NextRetryAt = &nextRetry
		n.ErrorMessage = &errMsg
		n.ClaimedAt = nil
		n.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockNotificationRepository) Requeue(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		n.Status = domain.StatusPending
		n.NextRetryAt = nil
		n.ClaimedAt = nil
		n.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockNotificationRepository) CountByStatus(_ context.Context, status domain.Status) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, n := range m.notifications {
		if n.Status == status {
			count++
		}
	}
	return count, nil
}
