package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/realtime-delivery/internal/domain"
	"github.com/notifyhub/realtime-delivery/internal/repository"
)

// NotificationService is the thin ingestion surface: it validates and
// persists pending rows for the queue processor to drain. Deliberately no
// business rules beyond validation — upstream product logic lives elsewhere.
type NotificationService struct {
	repo       repository.NotificationRepository
	maxRetries int
	logger     *zap.Logger
}

func NewNotificationService(repo repository.NotificationRepository, maxRetries int, logger *zap.Logger) *NotificationService {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &NotificationService{repo: repo, maxRetries: maxRetries, logger: logger}
}

// Create validates and persists a notification with status=pending.
// Delivery happens asynchronously via the queue processor.
func (s *NotificationService) Create(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	n := &domain.Notification{
		ID:          uuid.New().String(),
		OwnerID:     req.OwnerID,
		Category:    req.Category,
		Priority:    req.Priority,
		Title:       req.Title,
		Message:     req.Message,
		ReferenceID: req.ReferenceID,
		Status:      domain.StatusPending,
		MaxRetries:  s.maxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	s.logger.Debug("notification accepted",
		zap.String("id", n.ID),
		zap.String("owner_id", n.OwnerID),
	)
	return n, nil
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *NotificationService) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Notification, int, error) {
	return s.repo.List(ctx, filter)
}
