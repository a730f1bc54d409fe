package domain

import "time"

// Category classifies a notification for clients.
type Category string

const (
	CategoryOrder   Category = "order"
	CategoryPayment Category = "payment"
	CategorySystem  Category = "system"
	CategoryPromo   Category = "promo"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryOrder, CategoryPayment, CategorySystem, CategoryPromo:
		return true
	}
	return false
}

// Priority is a display hint carried through to clients; the processor
// treats all pending notifications equally.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Status tracks the delivery lifecycle of a notification.
//
//	pending    → waiting for a worker (possibly with a future next_retry_at)
//	processing → claimed by exactly one worker; always transient
//	delivered  → terminal success
//	failed     → terminal, retries exhausted (dead-letter)
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
)

// Notification is the core domain entity. Persisted rows are the durable
// source of truth; live websocket delivery is best-effort on top of it.
type Notification struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Category     Category   `json:"category"`
	Priority     Priority   `json:"priority"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	ReferenceID  *string    `json:"reference_id,omitempty"`
	Status       Status     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CreateNotificationRequest is the inbound payload for a single notification.
type CreateNotificationRequest struct {
	OwnerID     string   `json:"owner_id"`
	Category    Category `json:"category"`
	Priority    Priority `json:"priority"`
	Title       string   `json:"title"`
	Message     string   `json:"message"`
	ReferenceID *string  `json:"reference_id,omitempty"`
}

func (r *CreateNotificationRequest) Validate() error {
	if r.OwnerID == "" {
		return ErrInvalidOwner
	}
	if !r.Category.IsValid() {
		return ErrInvalidCategory
	}
	if !r.Priority.IsValid() {
		return ErrInvalidPriority
	}
	if r.Title == "" || len(r.Title) > 256 {
		return ErrInvalidTitle
	}
	if r.Message == "" || len(r.Message) > 4096 {
		return ErrInvalidMessage
	}
	return nil
}

// ListFilter holds query parameters for paginated notification listing.
type ListFilter struct {
	OwnerID *string
	Status  *Status
	Page    int
	Limit   int
}
