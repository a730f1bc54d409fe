package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidOwner    = errors.New("owner_id must not be empty")
	ErrInvalidCategory = errors.New("invalid category: must be order, payment, system, or promo")
	ErrInvalidPriority = errors.New("invalid priority: must be high, normal, or low")
	ErrInvalidTitle    = errors.New("title must be between 1 and 256 characters")
	ErrInvalidMessage  = errors.New("message must be between 1 and 4096 characters")

	// Processor lifecycle guards.
	ErrAlreadyRunning = errors.New("queue processor is already running")
	ErrNotRunning     = errors.New("queue processor is not running")
)
