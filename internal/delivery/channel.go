package delivery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/notifyhub/realtime-delivery/internal/domain"
)

// Channel abstracts one delivery transport. The queue processor only ever
// sees this interface, so hub push, webhooks, email and so on are
// interchangeable variants behind it. Any non-nil error from Deliver routes
// the notification onto the retry path.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n *domain.Notification) error
}

// Event is the wire envelope pushed to websocket clients.
type Event struct {
	Type         string               `json:"type"`
	Notification *domain.Notification `json:"notification"`
	Timestamp    time.Time            `json:"timestamp"`
}

func encodeEvent(n *domain.Notification) ([]byte, error) {
	return json.Marshal(Event{
		Type:         "notification",
		Notification: n,
		Timestamp:    time.Now().UTC(),
	})
}
