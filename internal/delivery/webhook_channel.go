package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/notifyhub/realtime-delivery/internal/domain"
)

// webhookPayload is the JSON body posted to the external endpoint.
type webhookPayload struct {
	NotificationID string  `json:"notification_id"`
	OwnerID        string  `json:"owner_id"`
	Category       string  `json:"category"`
	Priority       string  `json:"priority"`
	Title          string  `json:"title"`
	Message        string  `json:"message"`
	ReferenceID    *string `json:"reference_id,omitempty"`
}

// WebhookChannel mirrors every delivery to an external HTTP endpoint.
// The base URL is injected from config so tests can point to a local mock.
type WebhookChannel struct {
	baseURL    string
	httpClient *http.Client
}

func NewWebhookChannel(baseURL string, timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

// Deliver posts the notification to the configured URL and expects a 2xx.
func (c *WebhookChannel) Deliver(ctx context.Context, n *domain.Notification) error {
	body, err := json.Marshal(webhookPayload{
		NotificationID: n.ID,
		OwnerID:        n.OwnerID,
		Category:       string(n.Category),
		Priority:       string(n.Priority),
		Title:          n.Title,
		Message:        n.Message,
		ReferenceID:    n.ReferenceID,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected webhook status: %d", resp.StatusCode)
	}
	return nil
}

var _ Channel = (*WebhookChannel)(nil)
