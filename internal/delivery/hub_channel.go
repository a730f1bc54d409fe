package delivery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/notifyhub/realtime-delivery/internal/domain"
)

// OwnerPusher is the slice of the hub the channel needs: fan one message out
// to every live connection of an owner, reporting how many were reached.
type OwnerPusher interface {
	SendToOwner(ownerID string, msg []byte) int
}

// HubChannel pushes notifications to live websocket connections through the
// hub. An owner with zero live connections is not an error: the notification
// is still marked delivered, and the durable store remains the record the
// client reconciles from on its next connect.
type HubChannel struct {
	hub    OwnerPusher
	logger *zap.Logger
}

func NewHubChannel(hub OwnerPusher, logger *zap.Logger) *HubChannel {
	return &HubChannel{hub: hub, logger: logger}
}

func (c *HubChannel) Name() string { return "hub" }

func (c *HubChannel) Deliver(_ context.Context, n *domain.Notification) error {
	payload, err := encodeEvent(n)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	reached := c.hub.SendToOwner(n.OwnerID, payload)
	c.logger.Debug("pushed notification",
		zap.String("notification_id", n.ID),
		zap.String("owner_id", n.OwnerID),
		zap.Int("connections_reached", reached),
	)
	return nil
}

var _ Channel = (*HubChannel)(nil)
