package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apimw "github.com/notifyhub/realtime-delivery/internal/api/middleware"
	"github.com/notifyhub/realtime-delivery/internal/hub"
)

// WSHandler upgrades authenticated requests to websocket connections and
// hands them to the hub.
type WSHandler struct {
	hub      *hub.Hub
	opts     hub.Options
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(h *hub.Hub, opts hub.Options, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:  h,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin enforcement happens at the edge proxy; tokens gate
			// this endpoint.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve handles GET /ws. The OwnerAuth middleware has already rejected
// requests without a valid identity; a connection is only ever registered
// for an authenticated owner.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ownerID := apimw.GetOwnerID(r.Context())
	if ownerID == "" {
		respondError(w, http.StatusUnauthorized, "missing owner identity")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("websocket upgrade failed",
			zap.String("owner_id", ownerID), zap.Error(err))
		return
	}

	c := hub.NewConnection(ownerID, ws, h.opts, h.hub.Unregister, h.logger)
	h.hub.Register(c)

	go c.WritePump()
	go c.ReadPump()
}
