// Package hub maintains the set of live websocket connections, indexed by
// owner, and fans messages out to them. A single Run goroutine owns both
// indices and serializes every membership change, fan-out, sweep, and stats
// read, so no mutex is needed and a connection can never be observed
// half-registered.
package hub

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Stats is a point-in-time snapshot of hub membership.
type Stats struct {
	Connections int            `json:"connections"`
	Owners      int            `json:"owners"`
	PerOwner    map[string]int `json:"per_owner"`
}

// Hooks carries optional callbacks invoked from the hub loop after any
// membership change. Used by main to keep Prometheus gauges current.
type Hooks struct {
	OnChange func(connections, owners int)
}

type ownerMessage struct {
	ownerID string
	payload []byte
	reached chan int
}

// Hub routes messages to live connections. All exported methods are safe for
// concurrent use; they hand requests to the Run loop over channels.
type Hub struct {
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan []byte
	sendOwner  chan ownerMessage
	statsReq   chan chan Stats

	// Owned exclusively by the Run goroutine.
	connections map[*Connection]struct{}
	owners      map[string]map[*Connection]struct{}

	opts   Options
	hooks  Hooks
	logger *zap.Logger

	// closed when Run exits so callers never block on a dead loop
	done chan struct{}
}

func New(opts Options, hooks Hooks, logger *zap.Logger) *Hub {
	if hooks.OnChange == nil {
		hooks.OnChange = func(int, int) {}
	}
	return &Hub{
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan []byte, 64),
		sendOwner:   make(chan ownerMessage),
		statsReq:    make(chan chan Stats),
		connections: make(map[*Connection]struct{}),
		owners:      make(map[string]map[*Connection]struct{}),
		opts:        opts.normalized(),
		hooks:       hooks,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Run is the hub's event loop. It processes membership and fan-out requests
// until ctx is cancelled, then evicts every remaining connection and returns.
// Run must be called exactly once, in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	sweep := time.NewTicker(h.opts.SweepInterval)
	defer sweep.Stop()

	h.logger.Info("hub started",
		zap.Duration("sweep_interval", h.opts.SweepInterval),
		zap.Duration("idle_timeout", h.opts.IdleTimeout),
	)

	for {
		select {
		case c := <-h.register:
			h.add(c)

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			for c := range h.connections {
				h.enqueue(c, msg)
			}

		case req := <-h.sendOwner:
			reached := 0
			for c := range h.owners[req.ownerID] {
				if h.enqueue(c, req.payload) {
					reached++
				}
			}
			req.reached <- reached

		case reply := <-h.statsReq:
			reply <- h.snapshot()

		case <-sweep.C:
			h.sweepIdle()

		case <-ctx.Done():
			for c := range h.connections {
				h.remove(c)
			}
			h.logger.Info("hub stopped")
			return
		}
	}
}

// Register adds the connection to both indices and sends a best-effort
// "connected" acknowledgement to the new connection only.
func (h *Hub) Register(c *Connection) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes the connection from both indices and closes its send
// buffer. It is idempotent and safe to call from any trigger (read error,
// write error, sweep) concurrently.
func (h *Hub) Unregister(c *Connection) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// SendToOwner delivers msg to every live connection of the owner and returns
// the number of connections reached. Zero connections is a silent no-op —
// the durable store, not the hub, is responsible for eventual delivery.
func (h *Hub) SendToOwner(ownerID string, msg []byte) int {
	req := ownerMessage{ownerID: ownerID, payload: msg, reached: make(chan int, 1)}
	select {
	case h.sendOwner <- req:
		return <-req.reached
	case <-h.done:
		return 0
	}
}

// Broadcast delivers msg to every live connection, for system-wide events.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// Stats returns a membership snapshot taken on the hub loop, so it cannot
// race with concurrent registration or eviction.
func (h *Hub) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case h.statsReq <- reply:
		return <-reply
	case <-h.done:
		return Stats{PerOwner: map[string]int{}}
	}
}

// ConnectedOwners returns the IDs of owners with at least one live connection.
func (h *Hub) ConnectedOwners() []string {
	stats := h.Stats()
	owners := make([]string, 0, len(stats.PerOwner))
	for id := range stats.PerOwner {
		owners = append(owners, id)
	}
	return owners
}

// ---- loop-internal helpers (only ever called from the Run goroutine) ----

func (h *Hub) add(c *Connection) {
	h.connections[c] = struct{}{}
	bucket, ok := h.owners[c.ownerID]
	if !ok {
		bucket = make(map[*Connection]struct{})
		h.owners[c.ownerID] = bucket
	}
	bucket[c] = struct{}{}

	h.enqueue(c, connectedAck(c.id))
	h.hooks.OnChange(len(h.connections), len(h.owners))
	h.logger.Info("connection registered",
		zap.String("connection_id", c.id),
		zap.String("owner_id", c.ownerID),
		zap.Int("total", len(h.connections)),
	)
}

// remove deletes the connection from both indices and closes its send
// channel. The membership check makes it idempotent: a connection evicted by
// the write pump and then again by the sweep is only closed once.
func (h *Hub) remove(c *Connection) {
	if _, ok := h.connections[c]; !ok {
		return
	}
	delete(h.connections, c)
	if bucket, ok := h.owners[c.ownerID]; ok {
		delete(bucket, c)
		if len(bucket) == 0 {
			delete(h.owners, c.ownerID)
		}
	}
	close(c.send)

	h.hooks.OnChange(len(h.connections), len(h.owners))
	h.logger.Info("connection unregistered",
		zap.String("connection_id", c.id),
		zap.String("owner_id", c.ownerID),
		zap.Int("total", len(h.connections)),
	)
}

// enqueue attempts a non-blocking send to the connection's outbound buffer.
// A full buffer means the client stopped draining: the connection is evicted
// rather than allowed to stall fan-out to its healthy siblings.
func (h *Hub) enqueue(c *Connection, msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		h.logger.Warn("send buffer full, evicting connection",
			zap.String("connection_id", c.id),
			zap.String("owner_id", c.ownerID),
		)
		h.remove(c)
		return false
	}
}

func (h *Hub) sweepIdle() {
	cutoff := time.Now().Add(-h.opts.IdleTimeout)
	for c := range h.connections {
		if c.lastActive().Before(cutoff) {
			h.logger.Info("evicting idle connection",
				zap.String("connection_id", c.id),
				zap.String("owner_id", c.ownerID),
				zap.Time("last_activity", c.lastActive()),
			)
			h.remove(c)
		}
	}
}

func (h *Hub) snapshot() Stats {
	perOwner := make(map[string]int, len(h.owners))
	for id, bucket := range h.owners {
		perOwner[id] = len(bucket)
	}
	return Stats{
		Connections: len(h.connections),
		Owners:      len(h.owners),
		PerOwner:    perOwner,
	}
}

func connectedAck(connectionID string) []byte {
	ack, _ := json.Marshal(map[string]string{
		"type":          "connected",
		"connection_id": connectionID,
	})
	return ack
}
