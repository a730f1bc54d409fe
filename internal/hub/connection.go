package hub

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/notifyhub/realtime-delivery/internal/config"
)

var newline = []byte{'\n'}

const maxInboundMessageSize = 4096

// Options tunes connection liveness and buffering. Zero or negative values
// fall back to defaults rather than failing, matching the rest of the
// configuration surface.
type Options struct {
	// WriteWait is the deadline for a single websocket write.
	WriteWait time.Duration
	// PongWait is the read deadline; the peer must show life within it.
	// Pings are sent every 0.9 × PongWait.
	PongWait time.Duration
	// IdleTimeout is the last-activity cutoff applied by the sweep.
	IdleTimeout time.Duration
	// SweepInterval is how often the hub scans for idle connections.
	SweepInterval time.Duration
	// SendBuffer is the outbound buffer capacity per connection.
	SendBuffer int
}

func (o Options) normalized() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 10 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 5 * time.Minute
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	return o
}

// OptionsFromConfig maps the websocket tuning knobs off the runtime
// configuration. The mapping lives here, next to the fields it feeds, rather
// than in main: WriteWait is a per-frame socket deadline and must track
// WS_WRITE_WAIT, not the HTTP server's write timeout.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		WriteWait:     cfg.WriteWait,
		PongWait:      cfg.PongWait,
		IdleTimeout:   cfg.IdleTimeout,
		SweepInterval: cfg.SweepInterval,
		SendBuffer:    cfg.SendBufferSize,
	}
}

func (o Options) pingPeriod() time.Duration {
	// Strictly shorter than the peer's read timeout so a healthy peer is
	// always probed before its deadline expires.
	return o.PongWait * 9 / 10
}

// Connection is a single live websocket belonging to one owner. The hub owns
// its membership; the connection holds only an unregister callback back to
// the hub, never the hub itself.
type Connection struct {
	id      string
	ownerID string
	ws      *websocket.Conn
	send    chan []byte

	// unregister asks the hub to evict this connection. Called by either
	// pump on transport failure; idempotent on the hub side.
	unregister func(*Connection)

	lastActivity atomic.Int64 // unix nanoseconds
	opts         Options
	logger       *zap.Logger
}

// NewConnection wraps an upgraded websocket. The caller must Register it with
// the hub and start both pumps.
func NewConnection(ownerID string, ws *websocket.Conn, opts Options, unregister func(*Connection), logger *zap.Logger) *Connection {
	c := &Connection{
		id:         uuid.New().String(),
		ownerID:    ownerID,
		ws:         ws,
		send:       make(chan []byte, opts.normalized().SendBuffer),
		unregister: unregister,
		opts:       opts.normalized(),
		logger:     logger,
	}
	c.touch()
	return c
}

func (c *Connection) ID() string      { return c.id }
func (c *Connection) OwnerID() string { return c.ownerID }

func (c *Connection) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Connection) lastActive() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// ReadPump consumes inbound frames until the socket errors or the peer goes
// silent past the read deadline. Every inbound frame, pongs included,
// refreshes the deadline and last_activity. Must run in its own goroutine.
func (c *Connection) ReadPump() {
	defer func() {
		c.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxInboundMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.touch()
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error",
					zap.String("connection_id", c.id), zap.Error(err))
			}
			return
		}
		// Clients do not speak a protocol upstream; any frame counts as life.
		c.touch()
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	}
}

// WritePump drains the outbound buffer and keeps the peer alive with pings.
// When woken for one message it coalesces everything already queued into the
// same frame, so a burst costs one frame instead of one per message.
// Must run in its own goroutine.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				// Hub closed the buffer: we were evicted.
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.ws.NextWriter(websocket.TextMessage)
			if err != nil {
				c.unregister(c)
				return
			}
			_, _ = w.Write(msg)
			queued := len(c.send)
			for i := 0; i < queued; i++ {
				extra, ok := <-c.send
				if !ok {
					break
				}
				_, _ = w.Write(newline)
				_, _ = w.Write(extra)
			}
			if err := w.Close(); err != nil {
				c.unregister(c)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.unregister(c)
				return
			}
		}
	}
}
