package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the per-message write deadline.
	writeWait = 10 * time.Second

	// maxMessageSize bounds inbound frames.
	maxMessageSize = 4096

	// sendBufferSize is the per-client outbound queue. A full buffer marks
	// the client dead.
	sendBufferSize = 256
)

// Client is one websocket connection. Outbound messages flow through the
// buffered send channel, which gives each connection its own ordering.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	id   string
	send chan []byte

	closeMu sync.Mutex
	closed  bool
}

// enqueue queues a payload for delivery. It reports false when the client is
// closed or its buffer is full.
func (c *Client) enqueue(payload []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// deliver marshals and queues a single envelope for this client only.
func (c *Client) deliver(env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		c.hub.log.Error().Err(err).Str("type", env.Type).Msg("marshal envelope")
		return
	}
	c.enqueue(payload)
}

// close tears the connection down and detaches it from the hub. Idempotent;
// called from the read pump, from broadcast pruning, or both.
func (c *Client) close() {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.closeMu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.hub.remove(c)
}

// readPump consumes inbound frames: subscribe, unsubscribe and ping requests.
// It also maintains the read deadline that backs the heartbeat.
func (c *Client) readPump() {
	defer c.close()

	liveness := c.hub.livenessWindow()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(liveness))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(liveness))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug().Err(err).Str("connection_id", c.id).Msg("read error")
			}
			return
		}
		// Any inbound frame proves the peer alive, not just pongs.
		_ = c.conn.SetReadDeadline(time.Now().Add(liveness))

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.deliver(Envelope{
				Type:      TypeError,
				Timestamp: time.Now(),
				Error:     "malformed message",
			})
			continue
		}

		switch env.Type {
		case "subscribe":
			if env.GameID == "" {
				c.deliver(Envelope{
					Type:          TypeError,
					CorrelationID: env.CorrelationID,
					Timestamp:     time.Now(),
					Error:         "subscribe requires game_id",
				})
				continue
			}
			c.hub.subscribe(c, env.GameID, env.CorrelationID)
		case "unsubscribe":
			c.hub.unsubscribe(c, env.GameID, env.CorrelationID)
		case "ping":
			c.deliver(Envelope{
				Type:          TypePong,
				CorrelationID: env.CorrelationID,
				Timestamp:     time.Now(),
			})
		default:
			c.deliver(Envelope{
				Type:          TypeError,
				CorrelationID: env.CorrelationID,
				Timestamp:     time.Now(),
				Error:         "unknown message type",
			})
		}
	}
}

// writePump drains the send channel onto the wire and emits heartbeats.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
