package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/corridors/gameserver/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from arbitrary origins.
		return true
	},
}

// Envelope is the wire frame for every websocket message, in both directions.
type Envelope struct {
	Type          string    `json:"type"`
	GameID        string    `json:"game_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Data          any       `json:"data,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Message type constants for connection-level events. Game events reuse the
// service's event names.
const (
	TypeHello              = "hello"
	TypePlayerConnected    = "player_connected"
	TypePlayerDisconnected = "player_disconnected"
	TypeSubscribed         = "subscribed"
	TypeUnsubscribed       = "unsubscribed"
	TypePong               = "pong"
	TypeError              = "error"
)

// Options tunes connection liveness. The zero value gets the defaults.
type Options struct {
	// HeartbeatInterval is how often protocol pings go out to each client.
	HeartbeatInterval time.Duration
	// MissLimit is how many heartbeats may go unanswered before the
	// connection is considered dead.
	MissLimit int
}

const (
	defaultHeartbeatInterval = 20 * time.Second
	defaultMissLimit         = 3
)

// Hub tracks connected clients and their game-room subscriptions, and fans
// events out to them. Per-client ordering comes from each client's buffered
// send channel; a client that cannot keep up is pruned rather than allowed
// to stall a broadcast.
type Hub struct {
	opts Options
	log  zerolog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
}

// NewHub creates an empty hub.
func NewHub(opts Options, log zerolog.Logger) *Hub {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.MissLimit <= 0 {
		opts.MissLimit = defaultMissLimit
	}
	return &Hub{
		opts:    opts,
		log:     log,
		clients: make(map[*Client]bool),
		rooms:   make(map[string]map[*Client]bool),
	}
}

// livenessWindow is how long a client may stay silent before it is dropped.
func (h *Hub) livenessWindow() time.Duration {
	return time.Duration(h.opts.MissLimit) * h.opts.HeartbeatInterval
}

// ServeWS upgrades the request and starts the client pumps. A game_id query
// parameter subscribes the connection to that room immediately.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		id:   uuid.NewString(),
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.ConnectionsActive.Set(float64(total))

	go client.writePump()
	go client.readPump()

	client.deliver(Envelope{
		Type:      TypeHello,
		Timestamp: time.Now(),
		Data: map[string]any{
			"connection_id": client.id,
			"connections":   total,
		},
	})

	if gameID := r.URL.Query().Get("game_id"); gameID != "" {
		h.subscribe(client, gameID, "")
	}

	h.log.Debug().Str("connection_id", client.id).Int("connections", total).Msg("client connected")
}

// subscribe adds the client to a game room and announces the join with the
// new room population.
func (h *Hub) subscribe(c *Client, gameID, correlationID string) {
	h.mu.Lock()
	room := h.rooms[gameID]
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[gameID] = room
	}
	room[c] = true
	population := len(room)
	h.mu.Unlock()

	c.deliver(Envelope{
		Type:          TypeSubscribed,
		GameID:        gameID,
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
		Data:          map[string]any{"population": population},
	})
	h.BroadcastToGame(gameID, TypePlayerConnected, map[string]any{
		"connection_id": c.id,
		"population":    population,
	})
}

// unsubscribe removes the client from a game room.
func (h *Hub) unsubscribe(c *Client, gameID, correlationID string) {
	h.mu.Lock()
	population := h.dropFromRoom(c, gameID)
	h.mu.Unlock()

	c.deliver(Envelope{
		Type:          TypeUnsubscribed,
		GameID:        gameID,
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
	})
	h.BroadcastToGame(gameID, TypePlayerDisconnected, map[string]any{
		"connection_id": c.id,
		"population":    population,
	})
}

// dropFromRoom removes c from one room, deleting the room when it empties.
// The caller holds the write lock. Returns the remaining population.
func (h *Hub) dropFromRoom(c *Client, gameID string) int {
	room, ok := h.rooms[gameID]
	if !ok {
		return 0
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, gameID)
		return 0
	}
	return len(room)
}

// remove detaches a client entirely: every room, the client set, and its send
// channel. Safe to call more than once per client.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	var left []string
	for gameID, room := range h.rooms {
		if room[c] {
			h.dropFromRoom(c, gameID)
			left = append(left, gameID)
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectionsActive.Set(float64(total))
	for _, gameID := range left {
		h.BroadcastToGame(gameID, TypePlayerDisconnected, map[string]any{
			"connection_id": c.id,
		})
	}
	h.log.Debug().Str("connection_id", c.id).Int("connections", total).Msg("client disconnected")
}

// BroadcastToGame fans an event out to every subscriber of a game room.
func (h *Hub) BroadcastToGame(gameID, msgType string, data any) {
	h.mu.RLock()
	room := h.rooms[gameID]
	targets := make([]*Client, 0, len(room))
	for c := range room {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	h.fanOut(targets, Envelope{
		Type:      msgType,
		GameID:    gameID,
		Timestamp: time.Now(),
		Data:      data,
	})
	metrics.BroadcastsTotal.WithLabelValues(msgType).Inc()
}

// BroadcastAll fans an event out to every connected client.
func (h *Hub) BroadcastAll(msgType string, data any) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	h.fanOut(targets, Envelope{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	})
	metrics.BroadcastsTotal.WithLabelValues(msgType).Inc()
}

// fanOut delivers one envelope to each target and waits for every delivery
// attempt to settle. Clients whose buffers are full are treated as dead and
// pruned; one stuck client never delays the others.
func (h *Hub) fanOut(targets []*Client, env Envelope) {
	if len(targets) == 0 {
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		h.log.Error().Err(err).Str("type", env.Type).Msg("marshal broadcast")
		return
	}

	var (
		deadMu sync.Mutex
		dead   []*Client
	)
	var g errgroup.Group
	for _, c := range targets {
		c := c
		g.Go(func() error {
			if !c.enqueue(payload) {
				deadMu.Lock()
				dead = append(dead, c)
				deadMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, c := range dead {
		h.log.Warn().Str("connection_id", c.id).Msg("pruning unresponsive client")
		c.close()
	}
}

// ConnectionCount returns the number of connected clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomPopulation returns the number of subscribers in a game room.
func (h *Hub) RoomPopulation(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[gameID])
}
