package hub

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/pulsehub/presence/src/directory"
	"github.com/pulsehub/presence/src/presence"
	"github.com/pulsehub/presence/src/types"
)

// MessageBridge publishes deliveries to other server instances.
// Defined here to avoid circular imports with the bridge package.
type MessageBridge interface {
	Publish(d types.Delivery) error
	Available() bool
}

// Handler handles inbound frames from clients of one hub endpoint.
type Handler func(c *Client, f types.Frame) error

// Hub manages all WebSocket client connections, conversation groups, and
// event delivery. Connection lifecycle is fed to the presence tracker,
// which owns the online/offline bookkeeping.
type Hub struct {
	dir     *directory.Directory
	tracker *presence.Tracker

	clients map[string]*Client
	groups  map[string]map[string]bool // group -> set of connection ids

	register   chan *Client
	unregister chan *Client
	incoming   chan inbound
	dispatch   chan types.Delivery
	localCast  chan types.Delivery // deliveries from bridge, no re-publish

	handlers map[string]Handler

	bridge MessageBridge
	mu     sync.RWMutex
	logger zerolog.Logger
	done   chan struct{}
}

type inbound struct {
	client *Client
	frame  types.Frame
}

// New creates a new Hub over the given directory and presence tracker.
func New(dir *directory.Directory, tracker *presence.Tracker, logger zerolog.Logger) *Hub {
	return &Hub{
		dir:        dir,
		tracker:    tracker,
		clients:    make(map[string]*Client),
		groups:     make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan inbound, 256),
		dispatch:   make(chan types.Delivery, 256),
		localCast:  make(chan types.Delivery, 256),
		handlers:   make(map[string]Handler),
		logger:     logger.With().Str("component", "hub").Logger(),
		done:       make(chan struct{}),
	}
}

// SetBridge attaches a cross-instance delivery bridge to the hub.
// When set, dispatched deliveries are also forwarded to other instances.
func (h *Hub) SetBridge(b MessageBridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = b
}

// BroadcastToLocal applies a delivery from the bridge to local connections
// only. It does not re-publish to Redis, preventing infinite loops.
func (h *Hub) BroadcastToLocal(d types.Delivery) {
	h.localCast <- d
}

// Run starts the hub event loop. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case in := <-h.incoming:
			h.handleFrame(in)
		case d := <-h.dispatch:
			h.publishToBridge(d)
			h.deliver(d)
		case d := <-h.localCast:
			h.deliver(d)
		case <-h.done:
			return
		}
	}
}

// Stop halts the hub event loop.
func (h *Hub) Stop() {
	close(h.done)
}

// Register queues a client for registration.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister queues a client for removal.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		h.mu.Unlock()
		h.logger.Error().Str("connection_id", c.ID).Msg("connection id collision, refusing client")
		c.Close()
		return
	}
	h.clients[c.ID] = c
	h.mu.Unlock()

	if err := h.tracker.UserConnected(c.UserID, c.ID); err != nil {
		h.mu.Lock()
		delete(h.clients, c.ID)
		h.mu.Unlock()
		h.logger.Error().Err(err).
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Msg("registration rejected")
		c.Close()
		return
	}

	// Message-hub clients join their conversation group at connect time.
	if c.Peer != "" {
		h.JoinGroup(types.ConversationID(c.UserID, c.Peer), c.ID)
	}

	h.logger.Info().
		Str("connection_id", c.ID).
		Str("user_id", c.UserID).
		Str("hub", c.Kind).
		Msg("client registered")
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)

	// Remove from every group the connection joined.
	for g, members := range h.groups {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.groups, g)
		}
	}
	h.mu.Unlock()

	c.Close()
	h.tracker.UserDisconnected(c.UserID, c.ID)

	h.logger.Info().
		Str("connection_id", c.ID).
		Str("user_id", c.UserID).
		Msg("client unregistered")
}
