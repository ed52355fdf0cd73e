package hub

import (
	"sync"
	"time"

	"github.com/pulsehub/presence/src/types"
)

// Hub endpoint names; each connected client belongs to exactly one.
const (
	HubPresence = "presence"
	HubMessage  = "message"
	HubLike     = "like"
)

const defaultSendBuffer = 256

// Client wraps one authenticated WebSocket connection and manages its
// event flow. UserID is resolved at connect time and immutable for the
// connection's lifetime.
type Client struct {
	ID     string
	UserID string
	Kind   string // which hub endpoint the client connected to
	Peer   string // conversation counterpart, message hub only

	conn        types.Conn
	hub         *Hub
	Send        chan types.Event
	connectedAt time.Time
	groups      map[string]bool
	mu          sync.RWMutex
	done        chan struct{}
	closed      bool
}

// NewClient creates a new client wrapper. sendBuf <= 0 selects the default
// outbound buffer depth.
func NewClient(id, userID string, conn types.Conn, h *Hub, sendBuf int) *Client {
	if sendBuf <= 0 {
		sendBuf = defaultSendBuffer
	}
	return &Client{
		ID:          id,
		UserID:      userID,
		conn:        conn,
		hub:         h,
		Send:        make(chan types.Event, sendBuf),
		connectedAt: time.Now(),
		groups:      make(map[string]bool),
		done:        make(chan struct{}),
	}
}

// Info returns metadata about this client.
func (c *Client) Info() types.ClientInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	groups := make([]string, 0, len(c.groups))
	for g := range c.groups {
		groups = append(groups, g)
	}
	return types.ClientInfo{
		ID:          c.ID,
		UserID:      c.UserID,
		ConnectedAt: c.connectedAt,
		Groups:      groups,
	}
}

func (c *Client) addGroup(group string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[group] = true
}

func (c *Client) removeGroup(group string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.groups, group)
}

// ReadPump reads frames from the WebSocket and routes them to the hub.
// Any read error, including an abnormal network drop, ends the pump and
// unregisters the client; there is no distinct timeout state.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		var f types.Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}
		c.hub.incoming <- inbound{client: c, frame: f}
	}
}

// WritePump writes events from the send channel to the WebSocket.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		select {
		case ev, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close signals the client to stop its pumps.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
		close(c.Send)
	}
}
