package hub

import (
	"github.com/pulsehub/presence/src/types"
)

// RegisterHandler registers a frame handler for one hub endpoint.
func (h *Hub) RegisterHandler(kind string, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[kind] = handler
}

func (h *Hub) handleFrame(in inbound) {
	h.mu.RLock()
	handler, ok := h.handlers[in.client.Kind]
	h.mu.RUnlock()

	if !ok {
		h.logger.Debug().Str("hub", in.client.Kind).Msg("no handler")
		return
	}
	if err := handler(in.client, in.frame); err != nil {
		h.logger.Error().Err(err).
			Str("hub", in.client.Kind).
			Str("connection_id", in.client.ID).
			Msg("handler error")
	}
}

// Dispatch queues a delivery for local fan-out and cross-instance publish.
// It never blocks the caller: the event loop itself dispatches while
// registering clients and handling frames, and a blocking enqueue there
// would wedge the loop on its own channel once the buffer fills.
func (h *Hub) Dispatch(d types.Delivery) {
	select {
	case h.dispatch <- d:
	default:
		go func() { h.dispatch <- d }()
	}
}

// deliver fans an event out to the delivery's local target set: the
// members of the group, plus each listed user's connections that are not
// group members. Targets are collected under the lock, sends happen after
// release so network-bound clients never block the directory.
func (h *Hub) deliver(d types.Delivery) {
	// Resolve user connections first; the directory has its own lock.
	userConns := make(map[string][]string, len(d.UserIDs))
	for _, uid := range d.UserIDs {
		userConns[uid] = h.dir.ConnectionsForUser(uid)
	}

	h.mu.RLock()
	seen := make(map[string]bool)
	var targets []*Client
	if d.Group != "" {
		for id := range h.groups[d.Group] {
			if c, ok := h.clients[id]; ok {
				seen[id] = true
				targets = append(targets, c)
			}
		}
	}
	for _, uid := range d.UserIDs {
		for _, id := range userConns[uid] {
			if seen[id] {
				continue
			}
			if c, ok := h.clients[id]; ok {
				seen[id] = true
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.Send <- d.Event:
		default:
			// A full buffer means a stuck or dead peer; drop only this
			// connection and let the normal disconnect path run.
			h.logger.Warn().
				Str("connection_id", c.ID).
				Str("user_id", c.UserID).
				Msg("send buffer full, dropping connection")
			go func(c *Client) { h.unregister <- c }(c)
		}
	}
}

// publishToBridge forwards a delivery to the bridge if one is attached.
func (h *Hub) publishToBridge(d types.Delivery) {
	h.mu.RLock()
	b := h.bridge
	h.mu.RUnlock()

	if b == nil || !b.Available() {
		return
	}
	if err := b.Publish(d); err != nil {
		h.logger.Error().Err(err).Msg("bridge publish failed")
	}
}

// SendToConnection sends an event directly to a specific connection.
func (h *Hub) SendToConnection(connID string, ev types.Event) {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case client.Send <- ev:
	default:
		h.logger.Warn().Str("connection_id", connID).Msg("send buffer full, dropping event")
	}
}

// JoinGroup adds a connection to a group. Returns false when the
// connection is not registered.
func (h *Hub) JoinGroup(group, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]bool)
	}
	h.groups[group][connID] = true
	c.addGroup(group)
	return true
}

// LeaveGroup removes a connection from a group. Returns false when the
// group or connection is unknown.
func (h *Hub) LeaveGroup(group, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		return false
	}
	if !members[connID] {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, group)
	}
	if c, ok := h.clients[connID]; ok {
		c.removeGroup(group)
	}
	return true
}

// GroupMembers returns the connection ids currently in a group.
func (h *Hub) GroupMembers(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.groups[group]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}
