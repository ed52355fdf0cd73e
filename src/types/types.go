package types

import "time"

// Event type names pushed to clients.
const (
	EventOnline      = "online"
	EventOffline     = "offline"
	EventOnlineUsers = "online_users"
	EventNewMessage  = "new_message"
	EventLiked       = "liked"
)

// Event is a payload pushed to clients over a hub connection.
type Event struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Frame is an inbound message read from a hub connection.
type Frame struct {
	Body string `json:"body"`
}

// Delivery describes the target set for one outbound event: the members of
// Group, plus every connection of each user in UserIDs that is not already
// a group member. Either field may be empty.
type Delivery struct {
	Group   string   `json:"group,omitempty"`
	UserIDs []string `json:"user_ids,omitempty"`
	Event   Event    `json:"event"`
}

// ClientInfo holds metadata about a connected hub client.
type ClientInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ConnectedAt time.Time `json:"connected_at"`
	Groups      []string  `json:"groups"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// ConversationID returns the group name for the conversation between two
// users. The pair is ordered so both participants derive the same name.
func ConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "conv:" + a + ":" + b
}
