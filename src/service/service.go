package service

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulsehub/presence/src/directory"
	"github.com/pulsehub/presence/src/hub"
	"github.com/pulsehub/presence/src/types"
)

// Service provides the high-level real-time event API used by the HTTP
// layer and by embedders.
type Service struct {
	hub    *hub.Hub
	dir    *directory.Directory
	logger zerolog.Logger
}

// New creates a new Service backed by the given hub and directory.
func New(h *hub.Hub, dir *directory.Directory, logger zerolog.Logger) *Service {
	return &Service{hub: h, dir: dir, logger: logger}
}

// Hub returns the underlying hub.
func (s *Service) Hub() *hub.Hub { return s.hub }

// OnlineUsers returns the ids of all currently online users, sorted
// ascending.
func (s *Service) OnlineUsers() []string {
	return s.dir.OnlineUsers()
}

// ConnectionsForUser returns the live connection ids of a user, or empty
// if the user is offline.
func (s *Service) ConnectionsForUser(userID string) []string {
	return s.dir.ConnectionsForUser(userID)
}

// RelayMessage delivers a direct message from sender to peer: every
// connection in their conversation group receives it, and so does every
// device of the peer that does not have the conversation open.
func (s *Service) RelayMessage(senderID, peerID, body string) error {
	if peerID == "" {
		return fmt.Errorf("message from %s has no recipient", senderID)
	}
	if body == "" {
		return fmt.Errorf("empty message body from %s", senderID)
	}

	conv := types.ConversationID(senderID, peerID)
	s.hub.Dispatch(types.Delivery{
		Group:   conv,
		UserIDs: []string{peerID},
		Event: types.Event{
			Type: types.EventNewMessage,
			Data: map[string]any{
				"conversation_id": conv,
				"sender_id":       senderID,
				"body":            body,
			},
			Timestamp: time.Now(),
		},
	})

	s.logger.Debug().
		Str("sender_id", senderID).
		Str("conversation_id", conv).
		Msg("message relayed")
	return nil
}

// NotifyLiked pushes a like notification to every connection of the target
// user. Fire-and-forget: an offline target receives nothing.
func (s *Service) NotifyLiked(fromUserID, targetID string) error {
	if targetID == "" {
		return fmt.Errorf("like from %s has no target", fromUserID)
	}

	s.hub.Dispatch(types.Delivery{
		UserIDs: []string{targetID},
		Event: types.Event{
			Type: types.EventLiked,
			Data: map[string]any{
				"from_user_id": fromUserID,
				"target_id":    targetID,
			},
			Timestamp: time.Now(),
		},
	})

	s.logger.Debug().
		Str("from_user_id", fromUserID).
		Str("target_id", targetID).
		Msg("like notification dispatched")
	return nil
}
