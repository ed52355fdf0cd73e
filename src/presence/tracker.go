package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulsehub/presence/src/directory"
	"github.com/pulsehub/presence/src/types"
)

// storeTimeout bounds each persisted connection-table write.
const storeTimeout = 5 * time.Second

// Broadcaster delivers presence events to connected clients.
// Implemented by the hub; defined here to avoid a circular import.
type Broadcaster interface {
	Dispatch(d types.Delivery)
	SendToConnection(connID string, ev types.Event)
}

// ConnectionStore persists live connection records for cross-restart
// cleanup. It is diagnostics-only: the in-memory directory is the source
// of truth for presence.
type ConnectionStore interface {
	Save(ctx context.Context, userID, connID string) error
	Delete(ctx context.Context, connID string) error
}

// Tracker is the sole mutator of the connection directory. It translates
// connect/disconnect transport events into online/offline transitions and
// triggers the corresponding broadcasts.
type Tracker struct {
	dir    *directory.Directory
	store  ConnectionStore
	logger zerolog.Logger

	mu          sync.RWMutex
	broadcaster Broadcaster
}

// NewTracker creates a Tracker over the given directory. store may be nil
// when no persisted connection table is configured.
func NewTracker(dir *directory.Directory, store ConnectionStore, logger zerolog.Logger) *Tracker {
	return &Tracker{
		dir:    dir,
		store:  store,
		logger: logger.With().Str("component", "presence").Logger(),
	}
}

// SetBroadcaster attaches the delivery sink for presence events.
func (t *Tracker) SetBroadcaster(b Broadcaster) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broadcaster = b
}

func (t *Tracker) getBroadcaster() Broadcaster {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.broadcaster
}

// Directory returns the tracked connection directory.
func (t *Tracker) Directory() *directory.Directory { return t.dir }

// UserConnected registers the connection. On the user's first connection it
// broadcasts an online event to all other online users; the connecting
// client always receives a one-time snapshot of who is online. Returns an
// error when the connection id is already live, in which case nothing is
// mutated or broadcast.
func (t *Tracker) UserConnected(userID, connID string) error {
	first, err := t.dir.Add(userID, connID)
	if err != nil {
		return err
	}
	t.persistSave(userID, connID)

	// Snapshot computed here, sends happen below without the directory lock.
	online := t.dir.OnlineUsers()

	b := t.getBroadcaster()
	if b == nil {
		return nil
	}

	b.SendToConnection(connID, types.Event{
		Type:      types.EventOnlineUsers,
		Data:      map[string]any{"users": online},
		Timestamp: time.Now(),
	})

	if first {
		others := make([]string, 0, len(online))
		for _, id := range online {
			if id != userID {
				others = append(others, id)
			}
		}
		if len(others) > 0 {
			b.Dispatch(types.Delivery{
				UserIDs: others,
				Event: types.Event{
					Type:      types.EventOnline,
					Data:      map[string]any{"user_id": userID},
					Timestamp: time.Now(),
				},
			})
		}
		t.logger.Info().Str("user_id", userID).Msg("user online")
	}
	return nil
}

// UserDisconnected deregisters the connection. On the user's last
// disconnection it broadcasts an offline event to all remaining online
// users. An unknown pair is logged and ignored: transports may deliver
// duplicate or late disconnect notices.
func (t *Tracker) UserDisconnected(userID, connID string) {
	last, found := t.dir.Remove(userID, connID)
	if !found {
		t.logger.Warn().
			Str("user_id", userID).
			Str("connection_id", connID).
			Msg("disconnect for unknown connection ignored")
		return
	}
	t.persistDelete(connID)

	if !last {
		return
	}
	t.logger.Info().Str("user_id", userID).Msg("user offline")

	b := t.getBroadcaster()
	if b == nil {
		return
	}
	remaining := t.dir.OnlineUsers()
	if len(remaining) == 0 {
		return
	}
	b.Dispatch(types.Delivery{
		UserIDs: remaining,
		Event: types.Event{
			Type:      types.EventOffline,
			Data:      map[string]any{"user_id": userID},
			Timestamp: time.Now(),
		},
	})
}

func (t *Tracker) persistSave(userID, connID string) {
	if t.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := t.store.Save(ctx, userID, connID); err != nil {
		t.logger.Warn().Err(err).Str("connection_id", connID).Msg("connection row save failed")
	}
}

func (t *Tracker) persistDelete(connID string) {
	if t.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := t.store.Delete(ctx, connID); err != nil {
		t.logger.Warn().Err(err).Str("connection_id", connID).Msg("connection row delete failed")
	}
}
