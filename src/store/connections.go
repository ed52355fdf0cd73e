// Package store persists live connection records in Redis. The table is
// used only for cross-restart cleanup and diagnostics; the in-memory
// directory remains the source of truth for presence.
package store

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pulsehub/presence/config"
)

// ConnectionStore keeps one Redis hash of connID -> userID for all live
// connections of this broadcast domain.
type ConnectionStore struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

// New creates a ConnectionStore using the given Redis settings.
func New(cfg *config.RedisConfig, logger zerolog.Logger) *ConnectionStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &ConnectionStore{
		client: client,
		key:    cfg.Prefix + "connections",
		logger: logger.With().Str("component", "connection-store").Logger(),
	}
}

// Reset deletes every persisted connection record. Connection ids are
// transport-session-scoped and never valid across a process restart, so
// this runs once at startup before any connection is accepted. Deleting a
// missing key is a no-op, so an empty or absent table is not an error.
func (s *ConnectionStore) Reset(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return err
	}
	s.logger.Info().Str("key", s.key).Msg("stale connection records cleared")
	return nil
}

// Save records a live connection row.
func (s *ConnectionStore) Save(ctx context.Context, userID, connID string) error {
	return s.client.HSet(ctx, s.key, connID, userID).Err()
}

// Delete removes a connection row.
func (s *ConnectionStore) Delete(ctx context.Context, connID string) error {
	return s.client.HDel(ctx, s.key, connID).Err()
}

// Count returns the number of persisted connection rows.
func (s *ConnectionStore) Count(ctx context.Context) (int64, error) {
	return s.client.HLen(ctx, s.key).Result()
}

// Close releases the Redis client.
func (s *ConnectionStore) Close() error {
	return s.client.Close()
}
