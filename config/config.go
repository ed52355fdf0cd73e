package config

import (
	"os"
	"strconv"
)

// ServerConfig holds the HTTP/WebSocket server configuration.
type ServerConfig struct {
	Addr            string // listen address, default ":8080"
	HubPathPrefix   string // path prefix for hub endpoints, default "/hubs"
	JWTSecret       string // HMAC secret for access-token verification
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int // per-client outbound event buffer depth
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:            ":8080",
		HubPathPrefix:   "/hubs",
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
	}
}

// ServerConfigFromEnv loads server configuration from environment variables.
// Falls back to defaults for any missing values.
func ServerConfigFromEnv() *ServerConfig {
	cfg := DefaultServerConfig()

	if addr := os.Getenv("PRESENCE_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if prefix := os.Getenv("PRESENCE_HUB_PREFIX"); prefix != "" {
		cfg.HubPathPrefix = prefix
	}
	cfg.JWTSecret = os.Getenv("PRESENCE_JWT_SECRET")
	if v := os.Getenv("PRESENCE_SEND_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SendBufferSize = n
		}
	}
	return cfg
}

// RedisConfig holds connection settings for the Redis-backed connection
// store and the pub/sub backplane.
type RedisConfig struct {
	Addr     string // Redis address, default "localhost:6379"
	Password string // Redis password, default ""
	DB       int    // Redis database number, default 0
	Prefix   string // Key/channel prefix, default "pulsehub:"
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "pulsehub:",
	}
}

// RedisConfigFromEnv loads Redis configuration from environment variables.
// Falls back to defaults for any missing values.
func RedisConfigFromEnv() *RedisConfig {
	cfg := DefaultRedisConfig()

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Password = pw
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			cfg.DB = db
		}
	}
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		cfg.Prefix = prefix
	}
	return cfg
}
