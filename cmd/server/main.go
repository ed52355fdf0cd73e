package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/pulsehub/presence/config"
	"github.com/pulsehub/presence/providers"
	"github.com/pulsehub/presence/src/auth"
	"github.com/pulsehub/presence/src/bridge"
	"github.com/pulsehub/presence/src/directory"
	"github.com/pulsehub/presence/src/hub"
	"github.com/pulsehub/presence/src/presence"
	"github.com/pulsehub/presence/src/service"
	"github.com/pulsehub/presence/src/store"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.ServerConfigFromEnv()
	redisCfg := config.RedisConfigFromEnv()

	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("PRESENCE_JWT_SECRET is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Clear stale connection rows from a prior process lifetime before any
	// connection is accepted. An unreachable store is fatal: presence
	// guarantees need a clean baseline.
	st := store.New(redisCfg, logger)
	resetCtx, resetCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := st.Reset(resetCtx); err != nil {
		resetCancel()
		logger.Fatal().Err(err).Msg("startup connection reset failed")
	}
	resetCancel()

	dir := directory.New()
	tracker := presence.NewTracker(dir, st, logger)
	h := hub.New(dir, tracker, logger)
	tracker.SetBroadcaster(h)
	go h.Run()

	// Cross-instance fan-out is optional: without Redis pub/sub the hub
	// runs in standalone mode.
	var b bridge.Bridge
	rb := bridge.NewRedisBridge(redisCfg, h, logger)
	if err := rb.Start(); err != nil {
		logger.Warn().Err(err).Msg("redis bridge unavailable, running standalone")
	} else {
		b = rb
		h.SetBridge(rb)
		logger.Info().Str("redis_addr", redisCfg.Addr).Msg("redis bridge connected")
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	svc := service.New(h, dir, logger)
	provider := providers.New(cfg, svc, h, verifier, logger)

	app := fiber.New()
	provider.RegisterRoutes(app)

	server := &fasthttp.Server{
		Handler: provider.Handler(app),
		Name:    "pulsehub",
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("server listening")
		if err := server.ListenAndServe(cfg.Addr); err != nil {
			logger.Error().Err(err).Msg("server stopped")
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	if b != nil {
		if err := b.Stop(); err != nil {
			logger.Error().Err(err).Msg("bridge stop error")
		}
	}
	h.Stop()
	if err := st.Close(); err != nil {
		logger.Error().Err(err).Msg("connection store close error")
	}
}
