package providers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/pulsehub/presence/config"
	"github.com/pulsehub/presence/src/auth"
	"github.com/pulsehub/presence/src/hub"
	"github.com/pulsehub/presence/src/service"
	"github.com/pulsehub/presence/src/types"
)

// Provider wires the hub and service into HTTP and WebSocket endpoints.
type Provider struct {
	cfg      *config.ServerConfig
	svc      *service.Service
	hub      *hub.Hub
	verifier *auth.Verifier
	logger   zerolog.Logger
}

// New creates a Provider and registers the direct-message frame handler on
// the hub.
func New(cfg *config.ServerConfig, svc *service.Service, h *hub.Hub, verifier *auth.Verifier, logger zerolog.Logger) *Provider {
	p := &Provider{
		cfg:      cfg,
		svc:      svc,
		hub:      h,
		verifier: verifier,
		logger:   logger.With().Str("component", "providers").Logger(),
	}

	h.RegisterHandler(hub.HubMessage, func(c *hub.Client, f types.Frame) error {
		return svc.RelayMessage(c.UserID, c.Peer, f.Body)
	})
	return p
}

// RegisterRoutes registers the JSON API routes via Fiber. All routes
// require a bearer credential; the query-parameter token convention does
// not apply outside the hub paths.
func (p *Provider) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api", p.requireAuth)
	api.Get("/presence/online", p.handleOnline)
	api.Get("/realtime/info", p.handleInfo)
	api.Post("/likes", p.handleLike)
}

// requireAuth authenticates API requests from the Authorization header
// only and stores the resolved user id on the request context.
func (p *Provider) requireAuth(c fiber.Ctx) error {
	token := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	userID, err := p.verifier.Verify(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}
	c.Locals("user_id", userID)
	return c.Next()
}

func (p *Provider) handleOnline(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"users": p.svc.OnlineUsers(),
	})
}

func (p *Provider) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"clients": p.hub.ClientCount(),
		"groups":  len(p.hub.Groups()),
		"online":  len(p.svc.OnlineUsers()),
	})
}

type likeRequest struct {
	TargetID string `json:"target_id"`
}

// handleLike relays a like action to the target user's live connections.
// Fire-and-forget: an offline target is not an error.
func (p *Provider) handleLike(c fiber.Ctx) error {
	var req likeRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}

	fromUserID, _ := c.Locals("user_id").(string)
	if err := p.svc.NotifyLiked(fromUserID, req.TargetID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"queued": true,
	})
}
