package providers

import (
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/pulsehub/presence/src/auth"
	"github.com/pulsehub/presence/src/hub"
)

// Handler returns the root fasthttp handler: hub paths get the WebSocket
// upgrade handler, everything else goes to the Fiber app. The upgrade
// handler is registered at the fasthttp level since Fiber v3 does not
// expose *fasthttp.RequestCtx.
func (p *Provider) Handler(app *fiber.App) fasthttp.RequestHandler {
	appHandler := app.Handler()
	wsHandler := p.FastHTTPHandler()

	return func(ctx *fasthttp.RequestCtx) {
		if strings.HasPrefix(string(ctx.Path()), p.cfg.HubPathPrefix+"/") {
			wsHandler(ctx)
			return
		}
		appHandler(ctx)
	}
}

// FastHTTPHandler returns a raw fasthttp handler serving the hub
// endpoints. Authentication runs before the upgrade: a refused connection
// never touches the directory.
func (p *Provider) FastHTTPHandler() fasthttp.RequestHandler {
	upgrader := websocket.FastHTTPUpgrader{
		ReadBufferSize:  p.cfg.ReadBufferSize,
		WriteBufferSize: p.cfg.WriteBufferSize,
	}

	return func(ctx *fasthttp.RequestCtx) {
		kind, ok := p.hubKind(string(ctx.Path()))
		if !ok {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			ctx.SetBodyString(`{"error":"not_found","message":"unknown hub endpoint"}`)
			return
		}

		token := auth.TokenFromRequest(ctx, p.cfg.HubPathPrefix)
		userID, err := p.verifier.Verify(token)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusUnauthorized)
			ctx.SetBodyString(`{"error":"unauthorized","message":"valid access token required"}`)
			return
		}

		var peer string
		if kind == hub.HubMessage {
			peer = string(ctx.QueryArgs().Peek("user"))
			if peer == "" {
				ctx.SetStatusCode(fasthttp.StatusBadRequest)
				ctx.SetBodyString(`{"error":"bad_request","message":"user query parameter required"}`)
				return
			}
		}

		upgrade := string(ctx.Request.Header.Peek("Upgrade"))
		if !strings.EqualFold(upgrade, "websocket") {
			ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
			ctx.SetBodyString(`{"error":"upgrade_required","message":"WebSocket upgrade required"}`)
			return
		}

		connID := uuid.New().String()
		h := p.hub
		sendBuf := p.cfg.SendBufferSize
		logger := p.logger

		err = upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			client := hub.NewClient(connID, userID, &fasthttpConn{conn}, h, sendBuf)
			client.Kind = kind
			client.Peer = peer
			h.Register(client)
			go client.WritePump()
			client.ReadPump()
		})
		if err != nil {
			logger.Error().Err(err).Msg("websocket upgrade failed")
		}
	}
}

// hubKind maps a request path to its hub endpoint name.
func (p *Provider) hubKind(path string) (string, bool) {
	switch strings.TrimPrefix(path, p.cfg.HubPathPrefix+"/") {
	case "presence":
		return hub.HubPresence, true
	case "message":
		return hub.HubMessage, true
	case "like":
		return hub.HubLike, true
	}
	return "", false
}

// fasthttpConn wraps fasthttp/websocket.Conn to satisfy types.Conn.
type fasthttpConn struct {
	conn *websocket.Conn
}

func (f *fasthttpConn) WriteJSON(v any) error { return f.conn.WriteJSON(v) }
func (f *fasthttpConn) ReadJSON(v any) error  { return f.conn.ReadJSON(v) }
func (f *fasthttpConn) Close() error          { return f.conn.Close() }
