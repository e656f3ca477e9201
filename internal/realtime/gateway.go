// Package realtime bridges pub/sub topics to websocket clients.
package realtime

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/websocket"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pubsub"
	"github.com/noah-isme/storefront-api/internal/tenant"
)

// TypeReady is the first frame sent on every connection. Its data lists the
// rooms the connection was subscribed to.
const TypeReady pubsub.EventType = "realtime.ready"

// Authenticator resolves the optional caller of an upgrade request.
type Authenticator interface {
	PrincipalFromRequest(r *http.Request) (common.Principal, bool)
}

// Gateway serves /ws. Each connection subscribes to the rooms its caller may
// see and forwards envelopes as JSON text frames until either side goes away.
type Gateway struct {
	Broker         pubsub.Broker
	Auth           Authenticator
	AllowedOrigins []string
	SendBuffer     int
	WriteTimeout   time.Duration
	Log            zerolog.Logger
}

// Rooms lists the topics a connection joins. Anonymous shoppers only get the
// storefront room; signed-in users add their private room, and staff of the
// store add the dashboard room.
func Rooms(p common.Principal, authenticated bool, storeID string) []string {
	var rooms []string
	if storeID != "" {
		rooms = append(rooms, pubsub.StorefrontTopic(storeID))
	}
	if !authenticated {
		return rooms
	}
	rooms = append(rooms, pubsub.UserTopic(p.UserID))
	if storeID != "" && p.ManagesStore(storeID) {
		rooms = append(rooms, pubsub.StoreTopic(storeID))
	}
	return rooms
}

// Handler returns the instrumented websocket endpoint.
func (g *Gateway) Handler() http.Handler {
	srv := websocket.Server{Handshake: g.handshake, Handler: g.serve}
	return otelhttp.NewHandler(srv, "realtime.ws")
}

func (g *Gateway) handshake(cfg *websocket.Config, r *http.Request) error {
	origin, err := websocket.Origin(cfg, r)
	if err != nil {
		return err
	}
	cfg.Origin = origin
	if origin == nil {
		return nil
	}
	// Without an allowlist only same-origin pages may connect, so a foreign
	// site cannot ride the visitor's session cookie.
	if len(g.AllowedOrigins) == 0 {
		if strings.EqualFold(origin.Host, r.Host) {
			return nil
		}
		return websocket.ErrBadWebSocketOrigin
	}
	for _, allowed := range g.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin.Scheme+"://"+origin.Host) {
			return nil
		}
	}
	return websocket.ErrBadWebSocketOrigin
}

func (g *Gateway) serve(ws *websocket.Conn) {
	defer ws.Close()
	req := ws.Request()
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	var (
		p      common.Principal
		authed bool
	)
	if g.Auth != nil {
		p, authed = g.Auth.PrincipalFromRequest(req)
	}
	storeID, _ := tenant.From(ctx)
	rooms := Rooms(p, authed, storeID)
	if len(rooms) == 0 {
		return
	}

	buffer := g.SendBuffer
	if buffer <= 0 {
		buffer = 32
	}
	out := make(chan pubsub.Envelope, buffer)
	var dropped sync.Once
	deliver := func(env pubsub.Envelope) {
		select {
		case out <- env:
		default:
			dropped.Do(func() {
				g.Log.Warn().Str("user_id", p.UserID).Msg("realtime client too slow, dropping envelopes")
			})
		}
	}

	subs := make([]pubsub.Subscription, 0, len(rooms))
	defer func() {
		for _, sub := range subs {
			_ = sub.Close()
		}
	}()
	for _, room := range rooms {
		sub, err := g.Broker.Subscribe(ctx, room, deliver)
		if err != nil {
			g.Log.Warn().Err(err).Str("topic", room).Msg("realtime subscribe failed")
			return
		}
		subs = append(subs, sub)
	}

	if obs.RealtimeConnections != nil {
		obs.RealtimeConnections.Inc()
		defer obs.RealtimeConnections.Dec()
	}

	// Client frames are ignored; reading only detects disconnects.
	go func() {
		defer cancel()
		var discard string
		for {
			if err := websocket.Message.Receive(ws, &discard); err != nil {
				return
			}
		}
	}()

	ready, err := pubsub.NewEnvelope(TypeReady, map[string]any{"rooms": rooms})
	if err != nil || g.write(ws, ready) != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-out:
			if err := g.write(ws, env); err != nil {
				g.Log.Debug().Err(err).Msg("realtime write failed")
				return
			}
		}
	}
}

func (g *Gateway) write(ws *websocket.Conn, env pubsub.Envelope) error {
	timeout := g.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if err := ws.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return websocket.JSON.Send(ws, env)
}
