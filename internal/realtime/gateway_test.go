package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/noah-isme/storefront-api/internal/auth"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/pubsub"
	"github.com/noah-isme/storefront-api/internal/realtime"
	"github.com/noah-isme/storefront-api/internal/tenant"
)

func TestRooms(t *testing.T) {
	store := uuid.NewString()
	seller := common.Principal{UserID: "u1", Role: common.RoleSeller, StoreID: store}

	require.Equal(t, []string{pubsub.StorefrontTopic(store)}, realtime.Rooms(common.Principal{}, false, store))
	require.Empty(t, realtime.Rooms(common.Principal{}, false, ""))
	require.Equal(t, []string{pubsub.UserTopic("u1")}, realtime.Rooms(seller, true, ""))
	require.Equal(t, []string{
		pubsub.StorefrontTopic(store), pubsub.UserTopic("u1"), pubsub.StoreTopic(store),
	}, realtime.Rooms(seller, true, store))
	require.Equal(t, []string{
		pubsub.StorefrontTopic("other"), pubsub.UserTopic("u1"),
	}, realtime.Rooms(seller, true, "other"))
}

type harness struct {
	broker *pubsub.Memory
	tokens *auth.Tokens
	server *httptest.Server
	store  string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	h := harness{
		broker: pubsub.NewMemory(),
		tokens: &auth.Tokens{Secret: []byte("ws-secret")},
		store:  uuid.NewString(),
	}
	gw := &realtime.Gateway{
		Broker:       h.broker,
		Auth:         auth.Middleware{Tokens: h.tokens, AccessCookie: "access_token"},
		WriteTimeout: time.Second,
	}
	ws := gw.Handler()
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s := r.URL.Query().Get("store"); s != "" {
			r = r.WithContext(tenant.With(r.Context(), s))
		}
		ws.ServeHTTP(w, r)
	}))
	t.Cleanup(h.server.Close)
	return h
}

func (h harness) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws?" + query
	conn, err := websocket.Dial(url, "", h.server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) pubsub.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env pubsub.Envelope
	require.NoError(t, websocket.JSON.Receive(conn, &env))
	return env
}

func TestGatewayForwardsRoomsForSeller(t *testing.T) {
	h := newHarness(t)
	seller := common.Principal{UserID: uuid.NewString(), Role: common.RoleSeller, StoreID: h.store}
	token, err := h.tokens.Issue(seller)
	require.NoError(t, err)

	conn := h.dial(t, "store="+h.store+"&token="+token)
	ready := receive(t, conn)
	require.Equal(t, realtime.TypeReady, ready.Type)
	var rooms struct {
		Rooms []string `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(ready.Data, &rooms))
	require.Len(t, rooms.Rooms, 3)

	ctx := context.Background()
	require.NoError(t, pubsub.Publish(ctx, h.broker, pubsub.StoreTopic(h.store), pubsub.TypeOrderStatus, map[string]string{"order_id": "o1"}))
	env := receive(t, conn)
	require.Equal(t, pubsub.TypeOrderStatus, env.Type)
	require.Equal(t, pubsub.StoreTopic(h.store), env.Topic)

	require.NoError(t, pubsub.Publish(ctx, h.broker, pubsub.UserTopic(seller.UserID), pubsub.TypeNotification, map[string]string{"id": "n1"}))
	require.Equal(t, pubsub.TypeNotification, receive(t, conn).Type)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return h.broker.Subscribers(pubsub.StoreTopic(h.store)) == 0 &&
			h.broker.Subscribers(pubsub.UserTopic(seller.UserID)) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGatewayAnonymousShopperGetsStorefrontOnly(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "store="+h.store+"&token=garbage")
	require.Equal(t, realtime.TypeReady, receive(t, conn).Type)
	require.Equal(t, 1, h.broker.Subscribers(pubsub.StorefrontTopic(h.store)))
	require.Zero(t, h.broker.Subscribers(pubsub.StoreTopic(h.store)))

	require.NoError(t, pubsub.Publish(context.Background(), h.broker, pubsub.StorefrontTopic(h.store), pubsub.TypeFlashSaleStarted, map[string]string{"name": "Midnight"}))
	env := receive(t, conn)
	require.Equal(t, pubsub.TypeFlashSaleStarted, env.Type)
}

func TestGatewayClosesWithoutRooms(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env pubsub.Envelope
	require.Error(t, websocket.JSON.Receive(conn, &env))
}

func (h harness) config(t *testing.T, query, origin string) *websocket.Config {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws?" + query
	cfg, err := websocket.NewConfig(url, origin)
	require.NoError(t, err)
	return cfg
}

func TestGatewayRejectsForeignOriginWithCookie(t *testing.T) {
	h := newHarness(t)
	user := common.Principal{UserID: uuid.NewString(), Role: common.RoleCustomer}
	token, err := h.tokens.Issue(user)
	require.NoError(t, err)

	cfg := h.config(t, "store="+h.store, "https://evil.example")
	cfg.Header.Set("Cookie", "access_token="+token)
	_, err = websocket.DialConfig(cfg)
	require.Error(t, err)
	require.Zero(t, h.broker.Subscribers(pubsub.UserTopic(user.UserID)))

	cfg = h.config(t, "store="+h.store, h.server.URL)
	cfg.Header.Set("Cookie", "access_token="+token)
	conn, err := websocket.DialConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Equal(t, realtime.TypeReady, receive(t, conn).Type)
	require.Equal(t, 1, h.broker.Subscribers(pubsub.UserTopic(user.UserID)))
}

func TestGatewayAllowlistedOrigin(t *testing.T) {
	broker := pubsub.NewMemory()
	gw := &realtime.Gateway{Broker: broker, AllowedOrigins: []string{"https://shop.example"}}
	store := uuid.NewString()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gw.Handler().ServeHTTP(w, r.WithContext(tenant.With(r.Context(), store)))
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, err := websocket.Dial(url, "", "https://shop.example")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Equal(t, realtime.TypeReady, receive(t, conn).Type)

	_, err = websocket.Dial(url, "", srv.URL)
	require.Error(t, err)
}
