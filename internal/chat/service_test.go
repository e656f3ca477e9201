package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/chat"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/notify"
	"github.com/noah-isme/storefront-api/internal/pubsub"
	"github.com/noah-isme/storefront-api/internal/ratelimit"
	"github.com/noah-isme/storefront-api/internal/repo"
	"github.com/noah-isme/storefront-api/internal/tenant"
)

type fakeQueries struct {
	mu       sync.Mutex
	convs    map[pgtype.UUID]db.Conversation
	messages []db.ChatMessage
	stores   map[string]db.Store
}

func (f *fakeQueries) GetOrCreateConversation(_ context.Context, arg db.GetOrCreateConversationParams) (db.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.convs {
		if c.StoreID == arg.StoreID && c.CustomerID == arg.CustomerID {
			return c, nil
		}
	}
	c := db.Conversation{ID: repo.FromUUID(uuid.New()), StoreID: arg.StoreID, CustomerID: arg.CustomerID}
	f.convs[c.ID] = c
	return c, nil
}

func (f *fakeQueries) GetConversation(_ context.Context, id pgtype.UUID) (db.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return db.Conversation{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeQueries) ListConversationsByCustomer(_ context.Context, arg db.ListConversationsByCustomerParams) ([]db.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Conversation
	for _, c := range f.convs {
		if c.CustomerID == arg.CustomerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeQueries) ListConversationsByStore(_ context.Context, arg db.ListConversationsByStoreParams) ([]db.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Conversation
	for _, c := range f.convs {
		if c.StoreID == arg.StoreID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeQueries) InsertChatMessage(_ context.Context, arg db.InsertChatMessageParams) (db.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := db.ChatMessage{ID: arg.ID, ConversationID: arg.ConversationID, SenderID: arg.SenderID, SenderRole: arg.SenderRole, Body: arg.Body, CreatedAt: arg.CreatedAt}
	f.messages = append(f.messages, m)
	return m, nil
}

func (f *fakeQueries) BumpConversation(_ context.Context, arg db.BumpConversationParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.convs[arg.ID]
	c.LastMessageAt = arg.At
	if arg.SenderRole == chat.RoleStore {
		c.CustomerUnread++
	} else {
		c.StoreUnread++
	}
	f.convs[arg.ID] = c
	return nil
}

func (f *fakeQueries) ListChatMessages(_ context.Context, arg db.ListChatMessagesParams) ([]db.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.ChatMessage
	for _, m := range f.messages {
		if m.ConversationID != arg.ConversationID {
			continue
		}
		if arg.Before.Valid && m.ID >= arg.Before.String {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (f *fakeQueries) MarkConversationRead(_ context.Context, arg db.MarkConversationReadParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.convs[arg.ID]
	if arg.Reader == chat.RoleCustomer {
		c.CustomerUnread = 0
	} else {
		c.StoreUnread = 0
	}
	f.convs[arg.ID] = c
	return nil
}

func (f *fakeQueries) GetStoreByKey(_ context.Context, key string) (db.Store, error) {
	s, ok := f.stores[key]
	if !ok {
		return db.Store{}, pgx.ErrNoRows
	}
	return s, nil
}

type sent struct {
	recipient string
	payload   notify.Payload
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (n *fakeNotifier) Send(_ context.Context, recipient string, p notify.Payload) (notify.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{recipient: recipient, payload: p})
	return notify.Notification{Recipient: recipient, Payload: p}, nil
}

type fixture struct {
	svc      *chat.Service
	q        *fakeQueries
	notifier *fakeNotifier
	broker   *pubsub.Memory
	ctx      context.Context
	storeID  string
	owner    common.Principal
	customer common.Principal
	clock    *time.Time
}

func newFixture(t *testing.T, rule ratelimit.Rule) fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	storeID := uuid.NewString()
	owner := common.Principal{UserID: uuid.NewString(), Role: common.RoleSeller, StoreID: storeID}
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := fixture{
		q: &fakeQueries{
			convs:  map[pgtype.UUID]db.Conversation{},
			stores: map[string]db.Store{storeID: {OwnerID: repo.FromUUID(uuid.MustParse(owner.UserID))}},
		},
		notifier: &fakeNotifier{},
		broker:   pubsub.NewMemory(),
		ctx:      tenant.With(context.Background(), storeID),
		storeID:  storeID,
		owner:    owner,
		customer: common.Principal{UserID: uuid.NewString(), Role: common.RoleCustomer},
		clock:    &clock,
	}
	now := func() time.Time { return *f.clock }
	f.svc = &chat.Service{
		Q:        f.q,
		Broker:   f.broker,
		Notifier: f.notifier,
		Limiter:  ratelimit.Limiter{Client: client, Prefix: "rl:", Now: now},
		Rate:     rule,
		Now:      now,
	}
	return f
}

func (f fixture) tick() { *f.clock = f.clock.Add(time.Second) }

type envelopes struct {
	mu   sync.Mutex
	list []pubsub.Envelope
}

func (e *envelopes) add(env pubsub.Envelope) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, env)
}

func TestCustomerAndStoreExchange(t *testing.T) {
	f := newFixture(t, ratelimit.Rule{Window: time.Minute, Max: 10})
	var storeRoom, userRoom envelopes
	_, err := f.broker.Subscribe(f.ctx, pubsub.StoreTopic(f.storeID), storeRoom.add)
	require.NoError(t, err)
	_, err = f.broker.Subscribe(f.ctx, pubsub.UserTopic(f.customer.UserID), userRoom.add)
	require.NoError(t, err)

	first, err := f.svc.SendAsCustomer(f.ctx, f.customer.UserID, "Is the <b>M</b> size back?")
	require.NoError(t, err)
	require.Equal(t, chat.RoleCustomer, first.SenderRole)
	require.Equal(t, "Is the M size back?", first.Body)
	require.Len(t, first.ID, 26)
	require.Len(t, storeRoom.list, 1)
	require.Equal(t, pubsub.TypeChatMessage, storeRoom.list[0].Type)
	require.Equal(t, f.owner.UserID, f.notifier.sent[0].recipient)
	require.Equal(t, notify.KindChatMessageReceived, f.notifier.sent[0].payload.Kind())

	f.tick()
	reply, err := f.svc.SendAsStore(f.ctx, f.owner, first.ConversationID, "Yes, restocked today")
	require.NoError(t, err)
	require.Equal(t, chat.RoleStore, reply.SenderRole)
	require.Greater(t, reply.ID, first.ID)
	require.Len(t, userRoom.list, 1)
	require.Equal(t, f.customer.UserID, f.notifier.sent[1].recipient)

	msgs, err := f.svc.ListMessages(f.ctx, f.customer, first.ConversationID, "", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, reply.ID, msgs[0].ID)

	older, err := f.svc.ListMessages(f.ctx, f.owner, first.ConversationID, reply.ID, 10)
	require.NoError(t, err)
	require.Len(t, older, 1)
	require.Equal(t, first.ID, older[0].ID)

	_, err = f.svc.ListMessages(f.ctx, f.owner, first.ConversationID, "not-a-ulid", 10)
	require.ErrorIs(t, err, chat.ErrInvalidCursor)

	inbox, err := f.svc.ListConversations(f.ctx, f.owner, true, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.EqualValues(t, 1, inbox[0].Unread)

	mine, err := f.svc.ListConversations(f.ctx, f.customer, false, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, mine[0].Unread)
	require.NoError(t, f.svc.MarkRead(f.ctx, f.customer, first.ConversationID))
	mine, err = f.svc.ListConversations(f.ctx, f.customer, false, 10)
	require.NoError(t, err)
	require.Zero(t, mine[0].Unread)
}

func TestStrangersCannotReadConversation(t *testing.T) {
	f := newFixture(t, ratelimit.Rule{Window: time.Minute, Max: 10})
	msg, err := f.svc.SendAsCustomer(f.ctx, f.customer.UserID, "hello")
	require.NoError(t, err)

	stranger := common.Principal{UserID: uuid.NewString(), Role: common.RoleCustomer}
	_, err = f.svc.ListMessages(f.ctx, stranger, msg.ConversationID, "", 10)
	require.ErrorIs(t, err, chat.ErrNotFound)

	otherSeller := common.Principal{UserID: uuid.NewString(), Role: common.RoleSeller, StoreID: uuid.NewString()}
	_, err = f.svc.SendAsStore(f.ctx, otherSeller, msg.ConversationID, "hi")
	require.ErrorIs(t, err, chat.ErrNotFound)

	_, err = f.svc.SendAsStore(f.ctx, f.customer, msg.ConversationID, "pretending")
	require.ErrorIs(t, err, chat.ErrNotFound)

	_, err = f.svc.ListConversations(f.ctx, stranger, true, 10)
	require.ErrorIs(t, err, chat.ErrNotFound)
}

func TestSendRateLimited(t *testing.T) {
	f := newFixture(t, ratelimit.Rule{Window: time.Minute, Max: 2})
	for i := 0; i < 2; i++ {
		_, err := f.svc.SendAsCustomer(f.ctx, f.customer.UserID, "ping")
		require.NoError(t, err)
		f.tick()
	}
	_, err := f.svc.SendAsCustomer(f.ctx, f.customer.UserID, "ping")
	require.ErrorIs(t, err, chat.ErrRateLimited)
	require.Len(t, f.q.messages, 2)

	*f.clock = f.clock.Add(time.Minute)
	_, err = f.svc.SendAsCustomer(f.ctx, f.customer.UserID, "ping")
	require.NoError(t, err)
}

func TestSendRejectsEmptyBody(t *testing.T) {
	f := newFixture(t, ratelimit.Rule{})
	_, err := f.svc.SendAsCustomer(f.ctx, f.customer.UserID, "<p></p>")
	require.ErrorIs(t, err, chat.ErrEmptyMessage)
	require.Empty(t, f.q.messages)
}

func TestChatHandlers(t *testing.T) {
	f := newFixture(t, ratelimit.Rule{Window: time.Minute, Max: 10})
	h := &chat.Handler{Svc: f.svc}
	r := chi.NewRouter()
	r.Route("/chat", h.Routes)
	r.Route("/seller/chat", h.SellerRoutes)

	do := func(method, path, body string, p common.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(common.WithPrincipal(f.ctx, p))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/chat/messages", `{"body":"hello store"}`, f.customer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data chat.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = do(http.MethodPost, "/seller/chat/conversations/"+created.Data.ConversationID+"/messages", `{"body":"hi!"}`, f.owner)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(http.MethodGet, "/chat/conversations/"+created.Data.ConversationID+"/messages?limit=1", "", f.customer)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "hi!")
	require.NotContains(t, rec.Body.String(), "hello store")

	rec = do(http.MethodPost, "/chat/messages", `{"body":"`+strings.Repeat("x", chat.DefaultMaxLength+1)+`"}`, f.customer)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "MESSAGE_TOO_LONG")
}
