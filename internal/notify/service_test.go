package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/notify"
	"github.com/noah-isme/storefront-api/internal/pubsub"
	"github.com/noah-isme/storefront-api/internal/repo"
)

type fakeQueries struct {
	mu   sync.Mutex
	rows []db.Notification
}

func (f *fakeQueries) InsertNotification(_ context.Context, arg db.InsertNotificationParams) (db.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := db.Notification{
		ID:          repo.FromUUID(uuid.New()),
		RecipientID: arg.RecipientID,
		Kind:        arg.Kind,
		Payload:     arg.Payload,
		CreatedAt:   repo.Timestamptz(time.Date(2026, 3, 1, 9, len(f.rows), 0, 0, time.UTC)),
	}
	f.rows = append(f.rows, row)
	return row, nil
}

func (f *fakeQueries) ListNotifications(_ context.Context, arg db.ListNotificationsParams) ([]db.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Notification
	for i := len(f.rows) - 1; i >= 0; i-- {
		row := f.rows[i]
		if row.RecipientID != arg.RecipientID || (arg.UnreadOnly && row.ReadAt.Valid) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeQueries) CountUnreadNotifications(_ context.Context, rid pgtype.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, row := range f.rows {
		if row.RecipientID == rid && !row.ReadAt.Valid {
			n++
		}
	}
	return n, nil
}

func (f *fakeQueries) MarkNotificationRead(_ context.Context, arg db.MarkNotificationReadParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows {
		if row.ID == arg.ID && row.RecipientID == arg.RecipientID && !row.ReadAt.Valid {
			f.rows[i].ReadAt = repo.Timestamptz(time.Now())
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeQueries) MarkAllNotificationsRead(_ context.Context, rid pgtype.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i, row := range f.rows {
		if row.RecipientID == rid && !row.ReadAt.Valid {
			f.rows[i].ReadAt = repo.Timestamptz(time.Now())
			n++
		}
	}
	return n, nil
}

type fakeStores map[string]db.Store

func (f fakeStores) GetStoreByKey(_ context.Context, key string) (db.Store, error) {
	s, ok := f[key]
	if !ok {
		return db.Store{}, pgx.ErrNoRows
	}
	return s, nil
}

type inbox struct {
	mu   sync.Mutex
	envs []pubsub.Envelope
}

func (i *inbox) handle(env pubsub.Envelope) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.envs = append(i.envs, env)
}

func (i *inbox) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.envs)
}

func TestSendPersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	broker := pubsub.NewMemory()
	svc := &notify.Service{Q: &fakeQueries{}, Broker: broker}
	user := uuid.NewString()

	var box inbox
	_, err := broker.Subscribe(ctx, pubsub.UserTopic(user), box.handle)
	require.NoError(t, err)

	n, err := svc.Send(ctx, user, notify.ChatMessageReceived{ConversationID: "c1", Preview: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)
	require.Equal(t, 1, box.count())
	require.Equal(t, pubsub.TypeNotification, box.envs[0].Type)

	var pushed notify.Notification
	require.NoError(t, json.Unmarshal(box.envs[0].Data, &pushed))
	require.Equal(t, notify.KindChatMessageReceived, pushed.Kind())

	_, err = svc.Send(ctx, "nobody", notify.FlashSaleEnded{})
	require.ErrorIs(t, err, notify.ErrInvalidRecipient)
}

func TestInboxReadState(t *testing.T) {
	ctx := context.Background()
	svc := &notify.Service{Q: &fakeQueries{}}
	user := uuid.NewString()

	first, err := svc.Send(ctx, user, notify.OrderStatusChanged{OrderID: "o1", To: "CONFIRMED"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, user, notify.OrderStatusChanged{OrderID: "o1", To: "SHIPPED"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, uuid.NewString(), notify.FlashSaleEnded{Name: "other"})
	require.NoError(t, err)

	n, err := svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	require.NoError(t, svc.MarkRead(ctx, user, first.ID))
	require.ErrorIs(t, svc.MarkRead(ctx, user, first.ID), notify.ErrNotFound)

	unread, err := svc.List(ctx, user, true, 20, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, "SHIPPED", unread[0].Payload.(notify.OrderStatusChanged).To)

	changed, err := svc.MarkAllRead(ctx, user)
	require.NoError(t, err)
	require.EqualValues(t, 1, changed)

	all, err := svc.List(ctx, user, false, 20, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].ReadAt)
}

func TestListSkipsUnknownKinds(t *testing.T) {
	q := &fakeQueries{}
	svc := &notify.Service{Q: q}
	user := uuid.NewString()
	uid, _ := repo.UUID(user)
	q.rows = append(q.rows, db.Notification{ID: repo.FromUUID(uuid.New()), RecipientID: uid, Kind: "legacy", Payload: []byte(`{}`)})
	_, err := svc.Send(context.Background(), user, notify.FlashSaleEnded{Name: "Payday"})
	require.NoError(t, err)

	items, err := svc.List(context.Background(), user, false, 20, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestEventNotifierOrderPlaced(t *testing.T) {
	ctx := context.Background()
	broker := pubsub.NewMemory()
	q := &fakeQueries{}
	svc := &notify.Service{Q: q, Broker: broker}
	storeID, owner, buyer := uuid.NewString(), uuid.NewString(), uuid.NewString()
	n := notify.EventNotifier{
		Sender: svc,
		Stores: fakeStores{storeID: {OwnerID: repo.FromUUID(uuid.MustParse(owner))}},
		Broker: broker,
	}
	var dash inbox
	_, err := broker.Subscribe(ctx, pubsub.StoreTopic(storeID), dash.handle)
	require.NoError(t, err)

	raw, _ := json.Marshal(events.OrderPlaced{OrderID: "o1", StoreID: storeID, UserID: buyer, Total: decimal.NewFromInt(90), Items: 1})
	require.NoError(t, n.Notify(ctx, db.DomainEvent{Topic: events.TopicOrderPlaced, Payload: raw}))

	buyerInbox, err := svc.List(ctx, buyer, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, buyerInbox, 1)
	require.True(t, buyerInbox[0].Payload.(notify.OrderPlaced).Buyer)

	ownerInbox, err := svc.List(ctx, owner, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, ownerInbox, 1)
	require.False(t, ownerInbox[0].Payload.(notify.OrderPlaced).Buyer)
	require.Equal(t, 1, dash.count())
}

func TestEventNotifierSkipsActor(t *testing.T) {
	ctx := context.Background()
	q := &fakeQueries{}
	svc := &notify.Service{Q: q}
	storeID, owner, buyer := uuid.NewString(), uuid.NewString(), uuid.NewString()
	n := notify.EventNotifier{Sender: svc, Stores: fakeStores{storeID: {OwnerID: repo.FromUUID(uuid.MustParse(owner))}}}

	// buyer cancels: only the owner hears about it
	raw, _ := json.Marshal(events.OrderStatusChanged{OrderID: "o1", StoreID: storeID, UserID: buyer, From: "PENDING", To: "CANCELLED", ActorID: buyer})
	require.NoError(t, n.Notify(ctx, db.DomainEvent{Topic: events.TopicOrderStatusChanged, Payload: raw}))
	require.Len(t, q.rows, 1)
	require.Equal(t, owner, repo.String(q.rows[0].RecipientID))

	// owner ships: only the buyer hears about it
	raw, _ = json.Marshal(events.OrderStatusChanged{OrderID: "o2", StoreID: storeID, UserID: buyer, From: "PROCESSING", To: "SHIPPED", ActorID: owner})
	require.NoError(t, n.Notify(ctx, db.DomainEvent{Topic: events.TopicOrderStatusChanged, Payload: raw}))
	require.Len(t, q.rows, 2)
	require.Equal(t, buyer, repo.String(q.rows[1].RecipientID))

	require.NoError(t, n.Notify(ctx, db.DomainEvent{Topic: "inventory.adjusted", Payload: []byte(`{}`)}))
	require.Len(t, q.rows, 2)
}

func TestHandlers(t *testing.T) {
	svc := &notify.Service{Q: &fakeQueries{}}
	user := uuid.NewString()
	sent, err := svc.Send(context.Background(), user, notify.FlashSaleStarted{Name: "Payday"})
	require.NoError(t, err)

	h := &notify.Handler{Svc: svc}
	r := chi.NewRouter()
	r.Route("/notifications", h.Routes)
	do := func(method, path, uid string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if uid != "" {
			req = req.WithContext(common.WithUserID(req.Context(), uid))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/notifications/", "").Code)

	rec := do(http.MethodGet, "/notifications/unread-count", user)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"data":{"unread":1}}`, rec.Body.String())

	rec = do(http.MethodGet, "/notifications/", user)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"kind":"flash_sale_started"`)

	require.Equal(t, http.StatusNoContent, do(http.MethodPost, "/notifications/"+sent.ID+"/read", user).Code)
	require.Equal(t, http.StatusNotFound, do(http.MethodPost, "/notifications/"+sent.ID+"/read", user).Code)
	require.Equal(t, http.StatusOK, do(http.MethodPost, "/notifications/read-all", user).Code)
}
