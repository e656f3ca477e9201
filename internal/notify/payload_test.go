package notify_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/notify"
)

func TestNotificationJSONCarriesKind(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n := notify.Notification{
		ID:        "n1",
		Recipient: "u1",
		Payload:   notify.OrderStatusChanged{OrderID: "o1", From: "PENDING", To: "CONFIRMED"},
		CreatedAt: created,
	}
	raw, err := json.Marshal(n)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"id":"n1","recipient":"u1","kind":"order_status_changed",
		"payload":{"order_id":"o1","store_id":"","from":"PENDING","to":"CONFIRMED"},
		"created_at":"2026-03-01T09:00:00Z"
	}`, string(raw))

	var back notify.Notification
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, notify.KindOrderStatusChanged, back.Kind())
	p, ok := back.Payload.(notify.OrderStatusChanged)
	require.True(t, ok)
	require.Equal(t, "CONFIRMED", p.To)
}

func TestDecodePayloadPerKind(t *testing.T) {
	p, err := notify.DecodePayload(notify.KindOrderPlaced, []byte(`{"order_id":"o1","total":"120.50","items":2}`))
	require.NoError(t, err)
	placed := p.(notify.OrderPlaced)
	require.True(t, placed.Total.Equal(decimal.RequireFromString("120.5")))
	require.Equal(t, 2, placed.Items)

	p, err = notify.DecodePayload(notify.KindChatMessageReceived, []byte(`{"preview":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, "hi", p.(notify.ChatMessageReceived).Preview)

	p, err = notify.DecodePayload(notify.KindFlashSaleEnded, nil)
	require.NoError(t, err)
	require.Equal(t, notify.KindFlashSaleEnded, p.Kind())
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := notify.DecodePayload("promo_blast", []byte(`{}`))
	require.ErrorIs(t, err, notify.ErrUnknownKind)

	var n notify.Notification
	err = json.Unmarshal([]byte(`{"kind":"promo_blast","payload":{}}`), &n)
	require.ErrorIs(t, err, notify.ErrUnknownKind)

	_, err = notify.DecodePayload(notify.KindOrderPlaced, []byte(`{"items":"many"}`))
	require.Error(t, err)
}
