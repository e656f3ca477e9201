package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates notification payloads.
type Kind string

const (
	KindOrderPlaced         Kind = "order_placed"
	KindOrderStatusChanged  Kind = "order_status_changed"
	KindChatMessageReceived Kind = "chat_message_received"
	KindFlashSaleStarted    Kind = "flash_sale_started"
	KindFlashSaleEnded      Kind = "flash_sale_ended"
)

// ErrUnknownKind is returned when decoding a payload of an unregistered kind.
var ErrUnknownKind = errors.New("unknown notification kind")

// Payload is the closed set of notification bodies. Only types in this
// package implement it.
type Payload interface {
	Kind() Kind
	isPayload()
}

type OrderPlaced struct {
	OrderID  string          `json:"order_id"`
	StoreID  string          `json:"store_id"`
	Total    decimal.Decimal `json:"total"`
	Savings  decimal.Decimal `json:"savings"`
	Currency string          `json:"currency"`
	Items    int             `json:"items"`
	// Buyer is false for the copy sent to the store owner.
	Buyer bool `json:"buyer"`
}

type OrderStatusChanged struct {
	OrderID string `json:"order_id"`
	StoreID string `json:"store_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type ChatMessageReceived struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
	Preview        string `json:"preview"`
}

type FlashSaleStarted struct {
	FlashSaleID string    `json:"flash_sale_id"`
	StoreID     string    `json:"store_id"`
	Name        string    `json:"name"`
	EndsAt      time.Time `json:"ends_at"`
}

type FlashSaleEnded struct {
	FlashSaleID string `json:"flash_sale_id"`
	StoreID     string `json:"store_id"`
	Name        string `json:"name"`
}

func (OrderPlaced) Kind() Kind         { return KindOrderPlaced }
func (OrderStatusChanged) Kind() Kind  { return KindOrderStatusChanged }
func (ChatMessageReceived) Kind() Kind { return KindChatMessageReceived }
func (FlashSaleStarted) Kind() Kind    { return KindFlashSaleStarted }
func (FlashSaleEnded) Kind() Kind      { return KindFlashSaleEnded }

func (OrderPlaced) isPayload()         {}
func (OrderStatusChanged) isPayload()  {}
func (ChatMessageReceived) isPayload() {}
func (FlashSaleStarted) isPayload()    {}
func (FlashSaleEnded) isPayload()      {}

// DecodePayload parses raw as the payload registered for kind.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch kind {
	case KindOrderPlaced:
		p, err = decodeAs[OrderPlaced](raw)
	case KindOrderStatusChanged:
		p, err = decodeAs[OrderStatusChanged](raw)
	case KindChatMessageReceived:
		p, err = decodeAs[ChatMessageReceived](raw)
	case KindFlashSaleStarted:
		p, err = decodeAs[FlashSaleStarted](raw)
	case KindFlashSaleEnded:
		p, err = decodeAs[FlashSaleEnded](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return p, nil
}

func decodeAs[T Payload](raw []byte) (Payload, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Notification is a message addressed to one user.
type Notification struct {
	ID        string
	Recipient string
	Payload   Payload
	ReadAt    *time.Time
	CreatedAt time.Time
}

// Kind returns the payload kind, empty when no payload is set.
func (n Notification) Kind() Kind {
	if n.Payload == nil {
		return ""
	}
	return n.Payload.Kind()
}

type wireNotification struct {
	ID        string          `json:"id"`
	Recipient string          `json:"recipient"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	ReadAt    *time.Time      `json:"read_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (n Notification) MarshalJSON() ([]byte, error) {
	if n.Payload == nil {
		return nil, errors.New("notification without payload")
	}
	raw, err := json.Marshal(n.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireNotification{
		ID:        n.ID,
		Recipient: n.Recipient,
		Kind:      n.Payload.Kind(),
		Payload:   raw,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	})
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	var w wireNotification
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p, err := DecodePayload(w.Kind, w.Payload)
	if err != nil {
		return err
	}
	*n = Notification{ID: w.ID, Recipient: w.Recipient, Payload: p, ReadAt: w.ReadAt, CreatedAt: w.CreatedAt}
	return nil
}
