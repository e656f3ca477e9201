// Package pubsub is the realtime fan-out port. Services publish envelopes to
// topics; the websocket gateway subscribes on behalf of connected clients.
// Delivery is best effort with no ordering guarantees.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventType names the kind of realtime envelope.
type EventType string

const (
	TypeNotification     EventType = "notification"
	TypeChatMessage      EventType = "chat.message"
	TypeOrderStatus      EventType = "order.status"
	TypeFlashSaleStarted EventType = "flashsale.started"
	TypeFlashSaleEnded   EventType = "flashsale.ended"
)

// ErrClosed is returned when publishing to or subscribing on a closed broker.
var ErrClosed = errors.New("pubsub: broker closed")

// Envelope is the JSON frame pushed to subscribers.
type Envelope struct {
	Type   EventType       `json:"type"`
	Topic  string          `json:"topic"`
	Data   json.RawMessage `json:"data"`
	SentAt time.Time       `json:"sent_at"`
}

// NewEnvelope encodes data into an envelope stamped with the current time.
func NewEnvelope(kind EventType, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("pubsub: encode %s: %w", kind, err)
	}
	return Envelope{Type: kind, Data: raw, SentAt: time.Now().UTC()}, nil
}

// Handler receives envelopes for a subscription. It must not block for long.
type Handler func(Envelope)

// Subscription is cancelled with Close.
type Subscription interface {
	Close() error
}

// Broker publishes envelopes to topics and delivers them to subscribers.
type Broker interface {
	Publish(ctx context.Context, topic string, env Envelope) error
	Subscribe(ctx context.Context, topic string, h Handler) (Subscription, error)
}

// UserTopic is the private room of a user.
func UserTopic(userID string) string { return "user:" + strings.TrimSpace(userID) }

// StoreTopic is the seller dashboard room of a store.
func StoreTopic(storeID string) string { return "store:" + strings.TrimSpace(storeID) }

// StorefrontTopic carries public broadcasts for a store's shoppers.
func StorefrontTopic(storeID string) string { return "storefront:" + strings.TrimSpace(storeID) }

// Publish builds an envelope and publishes it in one step.
func Publish(ctx context.Context, b Broker, topic string, kind EventType, data any) error {
	if b == nil {
		return nil
	}
	env, err := NewEnvelope(kind, data)
	if err != nil {
		return err
	}
	return b.Publish(ctx, topic, env)
}

func validTopic(topic string) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("pubsub: topic is required")
	}
	return nil
}
