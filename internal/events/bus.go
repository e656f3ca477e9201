// Package events records domain events in Postgres and fans them out to
// in-process notifiers once stored.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/obs"
)

var (
	errNoStore     = errors.New("events: store not configured")
	errNoTopic     = errors.New("events: topic is required")
	errNoAggregate = errors.New("events: aggregate id is required")
)

// EventStore persists events. *db.Queries satisfies it.
type EventStore interface {
	InsertDomainEvent(ctx context.Context, arg db.InsertDomainEventParams) (db.DomainEvent, error)
}

// Notifier reacts to a stored event.
type Notifier interface {
	Notify(ctx context.Context, event db.DomainEvent) error
}

// Bus stores events, then hands them to every notifier in order.
type Bus struct {
	Store     EventStore
	Notifiers []Notifier
	Log       zerolog.Logger
}

// Emit stores payload under topic for aggregateID and notifies. payload may
// be nil, raw JSON ([]byte, json.RawMessage, string) or any marshalable
// value. Once stored the event is returned even if a notifier failed; the
// notifier errors are joined into err.
func (b *Bus) Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) (db.DomainEvent, error) {
	switch {
	case b == nil || b.Store == nil:
		return db.DomainEvent{}, errNoStore
	case strings.TrimSpace(topic) == "":
		return db.DomainEvent{}, errNoTopic
	case !aggregateID.Valid:
		return db.DomainEvent{}, errNoAggregate
	}
	body, err := encode(payload)
	if err != nil {
		return db.DomainEvent{}, fmt.Errorf("events: encode payload: %w", err)
	}
	ev, err := b.Store.InsertDomainEvent(ctx, db.InsertDomainEventParams{
		Topic:       strings.TrimSpace(topic),
		AggregateID: aggregateID,
		Payload:     body,
	})
	if err != nil {
		return db.DomainEvent{}, fmt.Errorf("events: persist event: %w", err)
	}
	obs.Inc(obs.EventsEmitted, ev.Topic)
	return ev, b.Dispatch(ctx, ev)
}

// Dispatch notifies about an event that is already stored. Every notifier
// runs even when an earlier one failed.
func (b *Bus) Dispatch(ctx context.Context, ev db.DomainEvent) error {
	var errs []error
	for _, n := range b.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("events: notify %s: %w", ev.Topic, err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		b.Log.Warn().Err(err).Str("topic", ev.Topic).Int("failed", len(errs)).Msg("event fan-out degraded")
	}
	return err
}

// Decode unmarshals an event payload into dst.
func Decode(ev db.DomainEvent, dst any) error {
	if err := json.Unmarshal(ev.Payload, dst); err != nil {
		return fmt.Errorf("events: decode %s: %w", ev.Topic, err)
	}
	return nil
}

func encode(payload any) ([]byte, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	case string:
		raw = []byte(strings.TrimSpace(v))
	default:
		return json.Marshal(v)
	}
	if len(raw) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid json")
	}
	return append([]byte(nil), raw...), nil
}
