package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/pubsub"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// Sender delivers a notification to one user.
type Sender interface {
	Send(ctx context.Context, recipient string, p Payload) (Notification, error)
}

// StoreFinder resolves a store to find its owner.
type StoreFinder interface {
	GetStoreByKey(ctx context.Context, key string) (db.Store, error)
}

// EventNotifier turns domain events into notifications for buyers and store
// owners, and pushes order updates to the seller dashboard room.
type EventNotifier struct {
	Sender Sender
	Stores StoreFinder
	Broker pubsub.Broker
}

// Notify implements events.Notifier. Topics it does not handle are ignored.
func (n EventNotifier) Notify(ctx context.Context, ev db.DomainEvent) error {
	switch ev.Topic {
	case events.TopicOrderPlaced:
		var p events.OrderPlaced
		if err := events.Decode(ev, &p); err != nil {
			return err
		}
		body := OrderPlaced{OrderID: p.OrderID, StoreID: p.StoreID, Total: p.Total, Savings: p.Savings, Currency: p.Currency, Items: p.Items}
		buyer := body
		buyer.Buyer = true
		return errors.Join(
			n.send(ctx, p.UserID, buyer),
			n.toOwner(ctx, p.StoreID, "", body),
			n.dashboard(ctx, p.StoreID, p),
		)
	case events.TopicOrderStatusChanged:
		var p events.OrderStatusChanged
		if err := events.Decode(ev, &p); err != nil {
			return err
		}
		body := OrderStatusChanged{OrderID: p.OrderID, StoreID: p.StoreID, From: p.From, To: p.To}
		var errs []error
		if p.ActorID != p.UserID {
			errs = append(errs, n.send(ctx, p.UserID, body))
		}
		errs = append(errs, n.toOwner(ctx, p.StoreID, p.ActorID, body), n.dashboard(ctx, p.StoreID, p))
		return errors.Join(errs...)
	case events.TopicFlashSaleStarted:
		var p events.FlashSaleWindow
		if err := events.Decode(ev, &p); err != nil {
			return err
		}
		return n.toOwner(ctx, p.StoreID, "", FlashSaleStarted{FlashSaleID: p.FlashSaleID, StoreID: p.StoreID, Name: p.Name, EndsAt: p.EndDate})
	case events.TopicFlashSaleEnded:
		var p events.FlashSaleWindow
		if err := events.Decode(ev, &p); err != nil {
			return err
		}
		return n.toOwner(ctx, p.StoreID, "", FlashSaleEnded{FlashSaleID: p.FlashSaleID, StoreID: p.StoreID, Name: p.Name})
	}
	return nil
}

func (n EventNotifier) send(ctx context.Context, recipient string, p Payload) error {
	if recipient == "" || n.Sender == nil {
		return nil
	}
	_, err := n.Sender.Send(ctx, recipient, p)
	return err
}

// toOwner notifies the store owner unless they caused the event.
func (n EventNotifier) toOwner(ctx context.Context, storeID, actorID string, p Payload) error {
	if n.Stores == nil || storeID == "" {
		return nil
	}
	store, err := n.Stores.GetStoreByKey(ctx, storeID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("load store %s: %w", storeID, err)
	}
	owner := repo.String(store.OwnerID)
	if owner == "" || owner == actorID {
		return nil
	}
	return n.send(ctx, owner, p)
}

func (n EventNotifier) dashboard(ctx context.Context, storeID string, data any) error {
	if storeID == "" {
		return nil
	}
	return pubsub.Publish(ctx, n.Broker, pubsub.StoreTopic(storeID), pubsub.TypeOrderStatus, data)
}
