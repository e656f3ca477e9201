package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pubsub"
	"github.com/noah-isme/storefront-api/internal/repo"
)

var (
	ErrNotFound         = errors.New("notification not found")
	ErrInvalidRecipient = errors.New("invalid notification recipient")
)

// Querier is the notification persistence surface.
type Querier interface {
	InsertNotification(ctx context.Context, arg db.InsertNotificationParams) (db.Notification, error)
	ListNotifications(ctx context.Context, arg db.ListNotificationsParams) ([]db.Notification, error)
	CountUnreadNotifications(ctx context.Context, recipientID pgtype.UUID) (int64, error)
	MarkNotificationRead(ctx context.Context, arg db.MarkNotificationReadParams) (int64, error)
	MarkAllNotificationsRead(ctx context.Context, recipientID pgtype.UUID) (int64, error)
}

// Service stores notifications and pushes them to the recipient's room.
type Service struct {
	Q      Querier
	Broker pubsub.Broker
	Log    zerolog.Logger
}

// Send persists p for recipient and publishes it. A failed publish is
// logged; the notification stays readable through List.
func (s *Service) Send(ctx context.Context, recipient string, p Payload) (Notification, error) {
	if p == nil {
		return Notification{}, errors.New("notify: payload is required")
	}
	rid, err := repo.UUID(recipient)
	if err != nil {
		return Notification{}, ErrInvalidRecipient
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return Notification{}, fmt.Errorf("encode %s: %w", p.Kind(), err)
	}
	row, err := s.Q.InsertNotification(ctx, db.InsertNotificationParams{
		RecipientID: rid,
		Kind:        string(p.Kind()),
		Payload:     raw,
	})
	if err != nil {
		return Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	n := Notification{
		ID:        repo.String(row.ID),
		Recipient: repo.String(row.RecipientID),
		Payload:   p,
		ReadAt:    repo.TimePtr(row.ReadAt),
	}
	if row.CreatedAt.Valid {
		n.CreatedAt = row.CreatedAt.Time
	}

	result := "ok"
	if err := pubsub.Publish(ctx, s.Broker, pubsub.UserTopic(n.Recipient), pubsub.TypeNotification, n); err != nil {
		result = "error"
		s.Log.Warn().Err(err).Str("kind", string(p.Kind())).Str("recipient", n.Recipient).Msg("notification publish failed")
	}
	obs.Inc(obs.NotificationsPublished, string(p.Kind()), result)
	return n, nil
}

// List returns the recipient's notifications, newest first. Rows with a
// kind this build does not know are skipped.
func (s *Service) List(ctx context.Context, recipient string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	rid, err := repo.UUID(recipient)
	if err != nil {
		return nil, ErrInvalidRecipient
	}
	rows, err := s.Q.ListNotifications(ctx, db.ListNotificationsParams{
		RecipientID: rid,
		UnreadOnly:  unreadOnly,
		Limit:       int32(limit),
		Offset:      int32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]Notification, 0, len(rows))
	for _, row := range rows {
		n, err := fromRow(row)
		if err != nil {
			s.Log.Warn().Err(err).Str("id", repo.String(row.ID)).Msg("skipping undecodable notification")
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// MarkRead flags one notification as read.
func (s *Service) MarkRead(ctx context.Context, recipient, id string) error {
	rid, err := repo.UUID(recipient)
	if err != nil {
		return ErrInvalidRecipient
	}
	nid, err := repo.UUID(id)
	if err != nil {
		return ErrNotFound
	}
	n, err := s.Q.MarkNotificationRead(ctx, db.MarkNotificationReadParams{ID: nid, RecipientID: rid})
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	rid, err := repo.UUID(recipient)
	if err != nil {
		return 0, ErrInvalidRecipient
	}
	n, err := s.Q.MarkAllNotificationsRead(ctx, rid)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}

// UnreadCount returns the number of unread notifications.
func (s *Service) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	rid, err := repo.UUID(recipient)
	if err != nil {
		return 0, ErrInvalidRecipient
	}
	n, err := s.Q.CountUnreadNotifications(ctx, rid)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func fromRow(row db.Notification) (Notification, error) {
	p, err := DecodePayload(Kind(row.Kind), row.Payload)
	if err != nil {
		return Notification{}, err
	}
	n := Notification{
		ID:        repo.String(row.ID),
		Recipient: repo.String(row.RecipientID),
		Payload:   p,
		ReadAt:    repo.TimePtr(row.ReadAt),
	}
	if row.CreatedAt.Valid {
		n.CreatedAt = row.CreatedAt.Time
	}
	return n, nil
}
