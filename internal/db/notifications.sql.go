package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertNotification = `-- name: InsertNotification :one
INSERT INTO notifications (recipient_id, kind, payload)
VALUES ($1, $2, $3)
RETURNING id, recipient_id, kind, payload, read_at, created_at
`

type InsertNotificationParams struct {
	RecipientID pgtype.UUID `json:"recipient_id"`
	Kind        string      `json:"kind"`
	Payload     []byte      `json:"payload"`
}

func (q *Queries) InsertNotification(ctx context.Context, arg InsertNotificationParams) (Notification, error) {
	row := q.db.QueryRow(ctx, insertNotification, arg.RecipientID, arg.Kind, arg.Payload)
	var i Notification
	err := row.Scan(
		&i.ID,
		&i.RecipientID,
		&i.Kind,
		&i.Payload,
		&i.ReadAt,
		&i.CreatedAt,
	)
	return i, err
}

const listNotifications = `-- name: ListNotifications :many
SELECT id, recipient_id, kind, payload, read_at, created_at
FROM notifications
WHERE recipient_id = $1 AND (NOT $2::bool OR read_at IS NULL)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListNotificationsParams struct {
	RecipientID pgtype.UUID `json:"recipient_id"`
	UnreadOnly  bool        `json:"unread_only"`
	Limit       int32       `json:"limit"`
	Offset      int32       `json:"offset"`
}

func (q *Queries) ListNotifications(ctx context.Context, arg ListNotificationsParams) ([]Notification, error) {
	rows, err := q.db.Query(ctx, listNotifications, arg.RecipientID, arg.UnreadOnly, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		var i Notification
		if err := rows.Scan(
			&i.ID,
			&i.RecipientID,
			&i.Kind,
			&i.Payload,
			&i.ReadAt,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countUnreadNotifications = `-- name: CountUnreadNotifications :one
SELECT count(*) FROM notifications WHERE recipient_id = $1 AND read_at IS NULL
`

func (q *Queries) CountUnreadNotifications(ctx context.Context, recipientID pgtype.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countUnreadNotifications, recipientID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const markNotificationRead = `-- name: MarkNotificationRead :execrows
UPDATE notifications SET read_at = now()
WHERE id = $1 AND recipient_id = $2 AND read_at IS NULL
`

type MarkNotificationReadParams struct {
	ID          pgtype.UUID `json:"id"`
	RecipientID pgtype.UUID `json:"recipient_id"`
}

func (q *Queries) MarkNotificationRead(ctx context.Context, arg MarkNotificationReadParams) (int64, error) {
	result, err := q.db.Exec(ctx, markNotificationRead, arg.ID, arg.RecipientID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const markAllNotificationsRead = `-- name: MarkAllNotificationsRead :execrows
UPDATE notifications SET read_at = now()
WHERE recipient_id = $1 AND read_at IS NULL
`

func (q *Queries) MarkAllNotificationsRead(ctx context.Context, recipientID pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, markAllNotificationsRead, recipientID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
