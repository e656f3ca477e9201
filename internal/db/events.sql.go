package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertDomainEvent = `-- name: InsertDomainEvent :one
INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3)
RETURNING id, topic, aggregate_id, payload, occurred_at
`

type InsertDomainEventParams struct {
	Topic       string      `json:"topic"`
	AggregateID pgtype.UUID `json:"aggregate_id"`
	Payload     []byte      `json:"payload"`
}

func (q *Queries) InsertDomainEvent(ctx context.Context, arg InsertDomainEventParams) (DomainEvent, error) {
	row := q.db.QueryRow(ctx, insertDomainEvent, arg.Topic, arg.AggregateID, arg.Payload)
	var i DomainEvent
	err := row.Scan(
		&i.ID,
		&i.Topic,
		&i.AggregateID,
		&i.Payload,
		&i.OccurredAt,
	)
	return i, err
}
