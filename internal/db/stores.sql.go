package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createStore = `-- name: CreateStore :one
INSERT INTO stores (slug, name, currency, owner_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
RETURNING id, slug, name, currency, owner_id, created_at
`

type CreateStoreParams struct {
	Slug     string      `json:"slug"`
	Name     string      `json:"name"`
	Currency string      `json:"currency"`
	OwnerID  pgtype.UUID `json:"owner_id"`
}

func (q *Queries) CreateStore(ctx context.Context, arg CreateStoreParams) (Store, error) {
	row := q.db.QueryRow(ctx, createStore, arg.Slug, arg.Name, arg.Currency, arg.OwnerID)
	var i Store
	err := row.Scan(
		&i.ID,
		&i.Slug,
		&i.Name,
		&i.Currency,
		&i.OwnerID,
		&i.CreatedAt,
	)
	return i, err
}

const getStoreByKey = `-- name: GetStoreByKey :one
SELECT id, slug, name, currency, owner_id, created_at
FROM stores
WHERE id::text = $1 OR slug = lower($1)
LIMIT 1
`

func (q *Queries) GetStoreByKey(ctx context.Context, key string) (Store, error) {
	row := q.db.QueryRow(ctx, getStoreByKey, key)
	var i Store
	err := row.Scan(
		&i.ID,
		&i.Slug,
		&i.Name,
		&i.Currency,
		&i.OwnerID,
		&i.CreatedAt,
	)
	return i, err
}
