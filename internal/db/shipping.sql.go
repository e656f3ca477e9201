package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const listShippingRates = `-- name: ListShippingRates :many
SELECT id, store_id, country, method, base_rate, per_item_rate, free_threshold, min_days, max_days
FROM shipping_rates
WHERE store_id = $1
ORDER BY country, method
`

func (q *Queries) ListShippingRates(ctx context.Context, storeID pgtype.UUID) ([]ShippingRate, error) {
	rows, err := q.db.Query(ctx, listShippingRates, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ShippingRate
	for rows.Next() {
		var i ShippingRate
		if err := rows.Scan(
			&i.ID,
			&i.StoreID,
			&i.Country,
			&i.Method,
			&i.BaseRate,
			&i.PerItemRate,
			&i.FreeThreshold,
			&i.MinDays,
			&i.MaxDays,
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

const upsertShippingRate = `-- name: UpsertShippingRate :one
INSERT INTO shipping_rates (store_id, country, method, base_rate, per_item_rate, free_threshold, min_days, max_days)
VALUES ($1, upper($2), $3, $4, $5, $6, $7, $8)
ON CONFLICT (store_id, country, method) DO UPDATE
SET base_rate = EXCLUDED.base_rate,
    per_item_rate = EXCLUDED.per_item_rate,
    free_threshold = EXCLUDED.free_threshold,
    min_days = EXCLUDED.min_days,
    max_days = EXCLUDED.max_days
RETURNING id, store_id, country, method, base_rate, per_item_rate, free_threshold, min_days, max_days
`

type UpsertShippingRateParams struct {
	StoreID       pgtype.UUID         `json:"store_id"`
	Country       string              `json:"country"`
	Method        string              `json:"method"`
	BaseRate      decimal.Decimal     `json:"base_rate"`
	PerItemRate   decimal.Decimal     `json:"per_item_rate"`
	FreeThreshold decimal.NullDecimal `json:"free_threshold"`
	MinDays       int32               `json:"min_days"`
	MaxDays       int32               `json:"max_days"`
}

func (q *Queries) UpsertShippingRate(ctx context.Context, arg UpsertShippingRateParams) (ShippingRate, error) {
	row := q.db.QueryRow(ctx, upsertShippingRate,
		arg.StoreID,
		arg.Country,
		arg.Method,
		arg.BaseRate,
		arg.PerItemRate,
		arg.FreeThreshold,
		arg.MinDays,
		arg.MaxDays,
	)
	var i ShippingRate
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.Country,
		&i.Method,
		&i.BaseRate,
		&i.PerItemRate,
		&i.FreeThreshold,
		&i.MinDays,
		&i.MaxDays,
	)
	return i, err
}

const deleteShippingRate = `-- name: DeleteShippingRate :execrows
DELETE FROM shipping_rates WHERE store_id = $1 AND id = $2
`

type DeleteShippingRateParams struct {
	StoreID pgtype.UUID `json:"store_id"`
	ID      pgtype.UUID `json:"id"`
}

func (q *Queries) DeleteShippingRate(ctx context.Context, arg DeleteShippingRateParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteShippingRate, arg.StoreID, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
