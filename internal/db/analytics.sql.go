package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const getStoreOverview = `-- name: GetStoreOverview :one
SELECT count(*)::bigint AS orders,
       COALESCE(sum(total), 0)::numeric AS revenue,
       COALESCE(sum(savings), 0)::numeric AS savings,
       COALESCE(sum(discount), 0)::numeric AS discount
FROM orders
WHERE store_id = $1
  AND status <> 'CANCELLED'
  AND created_at >= $2
  AND created_at < $3
`

type GetStoreOverviewParams struct {
	StoreID pgtype.UUID        `json:"store_id"`
	From    pgtype.Timestamptz `json:"from"`
	To      pgtype.Timestamptz `json:"to"`
}

type GetStoreOverviewRow struct {
	Orders   int64           `json:"orders"`
	Revenue  decimal.Decimal `json:"revenue"`
	Savings  decimal.Decimal `json:"savings"`
	Discount decimal.Decimal `json:"discount"`
}

func (q *Queries) GetStoreOverview(ctx context.Context, arg GetStoreOverviewParams) (GetStoreOverviewRow, error) {
	row := q.db.QueryRow(ctx, getStoreOverview, arg.StoreID, arg.From, arg.To)
	var i GetStoreOverviewRow
	err := row.Scan(
		&i.Orders,
		&i.Revenue,
		&i.Savings,
		&i.Discount,
	)
	return i, err
}

const getDailySales = `-- name: GetDailySales :many
SELECT date_trunc('day', created_at)::date AS day,
       count(*)::bigint AS orders,
       COALESCE(sum(total), 0)::numeric AS revenue
FROM orders
WHERE store_id = $1
  AND status <> 'CANCELLED'
  AND created_at >= $2
  AND created_at < $3
GROUP BY 1
ORDER BY 1
`

type GetDailySalesRow struct {
	Day     pgtype.Date     `json:"day"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

func (q *Queries) GetDailySales(ctx context.Context, arg GetStoreOverviewParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, getDailySales, arg.StoreID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetDailySalesRow
	for rows.Next() {
		var i GetDailySalesRow
		if err := rows.Scan(&i.Day, &i.Orders, &i.Revenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTopProducts = `-- name: GetTopProducts :many
SELECT oi.product_id,
       min(oi.name) AS name,
       sum(oi.quantity)::bigint AS quantity,
       COALESCE(sum(oi.line_total), 0)::numeric AS revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.store_id = $1
  AND o.status <> 'CANCELLED'
  AND o.created_at >= $2
  AND o.created_at < $3
GROUP BY oi.product_id
ORDER BY quantity DESC, revenue DESC
LIMIT $4
`

type GetTopProductsParams struct {
	StoreID pgtype.UUID        `json:"store_id"`
	From    pgtype.Timestamptz `json:"from"`
	To      pgtype.Timestamptz `json:"to"`
	Limit   int32              `json:"limit"`
}

type GetTopProductsRow struct {
	ProductID pgtype.UUID     `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

func (q *Queries) GetTopProducts(ctx context.Context, arg GetTopProductsParams) ([]GetTopProductsRow, error) {
	rows, err := q.db.Query(ctx, getTopProducts, arg.StoreID, arg.From, arg.To, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetTopProductsRow
	for rows.Next() {
		var i GetTopProductsRow
		if err := rows.Scan(&i.ProductID, &i.Name, &i.Quantity, &i.Revenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
