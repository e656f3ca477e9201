package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const couponColumns = `id, store_id, code, kind, value, max_discount, min_order, usage_limit, used_count, per_user_limit, valid_from, valid_to, is_active, created_at`

const createCoupon = `-- name: CreateCoupon :one
INSERT INTO coupons (store_id, code, kind, value, max_discount, min_order, usage_limit, per_user_limit, valid_from, valid_to)
VALUES ($1, upper($2), $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + couponColumns

type CreateCouponParams struct {
	StoreID      pgtype.UUID         `json:"store_id"`
	Code         string              `json:"code"`
	Kind         string              `json:"kind"`
	Value        decimal.Decimal     `json:"value"`
	MaxDiscount  decimal.NullDecimal `json:"max_discount"`
	MinOrder     decimal.Decimal     `json:"min_order"`
	UsageLimit   pgtype.Int4         `json:"usage_limit"`
	PerUserLimit pgtype.Int4         `json:"per_user_limit"`
	ValidFrom    pgtype.Timestamptz  `json:"valid_from"`
	ValidTo      pgtype.Timestamptz  `json:"valid_to"`
}

func (q *Queries) CreateCoupon(ctx context.Context, arg CreateCouponParams) (Coupon, error) {
	row := q.db.QueryRow(ctx, createCoupon,
		arg.StoreID,
		arg.Code,
		arg.Kind,
		arg.Value,
		arg.MaxDiscount,
		arg.MinOrder,
		arg.UsageLimit,
		arg.PerUserLimit,
		arg.ValidFrom,
		arg.ValidTo,
	)
	var i Coupon
	err := scanCoupon(row, &i)
	return i, err
}

const getCouponByCode = `-- name: GetCouponByCode :one
SELECT ` + couponColumns + `
FROM coupons
WHERE store_id = $1 AND upper(code) = upper($2)
`

type GetCouponByCodeParams struct {
	StoreID pgtype.UUID `json:"store_id"`
	Code    string      `json:"code"`
}

func (q *Queries) GetCouponByCode(ctx context.Context, arg GetCouponByCodeParams) (Coupon, error) {
	row := q.db.QueryRow(ctx, getCouponByCode, arg.StoreID, arg.Code)
	var i Coupon
	err := scanCoupon(row, &i)
	return i, err
}

const getCouponByCodeForUpdate = `-- name: GetCouponByCodeForUpdate :one
SELECT ` + couponColumns + `
FROM coupons
WHERE store_id = $1 AND upper(code) = upper($2)
FOR UPDATE
`

func (q *Queries) GetCouponByCodeForUpdate(ctx context.Context, arg GetCouponByCodeParams) (Coupon, error) {
	row := q.db.QueryRow(ctx, getCouponByCodeForUpdate, arg.StoreID, arg.Code)
	var i Coupon
	err := scanCoupon(row, &i)
	return i, err
}

const listCouponsByStore = `-- name: ListCouponsByStore :many
SELECT ` + couponColumns + `
FROM coupons
WHERE store_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListCouponsByStore(ctx context.Context, storeID pgtype.UUID) ([]Coupon, error) {
	rows, err := q.db.Query(ctx, listCouponsByStore, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Coupon
	for rows.Next() {
		var i Coupon
		if err := scanCoupon(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setCouponActive = `-- name: SetCouponActive :one
UPDATE coupons SET is_active = $3
WHERE store_id = $1 AND id = $2
RETURNING ` + couponColumns

type SetCouponActiveParams struct {
	StoreID  pgtype.UUID `json:"store_id"`
	ID       pgtype.UUID `json:"id"`
	IsActive bool        `json:"is_active"`
}

func (q *Queries) SetCouponActive(ctx context.Context, arg SetCouponActiveParams) (Coupon, error) {
	row := q.db.QueryRow(ctx, setCouponActive, arg.StoreID, arg.ID, arg.IsActive)
	var i Coupon
	err := scanCoupon(row, &i)
	return i, err
}

const countCouponUsageByUser = `-- name: CountCouponUsageByUser :one
SELECT count(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2
`

type CountCouponUsageByUserParams struct {
	CouponID pgtype.UUID `json:"coupon_id"`
	UserID   pgtype.UUID `json:"user_id"`
}

func (q *Queries) CountCouponUsageByUser(ctx context.Context, arg CountCouponUsageByUserParams) (int64, error) {
	row := q.db.QueryRow(ctx, countCouponUsageByUser, arg.CouponID, arg.UserID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const insertCouponUsage = `-- name: InsertCouponUsage :one
INSERT INTO coupon_usages (coupon_id, user_id, order_id)
VALUES ($1, $2, $3)
RETURNING id, coupon_id, user_id, order_id, created_at
`

type InsertCouponUsageParams struct {
	CouponID pgtype.UUID `json:"coupon_id"`
	UserID   pgtype.UUID `json:"user_id"`
	OrderID  pgtype.UUID `json:"order_id"`
}

func (q *Queries) InsertCouponUsage(ctx context.Context, arg InsertCouponUsageParams) (CouponUsage, error) {
	row := q.db.QueryRow(ctx, insertCouponUsage, arg.CouponID, arg.UserID, arg.OrderID)
	var i CouponUsage
	err := row.Scan(
		&i.ID,
		&i.CouponID,
		&i.UserID,
		&i.OrderID,
		&i.CreatedAt,
	)
	return i, err
}

const incrementCouponUsage = `-- name: IncrementCouponUsage :execrows
UPDATE coupons
SET used_count = used_count + 1
WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)
`

func (q *Queries) IncrementCouponUsage(ctx context.Context, id pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, incrementCouponUsage, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func scanCoupon(row rowScanner, i *Coupon) error {
	return row.Scan(
		&i.ID,
		&i.StoreID,
		&i.Code,
		&i.Kind,
		&i.Value,
		&i.MaxDiscount,
		&i.MinOrder,
		&i.UsageLimit,
		&i.UsedCount,
		&i.PerUserLimit,
		&i.ValidFrom,
		&i.ValidTo,
		&i.IsActive,
		&i.CreatedAt,
	)
}
