package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const createFlashSale = `-- name: CreateFlashSale :one
INSERT INTO flash_sales (store_id, name, discount_type, discount_value, max_discount, start_date, end_date, featured, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, store_id, name, discount_type, discount_value, max_discount, start_date, end_date, featured, is_active, created_at, updated_at
`

type CreateFlashSaleParams struct {
	StoreID       pgtype.UUID         `json:"store_id"`
	Name          string              `json:"name"`
	DiscountType  string              `json:"discount_type"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	MaxDiscount   decimal.NullDecimal `json:"max_discount"`
	StartDate     pgtype.Timestamptz  `json:"start_date"`
	EndDate       pgtype.Timestamptz  `json:"end_date"`
	Featured      bool                `json:"featured"`
	IsActive      bool                `json:"is_active"`
}

func (q *Queries) CreateFlashSale(ctx context.Context, arg CreateFlashSaleParams) (FlashSale, error) {
	row := q.db.QueryRow(ctx, createFlashSale,
		arg.StoreID,
		arg.Name,
		arg.DiscountType,
		arg.DiscountValue,
		arg.MaxDiscount,
		arg.StartDate,
		arg.EndDate,
		arg.Featured,
		arg.IsActive,
	)
	var i FlashSale
	err := scanFlashSale(row, &i)
	return i, err
}

const updateFlashSale = `-- name: UpdateFlashSale :one
UPDATE flash_sales
SET name = $3,
    discount_type = $4,
    discount_value = $5,
    max_discount = $6,
    start_date = $7,
    end_date = $8,
    featured = $9,
    is_active = $10,
    updated_at = now()
WHERE store_id = $1 AND id = $2
RETURNING id, store_id, name, discount_type, discount_value, max_discount, start_date, end_date, featured, is_active, created_at, updated_at
`

type UpdateFlashSaleParams struct {
	StoreID       pgtype.UUID         `json:"store_id"`
	ID            pgtype.UUID         `json:"id"`
	Name          string              `json:"name"`
	DiscountType  string              `json:"discount_type"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	MaxDiscount   decimal.NullDecimal `json:"max_discount"`
	StartDate     pgtype.Timestamptz  `json:"start_date"`
	EndDate       pgtype.Timestamptz  `json:"end_date"`
	Featured      bool                `json:"featured"`
	IsActive      bool                `json:"is_active"`
}

func (q *Queries) UpdateFlashSale(ctx context.Context, arg UpdateFlashSaleParams) (FlashSale, error) {
	row := q.db.QueryRow(ctx, updateFlashSale,
		arg.StoreID,
		arg.ID,
		arg.Name,
		arg.DiscountType,
		arg.DiscountValue,
		arg.MaxDiscount,
		arg.StartDate,
		arg.EndDate,
		arg.Featured,
		arg.IsActive,
	)
	var i FlashSale
	err := scanFlashSale(row, &i)
	return i, err
}

const getFlashSale = `-- name: GetFlashSale :one
SELECT id, store_id, name, discount_type, discount_value, max_discount, start_date, end_date, featured, is_active, created_at, updated_at
FROM flash_sales
WHERE id = $1
`

func (q *Queries) GetFlashSale(ctx context.Context, id pgtype.UUID) (FlashSale, error) {
	row := q.db.QueryRow(ctx, getFlashSale, id)
	var i FlashSale
	err := scanFlashSale(row, &i)
	return i, err
}

const listFlashSalesByStore = `-- name: ListFlashSalesByStore :many
SELECT id, store_id, name, discount_type, discount_value, max_discount, start_date, end_date, featured, is_active, created_at, updated_at
FROM flash_sales
WHERE store_id = $1
ORDER BY start_date DESC
LIMIT $2 OFFSET $3
`

type ListFlashSalesByStoreParams struct {
	StoreID pgtype.UUID `json:"store_id"`
	Limit   int32       `json:"limit"`
	Offset  int32       `json:"offset"`
}

func (q *Queries) ListFlashSalesByStore(ctx context.Context, arg ListFlashSalesByStoreParams) ([]FlashSale, error) {
	rows, err := q.db.Query(ctx, listFlashSalesByStore, arg.StoreID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FlashSale
	for rows.Next() {
		var i FlashSale
		if err := scanFlashSale(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listActiveFlashSales = `-- name: ListActiveFlashSales :many
SELECT id, store_id, name, discount_type, discount_value, max_discount, start_date, end_date, featured, is_active, created_at, updated_at
FROM flash_sales
WHERE store_id = $1 AND is_active AND start_date <= $2 AND end_date > $2
ORDER BY featured DESC, end_date ASC
`

type ListActiveFlashSalesParams struct {
	StoreID pgtype.UUID        `json:"store_id"`
	Now     pgtype.Timestamptz `json:"now"`
}

func (q *Queries) ListActiveFlashSales(ctx context.Context, arg ListActiveFlashSalesParams) ([]FlashSale, error) {
	rows, err := q.db.Query(ctx, listActiveFlashSales, arg.StoreID, arg.Now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FlashSale
	for rows.Next() {
		var i FlashSale
		if err := scanFlashSale(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setFlashSaleActive = `-- name: SetFlashSaleActive :one
UPDATE flash_sales
SET is_active = $3, updated_at = now()
WHERE store_id = $1 AND id = $2
RETURNING id, store_id, name, discount_type, discount_value, max_discount, start_date, end_date, featured, is_active, created_at, updated_at
`

type SetFlashSaleActiveParams struct {
	StoreID  pgtype.UUID `json:"store_id"`
	ID       pgtype.UUID `json:"id"`
	IsActive bool        `json:"is_active"`
}

func (q *Queries) SetFlashSaleActive(ctx context.Context, arg SetFlashSaleActiveParams) (FlashSale, error) {
	row := q.db.QueryRow(ctx, setFlashSaleActive, arg.StoreID, arg.ID, arg.IsActive)
	var i FlashSale
	err := scanFlashSale(row, &i)
	return i, err
}

const upsertFlashSaleProduct = `-- name: UpsertFlashSaleProduct :one
INSERT INTO flash_sale_products (flash_sale_id, product_id, custom_discount_value, custom_max_discount)
VALUES ($1, $2, $3, $4)
ON CONFLICT (flash_sale_id, product_id) DO UPDATE
SET custom_discount_value = EXCLUDED.custom_discount_value,
    custom_max_discount = EXCLUDED.custom_max_discount
RETURNING flash_sale_id, product_id, custom_discount_value, custom_max_discount
`

type UpsertFlashSaleProductParams struct {
	FlashSaleID         pgtype.UUID         `json:"flash_sale_id"`
	ProductID           pgtype.UUID         `json:"product_id"`
	CustomDiscountValue decimal.NullDecimal `json:"custom_discount_value"`
	CustomMaxDiscount   decimal.NullDecimal `json:"custom_max_discount"`
}

func (q *Queries) UpsertFlashSaleProduct(ctx context.Context, arg UpsertFlashSaleProductParams) (FlashSaleProduct, error) {
	row := q.db.QueryRow(ctx, upsertFlashSaleProduct,
		arg.FlashSaleID,
		arg.ProductID,
		arg.CustomDiscountValue,
		arg.CustomMaxDiscount,
	)
	var i FlashSaleProduct
	err := row.Scan(
		&i.FlashSaleID,
		&i.ProductID,
		&i.CustomDiscountValue,
		&i.CustomMaxDiscount,
	)
	return i, err
}

const deleteFlashSaleProduct = `-- name: DeleteFlashSaleProduct :execrows
DELETE FROM flash_sale_products
WHERE flash_sale_id = $1 AND product_id = $2
`

type DeleteFlashSaleProductParams struct {
	FlashSaleID pgtype.UUID `json:"flash_sale_id"`
	ProductID   pgtype.UUID `json:"product_id"`
}

func (q *Queries) DeleteFlashSaleProduct(ctx context.Context, arg DeleteFlashSaleProductParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteFlashSaleProduct, arg.FlashSaleID, arg.ProductID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listFlashSaleProducts = `-- name: ListFlashSaleProducts :many
SELECT flash_sale_id, product_id, custom_discount_value, custom_max_discount
FROM flash_sale_products
WHERE flash_sale_id = $1
ORDER BY product_id
`

func (q *Queries) ListFlashSaleProducts(ctx context.Context, flashSaleID pgtype.UUID) ([]FlashSaleProduct, error) {
	rows, err := q.db.Query(ctx, listFlashSaleProducts, flashSaleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FlashSaleProduct
	for rows.Next() {
		var i FlashSaleProduct
		if err := rows.Scan(
			&i.FlashSaleID,
			&i.ProductID,
			&i.CustomDiscountValue,
			&i.CustomMaxDiscount,
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

const getActiveRule = `-- name: GetActiveRule :one
SELECT fsp.product_id, fs.id, fs.name, fs.featured, fs.discount_type, fs.discount_value, fs.max_discount,
       fsp.custom_discount_value, fsp.custom_max_discount, fs.start_date, fs.end_date
FROM flash_sale_products fsp
JOIN flash_sales fs ON fs.id = fsp.flash_sale_id
WHERE fsp.product_id = $1
  AND fs.is_active
  AND fs.start_date <= $2
  AND fs.end_date > $2
ORDER BY fs.featured DESC, fs.end_date ASC
LIMIT 1
`

type GetActiveRuleParams struct {
	ProductID pgtype.UUID        `json:"product_id"`
	Now       pgtype.Timestamptz `json:"now"`
}

// ActiveRuleRow is returned by GetActiveRule and ListActiveRules.
type ActiveRuleRow struct {
	ProductID           pgtype.UUID         `json:"product_id"`
	FlashSaleID         pgtype.UUID         `json:"flash_sale_id"`
	Name                string              `json:"name"`
	Featured            bool                `json:"featured"`
	DiscountType        string              `json:"discount_type"`
	DiscountValue       decimal.Decimal     `json:"discount_value"`
	MaxDiscount         decimal.NullDecimal `json:"max_discount"`
	CustomDiscountValue decimal.NullDecimal `json:"custom_discount_value"`
	CustomMaxDiscount   decimal.NullDecimal `json:"custom_max_discount"`
	StartDate           pgtype.Timestamptz  `json:"start_date"`
	EndDate             pgtype.Timestamptz  `json:"end_date"`
}

func (q *Queries) GetActiveRule(ctx context.Context, arg GetActiveRuleParams) (ActiveRuleRow, error) {
	row := q.db.QueryRow(ctx, getActiveRule, arg.ProductID, arg.Now)
	var i ActiveRuleRow
	err := scanActiveRule(row, &i)
	return i, err
}

const listActiveRules = `-- name: ListActiveRules :many
SELECT DISTINCT ON (fsp.product_id)
       fsp.product_id, fs.id, fs.name, fs.featured, fs.discount_type, fs.discount_value, fs.max_discount,
       fsp.custom_discount_value, fsp.custom_max_discount, fs.start_date, fs.end_date
FROM flash_sale_products fsp
JOIN flash_sales fs ON fs.id = fsp.flash_sale_id
WHERE fsp.product_id = ANY($1::uuid[])
  AND fs.is_active
  AND fs.start_date <= $2
  AND fs.end_date > $2
ORDER BY fsp.product_id, fs.featured DESC, fs.end_date ASC
`

type ListActiveRulesParams struct {
	ProductIds []pgtype.UUID      `json:"product_ids"`
	Now        pgtype.Timestamptz `json:"now"`
}

func (q *Queries) ListActiveRules(ctx context.Context, arg ListActiveRulesParams) ([]ActiveRuleRow, error) {
	rows, err := q.db.Query(ctx, listActiveRules, arg.ProductIds, arg.Now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ActiveRuleRow
	for rows.Next() {
		var i ActiveRuleRow
		if err := scanActiveRule(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlashSale(row rowScanner, i *FlashSale) error {
	return row.Scan(
		&i.ID,
		&i.StoreID,
		&i.Name,
		&i.DiscountType,
		&i.DiscountValue,
		&i.MaxDiscount,
		&i.StartDate,
		&i.EndDate,
		&i.Featured,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
}

func scanActiveRule(row rowScanner, i *ActiveRuleRow) error {
	return row.Scan(
		&i.ProductID,
		&i.FlashSaleID,
		&i.Name,
		&i.Featured,
		&i.DiscountType,
		&i.DiscountValue,
		&i.MaxDiscount,
		&i.CustomDiscountValue,
		&i.CustomMaxDiscount,
		&i.StartDate,
		&i.EndDate,
	)
}
