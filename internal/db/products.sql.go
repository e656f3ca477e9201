package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const countProducts = `-- name: CountProducts :one
SELECT count(*)
FROM products
WHERE store_id = $1
  AND is_active
  AND ($2::text IS NULL OR name ILIKE '%' || $2::text || '%')
  AND ($3::text IS NULL OR category = $3::text)
`

type CountProductsParams struct {
	StoreID  pgtype.UUID `json:"store_id"`
	Search   pgtype.Text `json:"search"`
	Category pgtype.Text `json:"category"`
}

func (q *Queries) CountProducts(ctx context.Context, arg CountProductsParams) (int64, error) {
	row := q.db.QueryRow(ctx, countProducts, arg.StoreID, arg.Search, arg.Category)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (store_id, slug, name, description, category, image_url)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, store_id, slug, name, description, category, image_url, is_active, created_at, updated_at
`

type CreateProductParams struct {
	StoreID     pgtype.UUID `json:"store_id"`
	Slug        string      `json:"slug"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	ImageUrl    pgtype.Text `json:"image_url"`
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.StoreID,
		arg.Slug,
		arg.Name,
		arg.Description,
		arg.Category,
		arg.ImageUrl,
	)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.Slug,
		&i.Name,
		&i.Description,
		&i.Category,
		&i.ImageUrl,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createProductSize = `-- name: CreateProductSize :one
INSERT INTO product_sizes (product_id, label, price, discount_percent, stock, sort_order)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, product_id, label, price, discount_percent, stock, sort_order
`

type CreateProductSizeParams struct {
	ProductID       pgtype.UUID         `json:"product_id"`
	Label           string              `json:"label"`
	Price           decimal.Decimal     `json:"price"`
	DiscountPercent decimal.NullDecimal `json:"discount_percent"`
	Stock           int32               `json:"stock"`
	SortOrder       int32               `json:"sort_order"`
}

func (q *Queries) CreateProductSize(ctx context.Context, arg CreateProductSizeParams) (ProductSize, error) {
	row := q.db.QueryRow(ctx, createProductSize,
		arg.ProductID,
		arg.Label,
		arg.Price,
		arg.DiscountPercent,
		arg.Stock,
		arg.SortOrder,
	)
	var i ProductSize
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.Label,
		&i.Price,
		&i.DiscountPercent,
		&i.Stock,
		&i.SortOrder,
	)
	return i, err
}

const decrementSizeStock = `-- name: DecrementSizeStock :execrows
UPDATE product_sizes
SET stock = stock - $2
WHERE id = $1 AND stock >= $2
`

type DecrementSizeStockParams struct {
	ID       pgtype.UUID `json:"id"`
	Quantity int32       `json:"quantity"`
}

func (q *Queries) DecrementSizeStock(ctx context.Context, arg DecrementSizeStockParams) (int64, error) {
	result, err := q.db.Exec(ctx, decrementSizeStock, arg.ID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getProductByID = `-- name: GetProductByID :one
SELECT id, store_id, slug, name, description, category, image_url, is_active, created_at, updated_at
FROM products
WHERE store_id = $1 AND id = $2
`

type GetProductByIDParams struct {
	StoreID pgtype.UUID `json:"store_id"`
	ID      pgtype.UUID `json:"id"`
}

func (q *Queries) GetProductByID(ctx context.Context, arg GetProductByIDParams) (Product, error) {
	row := q.db.QueryRow(ctx, getProductByID, arg.StoreID, arg.ID)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.Slug,
		&i.Name,
		&i.Description,
		&i.Category,
		&i.ImageUrl,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getProductBySlug = `-- name: GetProductBySlug :one
SELECT id, store_id, slug, name, description, category, image_url, is_active, created_at, updated_at
FROM products
WHERE store_id = $1 AND slug = $2 AND is_active
`

type GetProductBySlugParams struct {
	StoreID pgtype.UUID `json:"store_id"`
	Slug    string      `json:"slug"`
}

func (q *Queries) GetProductBySlug(ctx context.Context, arg GetProductBySlugParams) (Product, error) {
	row := q.db.QueryRow(ctx, getProductBySlug, arg.StoreID, arg.Slug)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.Slug,
		&i.Name,
		&i.Description,
		&i.Category,
		&i.ImageUrl,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listProducts = `-- name: ListProducts :many
SELECT id, store_id, slug, name, description, category, image_url, is_active, created_at, updated_at
FROM products
WHERE store_id = $1
  AND is_active
  AND ($2::text IS NULL OR name ILIKE '%' || $2::text || '%')
  AND ($3::text IS NULL OR category = $3::text)
ORDER BY created_at DESC, id
LIMIT $4 OFFSET $5
`

type ListProductsParams struct {
	StoreID  pgtype.UUID `json:"store_id"`
	Search   pgtype.Text `json:"search"`
	Category pgtype.Text `json:"category"`
	Limit    int32       `json:"limit"`
	Offset   int32       `json:"offset"`
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts,
		arg.StoreID,
		arg.Search,
		arg.Category,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		var i Product
		if err := rows.Scan(
			&i.ID,
			&i.StoreID,
			&i.Slug,
			&i.Name,
			&i.Description,
			&i.Category,
			&i.ImageUrl,
			&i.IsActive,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const listSizesByProductIDs = `-- name: ListSizesByProductIDs :many
SELECT id, product_id, label, price, discount_percent, stock, sort_order
FROM product_sizes
WHERE product_id = ANY($1::uuid[])
ORDER BY product_id, sort_order, label
`

func (q *Queries) ListSizesByProductIDs(ctx context.Context, productIds []pgtype.UUID) ([]ProductSize, error) {
	rows, err := q.db.Query(ctx, listSizesByProductIDs, productIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProductSize
	for rows.Next() {
		var i ProductSize
		if err := rows.Scan(
			&i.ID,
			&i.ProductID,
			&i.Label,
			&i.Price,
			&i.DiscountPercent,
			&i.Stock,
			&i.SortOrder,
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

const listSizesWithProduct = `-- name: ListSizesWithProduct :many
SELECT s.id, s.product_id, p.name, p.slug, s.label, s.price, s.discount_percent, s.stock
FROM product_sizes s
JOIN products p ON p.id = s.product_id
WHERE p.store_id = $1 AND p.is_active AND s.id = ANY($2::uuid[])
`

type ListSizesWithProductParams struct {
	StoreID pgtype.UUID   `json:"store_id"`
	SizeIds []pgtype.UUID `json:"size_ids"`
}

type ListSizesWithProductRow struct {
	SizeID          pgtype.UUID         `json:"size_id"`
	ProductID       pgtype.UUID         `json:"product_id"`
	ProductName     string              `json:"product_name"`
	ProductSlug     string              `json:"product_slug"`
	Label           string              `json:"label"`
	Price           decimal.Decimal     `json:"price"`
	DiscountPercent decimal.NullDecimal `json:"discount_percent"`
	Stock           int32               `json:"stock"`
}

func (q *Queries) ListSizesWithProduct(ctx context.Context, arg ListSizesWithProductParams) ([]ListSizesWithProductRow, error) {
	rows, err := q.db.Query(ctx, listSizesWithProduct, arg.StoreID, arg.SizeIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListSizesWithProductRow
	for rows.Next() {
		var i ListSizesWithProductRow
		if err := rows.Scan(
			&i.SizeID,
			&i.ProductID,
			&i.ProductName,
			&i.ProductSlug,
			&i.Label,
			&i.Price,
			&i.DiscountPercent,
			&i.Stock,
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
