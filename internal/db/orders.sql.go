package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, store_id, user_id, status, currency, subtotal, original_subtotal, savings, discount, shipping_cost, total, coupon_code, shipping_country, shipping_method, shipping_address, created_at, updated_at`

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (store_id, user_id, status, currency, subtotal, original_subtotal, savings, discount, shipping_cost, total, coupon_code, shipping_country, shipping_method, shipping_address)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	StoreID          pgtype.UUID     `json:"store_id"`
	UserID           pgtype.UUID     `json:"user_id"`
	Status           string          `json:"status"`
	Currency         string          `json:"currency"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	OriginalSubtotal decimal.Decimal `json:"original_subtotal"`
	Savings          decimal.Decimal `json:"savings"`
	Discount         decimal.Decimal `json:"discount"`
	ShippingCost     decimal.Decimal `json:"shipping_cost"`
	Total            decimal.Decimal `json:"total"`
	CouponCode       pgtype.Text     `json:"coupon_code"`
	ShippingCountry  string          `json:"shipping_country"`
	ShippingMethod   string          `json:"shipping_method"`
	ShippingAddress  []byte          `json:"shipping_address"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.StoreID,
		arg.UserID,
		arg.Status,
		arg.Currency,
		arg.Subtotal,
		arg.OriginalSubtotal,
		arg.Savings,
		arg.Discount,
		arg.ShippingCost,
		arg.Total,
		arg.CouponCode,
		arg.ShippingCountry,
		arg.ShippingMethod,
		arg.ShippingAddress,
	)
	var i Order
	err := scanOrder(row, &i)
	return i, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, product_id, size_id, name, size_label, quantity, unit_price, final_unit_price, line_total, original_line_total, flash_sale_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, order_id, product_id, size_id, name, size_label, quantity, unit_price, final_unit_price, line_total, original_line_total, flash_sale_id
`

type CreateOrderItemParams struct {
	OrderID           pgtype.UUID     `json:"order_id"`
	ProductID         pgtype.UUID     `json:"product_id"`
	SizeID            pgtype.UUID     `json:"size_id"`
	Name              string          `json:"name"`
	SizeLabel         string          `json:"size_label"`
	Quantity          int32           `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	FinalUnitPrice    decimal.Decimal `json:"final_unit_price"`
	LineTotal         decimal.Decimal `json:"line_total"`
	OriginalLineTotal decimal.Decimal `json:"original_line_total"`
	FlashSaleID       pgtype.UUID     `json:"flash_sale_id"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.SizeID,
		arg.Name,
		arg.SizeLabel,
		arg.Quantity,
		arg.UnitPrice,
		arg.FinalUnitPrice,
		arg.LineTotal,
		arg.OriginalLineTotal,
		arg.FlashSaleID,
	)
	var i OrderItem
	err := scanOrderItem(row, &i)
	return i, err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE store_id = $1 AND id = $2
`

type GetOrderParams struct {
	StoreID pgtype.UUID `json:"store_id"`
	ID      pgtype.UUID `json:"id"`
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, arg.StoreID, arg.ID)
	var i Order
	err := scanOrder(row, &i)
	return i, err
}

const listOrdersByUser = `-- name: ListOrdersByUser :many
SELECT ` + orderColumns + `
FROM orders
WHERE store_id = $1 AND user_id = $2
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListOrdersByUserParams struct {
	StoreID pgtype.UUID `json:"store_id"`
	UserID  pgtype.UUID `json:"user_id"`
	Limit   int32       `json:"limit"`
	Offset  int32       `json:"offset"`
}

func (q *Queries) ListOrdersByUser(ctx context.Context, arg ListOrdersByUserParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByUser, arg.StoreID, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		var i Order
		if err := scanOrder(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrdersByStore = `-- name: ListOrdersByStore :many
SELECT ` + orderColumns + `
FROM orders
WHERE store_id = $1 AND ($2::text IS NULL OR status = $2::text)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListOrdersByStoreParams struct {
	StoreID pgtype.UUID `json:"store_id"`
	Status  pgtype.Text `json:"status"`
	Limit   int32       `json:"limit"`
	Offset  int32       `json:"offset"`
}

func (q *Queries) ListOrdersByStore(ctx context.Context, arg ListOrdersByStoreParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByStore, arg.StoreID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		var i Order
		if err := scanOrder(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItems = `-- name: ListOrderItems :many
SELECT id, order_id, product_id, size_id, name, size_label, quantity, unit_price, final_unit_price, line_total, original_line_total, flash_sale_id
FROM order_items
WHERE order_id = $1
ORDER BY name, size_label
`

func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := scanOrderItem(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $4, updated_at = now()
WHERE store_id = $1 AND id = $2 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	StoreID pgtype.UUID `json:"store_id"`
	ID      pgtype.UUID `json:"id"`
	From    string      `json:"from"`
	To      string      `json:"to"`
}

// UpdateOrderStatus is a compare-and-set; pgx.ErrNoRows means the order moved on.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.StoreID, arg.ID, arg.From, arg.To)
	var i Order
	err := scanOrder(row, &i)
	return i, err
}

func scanOrder(row rowScanner, i *Order) error {
	return row.Scan(
		&i.ID,
		&i.StoreID,
		&i.UserID,
		&i.Status,
		&i.Currency,
		&i.Subtotal,
		&i.OriginalSubtotal,
		&i.Savings,
		&i.Discount,
		&i.ShippingCost,
		&i.Total,
		&i.CouponCode,
		&i.ShippingCountry,
		&i.ShippingMethod,
		&i.ShippingAddress,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
}

func scanOrderItem(row rowScanner, i *OrderItem) error {
	return row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.SizeID,
		&i.Name,
		&i.SizeLabel,
		&i.Quantity,
		&i.UnitPrice,
		&i.FinalUnitPrice,
		&i.LineTotal,
		&i.OriginalLineTotal,
		&i.FlashSaleID,
	)
}

const countOrdersByUser = `-- name: CountOrdersByUser :one
SELECT count(*) FROM orders WHERE store_id = $1 AND user_id = $2
`

type CountOrdersByUserParams struct {
	StoreID pgtype.UUID `json:"store_id"`
	UserID  pgtype.UUID `json:"user_id"`
}

func (q *Queries) CountOrdersByUser(ctx context.Context, arg CountOrdersByUserParams) (int64, error) {
	row := q.db.QueryRow(ctx, countOrdersByUser, arg.StoreID, arg.UserID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countOrdersByStore = `-- name: CountOrdersByStore :one
SELECT count(*) FROM orders WHERE store_id = $1 AND ($2::text IS NULL OR status = $2::text)
`

type CountOrdersByStoreParams struct {
	StoreID pgtype.UUID `json:"store_id"`
	Status  pgtype.Text `json:"status"`
}

func (q *Queries) CountOrdersByStore(ctx context.Context, arg CountOrdersByStoreParams) (int64, error) {
	row := q.db.QueryRow(ctx, countOrdersByStore, arg.StoreID, arg.Status)
	var count int64
	err := row.Scan(&count)
	return count, err
}
