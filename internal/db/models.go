package db

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type Store struct {
	ID        pgtype.UUID        `json:"id"`
	Slug      string             `json:"slug"`
	Name      string             `json:"name"`
	Currency  string             `json:"currency"`
	OwnerID   pgtype.UUID        `json:"owner_id"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type Product struct {
	ID          pgtype.UUID        `json:"id"`
	StoreID     pgtype.UUID        `json:"store_id"`
	Slug        string             `json:"slug"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Category    string             `json:"category"`
	ImageUrl    pgtype.Text        `json:"image_url"`
	IsActive    bool               `json:"is_active"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
}

type ProductSize struct {
	ID              pgtype.UUID         `json:"id"`
	ProductID       pgtype.UUID         `json:"product_id"`
	Label           string              `json:"label"`
	Price           decimal.Decimal     `json:"price"`
	DiscountPercent decimal.NullDecimal `json:"discount_percent"`
	Stock           int32               `json:"stock"`
	SortOrder       int32               `json:"sort_order"`
}

type FlashSale struct {
	ID            pgtype.UUID         `json:"id"`
	StoreID       pgtype.UUID         `json:"store_id"`
	Name          string              `json:"name"`
	DiscountType  string              `json:"discount_type"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	MaxDiscount   decimal.NullDecimal `json:"max_discount"`
	StartDate     pgtype.Timestamptz  `json:"start_date"`
	EndDate       pgtype.Timestamptz  `json:"end_date"`
	Featured      bool                `json:"featured"`
	IsActive      bool                `json:"is_active"`
	CreatedAt     pgtype.Timestamptz  `json:"created_at"`
	UpdatedAt     pgtype.Timestamptz  `json:"updated_at"`
}

type FlashSaleProduct struct {
	FlashSaleID         pgtype.UUID         `json:"flash_sale_id"`
	ProductID           pgtype.UUID         `json:"product_id"`
	CustomDiscountValue decimal.NullDecimal `json:"custom_discount_value"`
	CustomMaxDiscount   decimal.NullDecimal `json:"custom_max_discount"`
}

type Coupon struct {
	ID           pgtype.UUID         `json:"id"`
	StoreID      pgtype.UUID         `json:"store_id"`
	Code         string              `json:"code"`
	Kind         string              `json:"kind"`
	Value        decimal.Decimal     `json:"value"`
	MaxDiscount  decimal.NullDecimal `json:"max_discount"`
	MinOrder     decimal.Decimal     `json:"min_order"`
	UsageLimit   pgtype.Int4         `json:"usage_limit"`
	UsedCount    int32               `json:"used_count"`
	PerUserLimit pgtype.Int4         `json:"per_user_limit"`
	ValidFrom    pgtype.Timestamptz  `json:"valid_from"`
	ValidTo      pgtype.Timestamptz  `json:"valid_to"`
	IsActive     bool                `json:"is_active"`
	CreatedAt    pgtype.Timestamptz  `json:"created_at"`
}

type ShippingRate struct {
	ID            pgtype.UUID         `json:"id"`
	StoreID       pgtype.UUID         `json:"store_id"`
	Country       string              `json:"country"`
	Method        string              `json:"method"`
	BaseRate      decimal.Decimal     `json:"base_rate"`
	PerItemRate   decimal.Decimal     `json:"per_item_rate"`
	FreeThreshold decimal.NullDecimal `json:"free_threshold"`
	MinDays       int32               `json:"min_days"`
	MaxDays       int32               `json:"max_days"`
}

type Order struct {
	ID               pgtype.UUID        `json:"id"`
	StoreID          pgtype.UUID        `json:"store_id"`
	UserID           pgtype.UUID        `json:"user_id"`
	Status           string             `json:"status"`
	Currency         string             `json:"currency"`
	Subtotal         decimal.Decimal    `json:"subtotal"`
	OriginalSubtotal decimal.Decimal    `json:"original_subtotal"`
	Savings          decimal.Decimal    `json:"savings"`
	Discount         decimal.Decimal    `json:"discount"`
	ShippingCost     decimal.Decimal    `json:"shipping_cost"`
	Total            decimal.Decimal    `json:"total"`
	CouponCode       pgtype.Text        `json:"coupon_code"`
	ShippingCountry  string             `json:"shipping_country"`
	ShippingMethod   string             `json:"shipping_method"`
	ShippingAddress  []byte             `json:"shipping_address"`
	CreatedAt        pgtype.Timestamptz `json:"created_at"`
	UpdatedAt        pgtype.Timestamptz `json:"updated_at"`
}

type OrderItem struct {
	ID                pgtype.UUID     `json:"id"`
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

type CouponUsage struct {
	ID        pgtype.UUID        `json:"id"`
	CouponID  pgtype.UUID        `json:"coupon_id"`
	UserID    pgtype.UUID        `json:"user_id"`
	OrderID   pgtype.UUID        `json:"order_id"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type Notification struct {
	ID          pgtype.UUID        `json:"id"`
	RecipientID pgtype.UUID        `json:"recipient_id"`
	Kind        string             `json:"kind"`
	Payload     []byte             `json:"payload"`
	ReadAt      pgtype.Timestamptz `json:"read_at"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

type Conversation struct {
	ID             pgtype.UUID        `json:"id"`
	StoreID        pgtype.UUID        `json:"store_id"`
	CustomerID     pgtype.UUID        `json:"customer_id"`
	LastMessageAt  pgtype.Timestamptz `json:"last_message_at"`
	CustomerUnread int32              `json:"customer_unread"`
	StoreUnread    int32              `json:"store_unread"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

type ChatMessage struct {
	ID             string             `json:"id"`
	ConversationID pgtype.UUID        `json:"conversation_id"`
	SenderID       pgtype.UUID        `json:"sender_id"`
	SenderRole     string             `json:"sender_role"`
	Body           string             `json:"body"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

type DomainEvent struct {
	ID          pgtype.UUID        `json:"id"`
	Topic       string             `json:"topic"`
	AggregateID pgtype.UUID        `json:"aggregate_id"`
	Payload     []byte             `json:"payload"`
	OccurredAt  pgtype.Timestamptz `json:"occurred_at"`
}
