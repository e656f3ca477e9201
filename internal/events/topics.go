package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderStatusChanged = "order.status_changed"
	TopicFlashSaleStarted   = "flashsale.started"
	TopicFlashSaleEnded     = "flashsale.ended"
)

// OrderPlaced is the payload of TopicOrderPlaced.
type OrderPlaced struct {
	OrderID  string          `json:"order_id"`
	StoreID  string          `json:"store_id"`
	UserID   string          `json:"user_id"`
	Total    decimal.Decimal `json:"total"`
	Savings  decimal.Decimal `json:"savings"`
	Currency string          `json:"currency"`
	Items    int             `json:"items"`
}

// OrderStatusChanged is the payload of TopicOrderStatusChanged.
type OrderStatusChanged struct {
	OrderID string `json:"order_id"`
	StoreID string `json:"store_id"`
	UserID  string `json:"user_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	ActorID string `json:"actor_id"`
}

// FlashSaleWindow is the payload of the flash sale start and end topics.
type FlashSaleWindow struct {
	FlashSaleID string    `json:"flash_sale_id"`
	StoreID     string    `json:"store_id"`
	Name        string    `json:"name"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}
