// Package pricing resolves flash-sale discounts and reconciles cart and
// checkout totals. Everything here is pure; callers supply the current time.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how a flash sale's value is interpreted.
type DiscountType string

const (
	// Percentage takes DiscountValue percent off the price.
	Percentage DiscountType = "PERCENTAGE"
	// FixedAmount subtracts DiscountValue from the price.
	FixedAmount DiscountType = "FIXED_AMOUNT"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == Percentage || t == FixedAmount
}

// Rule is the active flash-sale rule for one product.
//
// For Percentage rules MaxDiscount caps the discount at that percent of the
// price. For FixedAmount rules it caps the amount subtracted.
type Rule struct {
	FlashSaleID string    `json:"flash_sale_id"`
	Name        string    `json:"name"`
	Featured    bool      `json:"featured"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`

	DiscountType        DiscountType        `json:"discount_type"`
	DiscountValue       decimal.Decimal     `json:"discount_value"`
	MaxDiscount         decimal.NullDecimal `json:"max_discount"`
	CustomDiscountValue decimal.NullDecimal `json:"custom_discount_value"`
	CustomMaxDiscount   decimal.NullDecimal `json:"custom_max_discount"`
}

// ActiveAt reports whether the rule still applies at now. A rule whose end
// date is now or earlier is expired.
func (r *Rule) ActiveAt(now time.Time) bool {
	return r != nil && now.Before(r.EndDate)
}

// EffectiveValue returns the per-product override when set.
func (r *Rule) EffectiveValue() decimal.Decimal {
	if r.CustomDiscountValue.Valid {
		return r.CustomDiscountValue.Decimal
	}
	return r.DiscountValue
}

// EffectiveCap returns the per-product cap override when set, then the sale cap.
func (r *Rule) EffectiveCap() decimal.NullDecimal {
	if r.CustomMaxDiscount.Valid {
		return r.CustomMaxDiscount
	}
	return r.MaxDiscount
}
