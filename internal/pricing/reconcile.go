package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one cart or order line, built fresh per request.
type LineItem struct {
	ProductID           string
	SizeID              string
	Name                string
	Size                string
	UnitPrice           decimal.Decimal
	SizeDiscountPercent decimal.NullDecimal
	Quantity            int
	Rule                *Rule
}

// Breakdown is the priced view of a LineItem.
type Breakdown struct {
	ProductID         string          `json:"product_id"`
	SizeID            string          `json:"size_id"`
	Name              string          `json:"name"`
	Size              string          `json:"size,omitempty"`
	Quantity          int             `json:"quantity"`
	FinalUnitPrice    decimal.Decimal `json:"final_unit_price"`
	OriginalUnitPrice decimal.Decimal `json:"original_unit_price"`
	LineTotal         decimal.Decimal `json:"line_total"`
	OriginalLineTotal decimal.Decimal `json:"original_line_total"`
	Savings           decimal.Decimal `json:"savings"`
	FlashSaleID       string          `json:"flash_sale_id,omitempty"`
	FlashSaleEndsAt   *time.Time      `json:"flash_sale_ends_at,omitempty"`
}

// Summary aggregates the reconciled lines.
type Summary struct {
	Items             []Breakdown     `json:"items"`
	ItemCount         int             `json:"item_count"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	OriginalSubtotal  decimal.Decimal `json:"original_subtotal"`
	Savings           decimal.Decimal `json:"savings"`
	HasActiveDiscount bool            `json:"has_active_discount"`
	// NextExpiry is the earliest end date of an applied rule. Clients
	// recompute once it passes.
	NextExpiry *time.Time `json:"next_expiry,omitempty"`
}

// DefaultScale is the rounding precision used by most currencies.
const DefaultScale int32 = 2

// Scale is the number of decimal places money is rounded to, half away from
// zero. The zero value rounds at DefaultScale; use Places for anything else,
// including whole currency units.
type Scale struct {
	places int32
	set    bool
}

// Places returns a Scale of n decimal places.
func Places(n int32) Scale { return Scale{places: n, set: true} }

// Digits reports the number of decimal places.
func (s Scale) Digits() int32 {
	if !s.set {
		return DefaultScale
	}
	return s.places
}

// Round rounds d half away from zero.
func (s Scale) Round(d decimal.Decimal) decimal.Decimal { return d.Round(s.Digits()) }

// Reconciler prices a set of line items.
type Reconciler struct {
	Now   func() time.Time
	Scale Scale
}

func (r Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Reconcile prices items at the reconciler's current time.
func (r Reconciler) Reconcile(items []LineItem) (Summary, error) {
	return r.ReconcileAt(items, r.now())
}

// ReconcileAt prices items as of now. Each unit price is rounded before
// multiplying by quantity so line totals always equal unit price times quantity.
// The original column uses the price before the size discount.
func (r Reconciler) ReconcileAt(items []LineItem, now time.Time) (Summary, error) {
	scale := r.Scale
	sum := Summary{
		Items:            make([]Breakdown, 0, len(items)),
		Subtotal:         decimal.Zero,
		OriginalSubtotal: decimal.Zero,
		Savings:          decimal.Zero,
	}
	for i, it := range items {
		if it.Quantity < 1 {
			return Summary{}, fmt.Errorf("item %d quantity %d: %w", i, it.Quantity, ErrInvalidInput)
		}
		final, err := Resolve(it.UnitPrice, it.SizeDiscountPercent.Decimal, it.Rule, now)
		if err != nil {
			return Summary{}, fmt.Errorf("item %d: %w", i, err)
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		b := Breakdown{
			ProductID:         it.ProductID,
			SizeID:            it.SizeID,
			Name:              it.Name,
			Size:              it.Size,
			Quantity:          it.Quantity,
			FinalUnitPrice:    scale.Round(final),
			OriginalUnitPrice: scale.Round(it.UnitPrice),
		}
		b.LineTotal = b.FinalUnitPrice.Mul(qty)
		b.OriginalLineTotal = b.OriginalUnitPrice.Mul(qty)
		b.Savings = b.OriginalLineTotal.Sub(b.LineTotal)
		if it.Rule.ActiveAt(now) {
			end := it.Rule.EndDate
			b.FlashSaleID = it.Rule.FlashSaleID
			b.FlashSaleEndsAt = &end
			if sum.NextExpiry == nil || end.Before(*sum.NextExpiry) {
				sum.NextExpiry = &end
			}
		}
		sum.Items = append(sum.Items, b)
		sum.ItemCount += it.Quantity
		sum.Subtotal = sum.Subtotal.Add(b.LineTotal)
		sum.OriginalSubtotal = sum.OriginalSubtotal.Add(b.OriginalLineTotal)
	}
	sum.Savings = sum.OriginalSubtotal.Sub(sum.Subtotal)
	sum.HasActiveDiscount = sum.Savings.IsPositive()
	return sum, nil
}
