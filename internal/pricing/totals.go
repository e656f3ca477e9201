package pricing

import "github.com/shopspring/decimal"

// Totals is the order level money summary shown at checkout.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals combines the reconciled subtotal with a coupon discount and a
// shipping fee. The discount is clamped to [0, subtotal].
func ComputeTotals(subtotal, discount, shipping decimal.Decimal) Totals {
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if shipping.IsNegative() {
		shipping = decimal.Zero
	}
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Total:    subtotal.Sub(discount).Add(shipping),
	}
}
