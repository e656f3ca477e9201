package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput marks inputs that indicate an upstream data bug. They are
// rejected rather than clamped.
var ErrInvalidInput = errors.New("invalid pricing input")

var hundred = decimal.NewFromInt(100)

// AfterSizeDiscount applies a standing size markdown to base.
func AfterSizeDiscount(base, sizeDiscountPercent decimal.Decimal) decimal.Decimal {
	return base.Mul(hundred.Sub(sizeDiscountPercent)).Div(hundred)
}

// Resolve computes the final unit price for base after the size discount and
// the flash-sale rule. A nil or expired rule yields the size-discounted price.
// The result is never negative and is not rounded.
func Resolve(base, sizeDiscountPercent decimal.Decimal, rule *Rule, now time.Time) (decimal.Decimal, error) {
	if base.IsNegative() {
		return decimal.Zero, fmt.Errorf("base price %s: %w", base, ErrInvalidInput)
	}
	if sizeDiscountPercent.IsNegative() || sizeDiscountPercent.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("size discount %s%%: %w", sizeDiscountPercent, ErrInvalidInput)
	}
	after := AfterSizeDiscount(base, sizeDiscountPercent)
	if !rule.ActiveAt(now) {
		return after, nil
	}
	if err := validateRule(rule); err != nil {
		return decimal.Zero, err
	}

	value := rule.EffectiveValue()
	limit := rule.EffectiveCap()
	var candidate decimal.Decimal
	switch rule.DiscountType {
	case Percentage:
		candidate = after.Mul(hundred.Sub(value)).Div(hundred)
		if limit.Valid {
			maxAmount := after.Mul(limit.Decimal).Div(hundred)
			if after.Sub(candidate).GreaterThan(maxAmount) {
				candidate = after.Sub(maxAmount)
			}
		}
	case FixedAmount:
		amount := value
		if limit.Valid {
			amount = decimal.Min(amount, limit.Decimal)
		}
		candidate = after.Sub(amount)
	}
	if candidate.IsNegative() {
		return decimal.Zero, nil
	}
	return candidate, nil
}

func validateRule(r *Rule) error {
	if !r.DiscountType.Valid() {
		return fmt.Errorf("discount type %q: %w", r.DiscountType, ErrInvalidInput)
	}
	if r.DiscountValue.IsNegative() {
		return fmt.Errorf("discount value %s: %w", r.DiscountValue, ErrInvalidInput)
	}
	if r.CustomDiscountValue.Valid && r.CustomDiscountValue.Decimal.IsNegative() {
		return fmt.Errorf("custom discount value %s: %w", r.CustomDiscountValue.Decimal, ErrInvalidInput)
	}
	if r.MaxDiscount.Valid && r.MaxDiscount.Decimal.IsNegative() {
		return fmt.Errorf("max discount %s: %w", r.MaxDiscount.Decimal, ErrInvalidInput)
	}
	if r.CustomMaxDiscount.Valid && r.CustomMaxDiscount.Decimal.IsNegative() {
		return fmt.Errorf("custom max discount %s: %w", r.CustomMaxDiscount.Decimal, ErrInvalidInput)
	}
	return nil
}
