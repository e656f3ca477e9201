package coupon

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

// Coupon kinds.
const (
	KindPercent = "percent"
	KindFixed   = "fixed"
)

var (
	// ErrNotFound is returned when the code does not exist in the store.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned for coupons switched off by the seller.
	ErrInactive = errors.New("coupon inactive")
	// ErrNotStarted is returned before the validity window opens.
	ErrNotStarted = errors.New("coupon not active yet")
	// ErrExpired is returned after the validity window closed.
	ErrExpired = errors.New("coupon expired")
	// ErrMinimumOrderUnmet indicates the subtotal is below the coupon minimum.
	ErrMinimumOrderUnmet = errors.New("coupon minimum order not met")
	// ErrUsageLimitReached indicates the coupon exhausted its global quota.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrPerUserLimitReached indicates the caller used the coupon too often.
	ErrPerUserLimitReached = errors.New("coupon per-user usage limit reached")
	// ErrInvalidCoupon is returned for seller payloads that fail validation.
	ErrInvalidCoupon = errors.New("invalid coupon")
)

var hundred = decimal.NewFromInt(100)

// Rule captures the runtime constraints of a coupon.
type Rule struct {
	Code         string
	Kind         string
	Value        decimal.Decimal
	MaxDiscount  decimal.NullDecimal
	MinOrder     decimal.Decimal
	UsageLimit   *int32
	UsedCount    int32
	PerUserLimit int32
	PerUserUsed  int32
	ValidFrom    *time.Time
	ValidTo      *time.Time
	Active       bool
}

// Validate ensures the rule can be applied at now to an order of subtotal.
func (r Rule) Validate(now time.Time, subtotal decimal.Decimal) error {
	if !r.Active {
		return ErrInactive
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrNotStarted
	}
	if r.ValidTo != nil && !now.Before(*r.ValidTo) {
		return ErrExpired
	}
	if subtotal.LessThan(r.MinOrder) {
		return ErrMinimumOrderUnmet
	}
	if r.UsageLimit != nil && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	if r.PerUserLimit > 0 && r.PerUserUsed >= r.PerUserLimit {
		return ErrPerUserLimitReached
	}
	return nil
}

// Compute returns the discount for subtotal, capped by MaxDiscount and
// clamped to [0, subtotal]. Percent discounts are rounded at scale.
func (r Rule) Compute(subtotal decimal.Decimal, scale pricing.Scale) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	discount := r.Value
	if strings.EqualFold(r.Kind, KindPercent) {
		discount = scale.Round(subtotal.Mul(r.Value).Div(hundred))
	}
	if r.MaxDiscount.Valid && discount.GreaterThan(r.MaxDiscount.Decimal) {
		discount = r.MaxDiscount.Decimal
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// RuleFromModel converts a stored coupon into a Rule used for evaluation.
func RuleFromModel(c db.Coupon) Rule {
	rule := Rule{
		Code:        c.Code,
		Kind:        c.Kind,
		Value:       c.Value,
		MaxDiscount: c.MaxDiscount,
		MinOrder:    c.MinOrder,
		UsedCount:   c.UsedCount,
		Active:      c.IsActive,
	}
	if c.UsageLimit.Valid {
		limit := c.UsageLimit.Int32
		rule.UsageLimit = &limit
	}
	if c.PerUserLimit.Valid {
		rule.PerUserLimit = c.PerUserLimit.Int32
	}
	if c.ValidFrom.Valid {
		rule.ValidFrom = &c.ValidFrom.Time
	}
	if c.ValidTo.Valid {
		rule.ValidTo = &c.ValidTo.Time
	}
	return rule
}

// IsRejection reports whether err means the coupon cannot be applied, as
// opposed to a failure to evaluate it.
func IsRejection(err error) bool {
	for _, target := range []error{ErrNotFound, ErrInactive, ErrNotStarted, ErrExpired, ErrMinimumOrderUnmet, ErrUsageLimitReached, ErrPerUserLimitReached} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
