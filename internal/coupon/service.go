package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// ErrCodeTaken is returned when a store already has a coupon with the code.
var ErrCodeTaken = errors.New("coupon code already exists")

// Querier captures the database methods required by the coupon service.
type Querier interface {
	GetCouponByCode(ctx context.Context, arg db.GetCouponByCodeParams) (db.Coupon, error)
	GetCouponByCodeForUpdate(ctx context.Context, arg db.GetCouponByCodeParams) (db.Coupon, error)
	CountCouponUsageByUser(ctx context.Context, arg db.CountCouponUsageByUserParams) (int64, error)
	InsertCouponUsage(ctx context.Context, arg db.InsertCouponUsageParams) (db.CouponUsage, error)
	IncrementCouponUsage(ctx context.Context, id pgtype.UUID) (int64, error)
	CreateCoupon(ctx context.Context, arg db.CreateCouponParams) (db.Coupon, error)
	ListCouponsByStore(ctx context.Context, storeID pgtype.UUID) ([]db.Coupon, error)
	SetCouponActive(ctx context.Context, arg db.SetCouponActiveParams) (db.Coupon, error)
}

// Applied describes a coupon accepted for an order of a given subtotal.
type Applied struct {
	Code     string          `json:"code"`
	Kind     string          `json:"kind"`
	Discount decimal.Decimal `json:"discount"`
}

// Service evaluates, redeems, and manages coupons.
type Service struct {
	Q   Querier
	Now func() time.Time
	// Scale is the money precision discounts are rounded to.
	Scale pricing.Scale
	// DefaultPerUserLimit applies to coupons without their own per-user limit.
	DefaultPerUserLimit int
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Preview performs a dry-run evaluation for the current store.
func (s *Service) Preview(ctx context.Context, code, userID string, subtotal decimal.Decimal) (Applied, error) {
	if s == nil || s.Q == nil {
		return Applied{}, errors.New("coupon service not configured")
	}
	applied, _, err := s.evaluate(ctx, s.Q, code, userID, subtotal, false)
	return applied, err
}

// Redemption is a coupon reserved inside a transaction, pending its order.
type Redemption struct {
	Applied
	q        Querier
	couponID pgtype.UUID
	userID   pgtype.UUID
}

// Redeem locks the coupon row through q, which must be bound to the caller's
// transaction, and validates it against subtotal. Call Commit once the order
// row exists.
func (s *Service) Redeem(ctx context.Context, q Querier, code, userID string, subtotal decimal.Decimal) (*Redemption, error) {
	applied, row, err := s.evaluate(ctx, q, code, userID, subtotal, true)
	if err != nil {
		return nil, err
	}
	uid, _ := repo.UUID(userID)
	return &Redemption{Applied: applied, q: q, couponID: row.ID, userID: uid}, nil
}

// Commit records the usage for orderID and bumps the used count.
func (r *Redemption) Commit(ctx context.Context, orderID pgtype.UUID) error {
	n, err := r.q.IncrementCouponUsage(ctx, r.couponID)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	if n == 0 {
		return ErrUsageLimitReached
	}
	if _, err := r.q.InsertCouponUsage(ctx, db.InsertCouponUsageParams{
		CouponID: r.couponID,
		UserID:   r.userID,
		OrderID:  orderID,
	}); err != nil {
		return fmt.Errorf("insert coupon usage: %w", err)
	}
	return nil
}

func (s *Service) evaluate(ctx context.Context, q Querier, code, userID string, subtotal decimal.Decimal, lock bool) (Applied, db.Coupon, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return Applied{}, db.Coupon{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return Applied{}, db.Coupon{}, ErrNotFound
	}
	params := db.GetCouponByCodeParams{StoreID: storeID, Code: code}
	var row db.Coupon
	if lock {
		row, err = q.GetCouponByCodeForUpdate(ctx, params)
	} else {
		row, err = q.GetCouponByCode(ctx, params)
	}
	if err != nil {
		if repo.IsNotFound(err) {
			return Applied{}, db.Coupon{}, ErrNotFound
		}
		return Applied{}, db.Coupon{}, fmt.Errorf("load coupon: %w", err)
	}
	rule := RuleFromModel(row)
	if rule.PerUserLimit <= 0 && s.DefaultPerUserLimit > 0 {
		rule.PerUserLimit = int32(s.DefaultPerUserLimit)
	}
	if rule.PerUserLimit > 0 {
		if uid, err := repo.UUID(userID); err == nil {
			used, err := q.CountCouponUsageByUser(ctx, db.CountCouponUsageByUserParams{CouponID: row.ID, UserID: uid})
			if err != nil {
				return Applied{}, db.Coupon{}, fmt.Errorf("count coupon usage: %w", err)
			}
			rule.PerUserUsed = int32(used)
		}
	}
	if err := rule.Validate(s.now(), subtotal); err != nil {
		return Applied{}, db.Coupon{}, err
	}
	return Applied{Code: row.Code, Kind: row.Kind, Discount: rule.Compute(subtotal, s.Scale)}, row, nil
}

// Input is the seller payload for a coupon.
type Input struct {
	Code         string              `json:"code" validate:"required,alphanum,max=40"`
	Kind         string              `json:"kind" validate:"required,oneof=percent fixed"`
	Value        decimal.Decimal     `json:"value"`
	MaxDiscount  decimal.NullDecimal `json:"max_discount"`
	MinOrder     decimal.Decimal     `json:"min_order"`
	UsageLimit   *int32              `json:"usage_limit" validate:"omitempty,gt=0"`
	PerUserLimit *int32              `json:"per_user_limit" validate:"omitempty,gt=0"`
	ValidFrom    *time.Time          `json:"valid_from"`
	ValidTo      *time.Time          `json:"valid_to"`
}

// View is the seller representation of a coupon.
type View struct {
	ID           string              `json:"id"`
	Code         string              `json:"code"`
	Kind         string              `json:"kind"`
	Value        decimal.Decimal     `json:"value"`
	MaxDiscount  decimal.NullDecimal `json:"max_discount"`
	MinOrder     decimal.Decimal     `json:"min_order"`
	UsageLimit   *int32              `json:"usage_limit,omitempty"`
	UsedCount    int32               `json:"used_count"`
	PerUserLimit *int32              `json:"per_user_limit,omitempty"`
	ValidFrom    *time.Time          `json:"valid_from,omitempty"`
	ValidTo      *time.Time          `json:"valid_to,omitempty"`
	IsActive     bool                `json:"is_active"`
}

// ValidateInput checks the money fields and the validity window.
func ValidateInput(in Input) error {
	if !in.Value.IsPositive() {
		return fmt.Errorf("value must be positive: %w", ErrInvalidCoupon)
	}
	if in.Kind == KindPercent && in.Value.GreaterThan(hundred) {
		return fmt.Errorf("percent value must not exceed 100: %w", ErrInvalidCoupon)
	}
	if in.MaxDiscount.Valid && !in.MaxDiscount.Decimal.IsPositive() {
		return fmt.Errorf("max discount must be positive: %w", ErrInvalidCoupon)
	}
	if in.MinOrder.IsNegative() {
		return fmt.Errorf("min order must not be negative: %w", ErrInvalidCoupon)
	}
	if in.ValidFrom != nil && in.ValidTo != nil && !in.ValidTo.After(*in.ValidFrom) {
		return fmt.Errorf("valid_to must be after valid_from: %w", ErrInvalidCoupon)
	}
	return nil
}

// Create stores a coupon for the current store.
func (s *Service) Create(ctx context.Context, in Input) (View, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return View{}, err
	}
	if err := ValidateInput(in); err != nil {
		return View{}, err
	}
	row, err := s.Q.CreateCoupon(ctx, db.CreateCouponParams{
		StoreID:      storeID,
		Code:         strings.TrimSpace(in.Code),
		Kind:         in.Kind,
		Value:        in.Value,
		MaxDiscount:  in.MaxDiscount,
		MinOrder:     in.MinOrder,
		UsageLimit:   int4(in.UsageLimit),
		PerUserLimit: int4(in.PerUserLimit),
		ValidFrom:    timestamptz(in.ValidFrom),
		ValidTo:      timestamptz(in.ValidTo),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return View{}, ErrCodeTaken
		}
		return View{}, fmt.Errorf("create coupon: %w", err)
	}
	return toView(row), nil
}

// List returns the current store's coupons, newest first.
func (s *Service) List(ctx context.Context) ([]View, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.Q.ListCouponsByStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, toView(row))
	}
	return out, nil
}

// SetActive toggles a coupon of the current store.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (View, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return View{}, err
	}
	cid, err := repo.UUID(id)
	if err != nil {
		return View{}, ErrNotFound
	}
	row, err := s.Q.SetCouponActive(ctx, db.SetCouponActiveParams{StoreID: storeID, ID: cid, IsActive: active})
	if err != nil {
		if repo.IsNotFound(err) {
			return View{}, ErrNotFound
		}
		return View{}, fmt.Errorf("update coupon: %w", err)
	}
	return toView(row), nil
}

func toView(row db.Coupon) View {
	rule := RuleFromModel(row)
	v := View{
		ID:          repo.String(row.ID),
		Code:        row.Code,
		Kind:        row.Kind,
		Value:       row.Value,
		MaxDiscount: row.MaxDiscount,
		MinOrder:    row.MinOrder,
		UsageLimit:  rule.UsageLimit,
		UsedCount:   row.UsedCount,
		ValidFrom:   rule.ValidFrom,
		ValidTo:     rule.ValidTo,
		IsActive:    row.IsActive,
	}
	if row.PerUserLimit.Valid {
		limit := row.PerUserLimit.Int32
		v.PerUserLimit = &limit
	}
	return v
}

func int4(v *int32) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: *v, Valid: true}
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return repo.Timestamptz(*t)
}
