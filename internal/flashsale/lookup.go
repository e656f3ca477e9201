// Package flashsale manages flash sales and answers "which rule applies to
// this product right now". Lookups come in three layers: Postgres, a Redis
// cache in front of it, and a breaker-guarded fallback that degrades to base
// pricing instead of failing checkout.
package flashsale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// Lookup finds the active rule for products at an instant. A nil rule means
// no sale applies.
type Lookup interface {
	ActiveRule(ctx context.Context, productID uuid.UUID, now time.Time) (*pricing.Rule, error)
	ActiveRules(ctx context.Context, productIDs []uuid.UUID, now time.Time) (map[uuid.UUID]*pricing.Rule, error)
}

// RuleQuerier is the subset of db.Querier used by PGLookup.
type RuleQuerier interface {
	GetActiveRule(ctx context.Context, arg db.GetActiveRuleParams) (db.ActiveRuleRow, error)
	ListActiveRules(ctx context.Context, arg db.ListActiveRulesParams) ([]db.ActiveRuleRow, error)
}

// PGLookup reads rules straight from Postgres. When several sales cover a
// product the featured one wins, then the one ending first.
type PGLookup struct {
	Q RuleQuerier
}

func (l PGLookup) ActiveRule(ctx context.Context, productID uuid.UUID, now time.Time) (*pricing.Rule, error) {
	row, err := l.Q.GetActiveRule(ctx, db.GetActiveRuleParams{
		ProductID: repo.FromUUID(productID),
		Now:       repo.Timestamptz(now),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			obs.Inc(obs.FlashSaleLookups, "db", "miss")
			return nil, nil
		}
		return nil, fmt.Errorf("flashsale: active rule: %w", err)
	}
	obs.Inc(obs.FlashSaleLookups, "db", "hit")
	return RuleFromRow(row), nil
}

func (l PGLookup) ActiveRules(ctx context.Context, productIDs []uuid.UUID, now time.Time) (map[uuid.UUID]*pricing.Rule, error) {
	out := make(map[uuid.UUID]*pricing.Rule, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(productIDs))
	seen := make(map[uuid.UUID]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	params := db.ListActiveRulesParams{Now: repo.Timestamptz(now)}
	for _, id := range ids {
		params.ProductIds = append(params.ProductIds, repo.FromUUID(id))
	}
	rows, err := l.Q.ListActiveRules(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("flashsale: active rules: %w", err)
	}
	for _, row := range rows {
		out[uuid.UUID(row.ProductID.Bytes)] = RuleFromRow(row)
	}
	obs.Inc(obs.FlashSaleLookups, "db", "batch")
	return out, nil
}

// RuleFromRow maps a joined sale/product row to a pricing rule.
func RuleFromRow(row db.ActiveRuleRow) *pricing.Rule {
	return &pricing.Rule{
		FlashSaleID:         repo.String(row.FlashSaleID),
		Name:                row.Name,
		Featured:            row.Featured,
		StartDate:           row.StartDate.Time,
		EndDate:             row.EndDate.Time,
		DiscountType:        pricing.DiscountType(row.DiscountType),
		DiscountValue:       row.DiscountValue,
		MaxDiscount:         row.MaxDiscount,
		CustomDiscountValue: row.CustomDiscountValue,
		CustomMaxDiscount:   row.CustomMaxDiscount,
	}
}
