package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/flashsale"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// SizeQuerier loads sizes with their product for pricing.
type SizeQuerier interface {
	ListSizesWithProduct(ctx context.Context, arg db.ListSizesWithProductParams) ([]db.ListSizesWithProductRow, error)
}

// Line is a size and quantity to price.
type Line struct {
	SizeID   string
	Quantity int
}

// Priced is the reconciled result for a set of lines.
type Priced struct {
	Summary pricing.Summary
	// Missing lists size ids that no longer exist or whose product is hidden.
	Missing []string
	// Stock is the current stock per size id.
	Stock map[string]int32
}

// Pricer turns stored lines into a reconciled summary using the latest
// product prices and the currently active flash sale rules. Cart views and
// checkout share it so both always agree.
type Pricer struct {
	Q          SizeQuerier
	Lookup     flashsale.Lookup
	Reconciler pricing.Reconciler
}

// Price hydrates lines for storeID and reconciles them at now.
func (p Pricer) Price(ctx context.Context, storeID pgtype.UUID, lines []Line, now time.Time) (Priced, error) {
	out := Priced{Stock: map[string]int32{}}
	ids := make([]pgtype.UUID, 0, len(lines))
	for _, l := range lines {
		id, err := repo.UUID(l.SizeID)
		if err != nil {
			out.Missing = append(out.Missing, l.SizeID)
			continue
		}
		ids = append(ids, id)
	}
	rows := map[string]db.ListSizesWithProductRow{}
	if len(ids) > 0 {
		found, err := p.Q.ListSizesWithProduct(ctx, db.ListSizesWithProductParams{StoreID: storeID, SizeIds: ids})
		if err != nil {
			return Priced{}, fmt.Errorf("load sizes: %w", err)
		}
		for _, row := range found {
			rows[repo.String(row.SizeID)] = row
		}
	}

	productIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		productIDs = append(productIDs, uuid.UUID(row.ProductID.Bytes))
	}
	rules := map[uuid.UUID]*pricing.Rule{}
	if p.Lookup != nil && len(productIDs) > 0 {
		var err error
		rules, err = p.Lookup.ActiveRules(ctx, productIDs, now)
		if err != nil {
			return Priced{}, fmt.Errorf("load flash sale rules: %w", err)
		}
	}

	items := make([]pricing.LineItem, 0, len(lines))
	for _, l := range lines {
		row, ok := rows[normalizeID(l.SizeID)]
		if !ok {
			if _, err := uuid.Parse(l.SizeID); err == nil {
				out.Missing = append(out.Missing, l.SizeID)
			}
			continue
		}
		out.Stock[repo.String(row.SizeID)] = row.Stock
		rule := rules[uuid.UUID(row.ProductID.Bytes)]
		items = append(items, pricing.LineItem{
			ProductID:           repo.String(row.ProductID),
			SizeID:              repo.String(row.SizeID),
			Name:                row.ProductName,
			Size:                row.Label,
			UnitPrice:           row.Price,
			SizeDiscountPercent: row.DiscountPercent,
			Quantity:            l.Quantity,
			Rule:                rule,
		})
		recordResolution(rule, now)
	}
	summary, err := p.Reconciler.ReconcileAt(items, now)
	if err != nil {
		return Priced{}, err
	}
	out.Summary = summary
	return out, nil
}

func normalizeID(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return parsed.String()
}

func recordResolution(rule *pricing.Rule, now time.Time) {
	label := "none"
	if rule.ActiveAt(now) {
		label = string(rule.DiscountType)
	}
	obs.Inc(obs.PriceResolutions, label)
}
