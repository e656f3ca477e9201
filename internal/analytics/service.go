package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/cache"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// ErrInvalidRange is returned when from is not before to or the span is too wide.
var ErrInvalidRange = errors.New("invalid date range")

// MaxRange bounds a single overview request.
const MaxRange = 366 * 24 * time.Hour

// Querier defines the database access required for analytics operations.
type Querier interface {
	GetStoreOverview(ctx context.Context, arg db.GetStoreOverviewParams) (db.GetStoreOverviewRow, error)
	GetDailySales(ctx context.Context, arg db.GetStoreOverviewParams) ([]db.GetDailySalesRow, error)
	GetTopProducts(ctx context.Context, arg db.GetTopProductsParams) ([]db.GetTopProductsRow, error)
}

// Service builds the seller dashboard overview, cached per store and range.
type Service struct {
	Q            Querier
	Cache        *cache.JSON
	DefaultRange time.Duration
	TopLimit     int
	Now          func() time.Time
}

// DailySales is one day of the revenue chart.
type DailySales struct {
	Day     string          `json:"day"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// TopProduct is a best seller within the range.
type TopProduct struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Overview summarises non-cancelled orders placed in [From, To).
// Savings is what flash sales took off list prices; Discount is coupons.
type Overview struct {
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	Orders            int64           `json:"orders"`
	Revenue           decimal.Decimal `json:"revenue"`
	Savings           decimal.Decimal `json:"flash_sale_savings"`
	Discount          decimal.Decimal `json:"coupon_discount"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	Daily             []DailySales    `json:"daily"`
	TopProducts       []TopProduct    `json:"top_products"`
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// DefaultWindow returns the range used when the caller gives none: the
// configured span ending at the current minute, so repeated dashboard loads
// share a cache entry.
func (s *Service) DefaultWindow() (time.Time, time.Time) {
	span := s.DefaultRange
	if span <= 0 {
		span = 30 * 24 * time.Hour
	}
	to := s.now().UTC().Truncate(time.Minute)
	return to.Add(-span), to
}

// Overview returns the dashboard for the current store.
func (s *Service) Overview(ctx context.Context, from, to time.Time) (Overview, error) {
	if !from.Before(to) || to.Sub(from) > MaxRange {
		return Overview{}, ErrInvalidRange
	}
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return Overview{}, err
	}
	from, to = from.UTC(), to.UTC()

	key := cache.KeyAnalytics(ctx, "overview", from.Format(time.RFC3339), to.Format(time.RFC3339))
	return cache.Fetch(ctx, s.Cache, key, func(ctx context.Context) (Overview, error) {
		return s.overview(ctx, storeID, from, to)
	})
}

func (s *Service) overview(ctx context.Context, storeID pgtype.UUID, from, to time.Time) (Overview, error) {
	params := db.GetStoreOverviewParams{StoreID: storeID, From: repo.Timestamptz(from), To: repo.Timestamptz(to)}
	totals, err := s.Q.GetStoreOverview(ctx, params)
	if err != nil {
		return Overview{}, fmt.Errorf("store overview: %w", err)
	}
	daily, err := s.Q.GetDailySales(ctx, params)
	if err != nil {
		return Overview{}, fmt.Errorf("daily sales: %w", err)
	}
	limit := s.TopLimit
	if limit <= 0 {
		limit = 5
	}
	top, err := s.Q.GetTopProducts(ctx, db.GetTopProductsParams{
		StoreID: storeID, From: params.From, To: params.To, Limit: int32(limit),
	})
	if err != nil {
		return Overview{}, fmt.Errorf("top products: %w", err)
	}

	out := Overview{
		From:              from,
		To:                to,
		Orders:            totals.Orders,
		Revenue:           totals.Revenue,
		Savings:           totals.Savings,
		Discount:          totals.Discount,
		AverageOrderValue: decimal.Zero,
		Daily:             make([]DailySales, 0, len(daily)),
		TopProducts:       make([]TopProduct, 0, len(top)),
	}
	if totals.Orders > 0 {
		out.AverageOrderValue = totals.Revenue.Div(decimal.NewFromInt(totals.Orders)).Round(2)
	}
	for _, d := range daily {
		day := DailySales{Orders: d.Orders, Revenue: d.Revenue}
		if d.Day.Valid {
			day.Day = d.Day.Time.Format("2006-01-02")
		}
		out.Daily = append(out.Daily, day)
	}
	for _, p := range top {
		out.TopProducts = append(out.TopProducts, TopProduct{
			ProductID: repo.String(p.ProductID),
			Name:      p.Name,
			Quantity:  p.Quantity,
			Revenue:   p.Revenue,
		})
	}
	return out, nil
}
