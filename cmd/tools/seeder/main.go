// Command seeder fills a development database with a demo store, a catalog
// with one running flash sale, a coupon and shipping rates, then prints
// bearer tokens for the store owner and a customer.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/app"
	"github.com/noah-isme/storefront-api/internal/auth"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/config"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/repo"
)

type sizeSeed struct {
	label    string
	price    string
	discount string
	stock    int32
}

type productSeed struct {
	slug, name, category string
	sizes                []sizeSeed
	onSale               bool
}

var catalog = []productSeed{
	{slug: "linen-shirt", name: "Linen Shirt", category: "tops", onSale: true, sizes: []sizeSeed{
		{label: "S", price: "39.90", stock: 25},
		{label: "M", price: "39.90", stock: 40},
		{label: "L", price: "42.90", discount: "10", stock: 30},
	}},
	{slug: "denim-jacket", name: "Denim Jacket", category: "outerwear", onSale: true, sizes: []sizeSeed{
		{label: "M", price: "89.00", stock: 12},
		{label: "L", price: "89.00", stock: 8},
	}},
	{slug: "canvas-tote", name: "Canvas Tote", category: "accessories", sizes: []sizeSeed{
		{label: "One size", price: "19.50", stock: 100},
	}},
}

func main() {
	slug := flag.String("store", "demo", "store slug")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of printed tokens")
	flag.Parse()

	cfg := config.MustLoad()
	logger := app.Logger(cfg, "seeder")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	infra, err := app.Open(ctx, cfg, logger, app.Options{AppName: "storefront-seeder"})
	if err != nil {
		logger.Fatal().Err(err).Msg("open infrastructure")
	}
	defer infra.Close()

	tx, err := infra.Pool.Begin(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	store, err := seed(ctx, infra.Queries.WithTx(tx), *slug, cfg.CurrencyCode, time.Now().UTC(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	if err := tx.Commit(ctx); err != nil {
		logger.Fatal().Err(err).Msg("commit")
	}

	tokens := &auth.Tokens{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience, TTL: *tokenTTL}
	storeID := repo.String(store.ID)
	seller, err := tokens.Issue(common.Principal{UserID: repo.String(store.OwnerID), Role: common.RoleSeller, StoreID: storeID})
	if err != nil {
		logger.Fatal().Err(err).Msg("issue seller token")
	}
	customer, err := tokens.Issue(common.Principal{UserID: uuid.NewString(), Role: common.RoleCustomer})
	if err != nil {
		logger.Fatal().Err(err).Msg("issue customer token")
	}

	fmt.Printf("store    %s (%s)\n", store.Slug, storeID)
	fmt.Printf("seller   %s\n", seller)
	fmt.Printf("customer %s\n", customer)
}

func seed(ctx context.Context, q *db.Queries, slug, currency string, now time.Time, log zerolog.Logger) (db.Store, error) {
	store, err := q.CreateStore(ctx, db.CreateStoreParams{
		Slug:     slug,
		Name:     "Demo Store",
		Currency: currency,
		OwnerID:  repo.FromUUID(uuid.New()),
	})
	if err != nil {
		return db.Store{}, fmt.Errorf("create store: %w", err)
	}

	var saleProducts []pgtype.UUID
	for _, p := range catalog {
		id, created, err := seedProduct(ctx, q, store.ID, p)
		if err != nil {
			return db.Store{}, err
		}
		if created && p.onSale {
			saleProducts = append(saleProducts, id)
		}
		log.Info().Str("product", p.slug).Bool("created", created).Msg("product")
	}

	if len(saleProducts) > 0 {
		sale, err := q.CreateFlashSale(ctx, db.CreateFlashSaleParams{
			StoreID:       store.ID,
			Name:          "Weekend Flash Sale",
			DiscountType:  string(pricing.Percentage),
			DiscountValue: decimal.NewFromInt(25),
			MaxDiscount:   decimal.NewNullDecimal(decimal.NewFromInt(15)),
			StartDate:     repo.Timestamptz(now.Add(-time.Hour)),
			EndDate:       repo.Timestamptz(now.Add(48 * time.Hour)),
			Featured:      true,
			IsActive:      true,
		})
		if err != nil {
			return db.Store{}, fmt.Errorf("create flash sale: %w", err)
		}
		for _, pid := range saleProducts {
			if _, err := q.UpsertFlashSaleProduct(ctx, db.UpsertFlashSaleProductParams{FlashSaleID: sale.ID, ProductID: pid}); err != nil {
				return db.Store{}, fmt.Errorf("attach product: %w", err)
			}
		}
	}

	if _, err := q.GetCouponByCode(ctx, db.GetCouponByCodeParams{StoreID: store.ID, Code: "WELCOME10"}); repo.IsNotFound(err) {
		_, err = q.CreateCoupon(ctx, db.CreateCouponParams{
			StoreID:      store.ID,
			Code:         "WELCOME10",
			Kind:         "percent",
			Value:        decimal.NewFromInt(10),
			MaxDiscount:  decimal.NewNullDecimal(decimal.NewFromInt(20)),
			MinOrder:     decimal.NewFromInt(30),
			PerUserLimit: pgtype.Int4{Int32: 1, Valid: true},
		})
		if err != nil {
			return db.Store{}, fmt.Errorf("create coupon: %w", err)
		}
	} else if err != nil {
		return db.Store{}, fmt.Errorf("load coupon: %w", err)
	}

	rates := []db.UpsertShippingRateParams{
		{Country: "*", Method: "standard", BaseRate: decimal.RequireFromString("7.50"), PerItemRate: decimal.RequireFromString("1.00"), FreeThreshold: decimal.NewNullDecimal(decimal.NewFromInt(100)), MinDays: 5, MaxDays: 10},
		{Country: "US", Method: "standard", BaseRate: decimal.RequireFromString("4.99"), PerItemRate: decimal.RequireFromString("0.50"), FreeThreshold: decimal.NewNullDecimal(decimal.NewFromInt(75)), MinDays: 3, MaxDays: 5},
		{Country: "US", Method: "express", BaseRate: decimal.RequireFromString("14.99"), PerItemRate: decimal.RequireFromString("1.50"), MinDays: 1, MaxDays: 2},
	}
	for _, rate := range rates {
		rate.StoreID = store.ID
		if _, err := q.UpsertShippingRate(ctx, rate); err != nil {
			return db.Store{}, fmt.Errorf("upsert shipping rate %s/%s: %w", rate.Country, rate.Method, err)
		}
	}
	return store, nil
}

func seedProduct(ctx context.Context, q *db.Queries, storeID pgtype.UUID, p productSeed) (pgtype.UUID, bool, error) {
	existing, err := q.GetProductBySlug(ctx, db.GetProductBySlugParams{StoreID: storeID, Slug: p.slug})
	if err == nil {
		return existing.ID, false, nil
	}
	if !repo.IsNotFound(err) {
		return pgtype.UUID{}, false, fmt.Errorf("load product %s: %w", p.slug, err)
	}
	product, err := q.CreateProduct(ctx, db.CreateProductParams{
		StoreID:     storeID,
		Slug:        p.slug,
		Name:        p.name,
		Description: p.name + " from the demo catalog.",
		Category:    p.category,
	})
	if err != nil {
		return pgtype.UUID{}, false, fmt.Errorf("create product %s: %w", p.slug, err)
	}
	for i, s := range p.sizes {
		var discount decimal.NullDecimal
		if s.discount != "" {
			discount = decimal.NewNullDecimal(decimal.RequireFromString(s.discount))
		}
		_, err := q.CreateProductSize(ctx, db.CreateProductSizeParams{
			ProductID:       product.ID,
			Label:           s.label,
			Price:           decimal.RequireFromString(s.price),
			DiscountPercent: discount,
			Stock:           s.stock,
			SortOrder:       int32(i),
		})
		if err != nil {
			return pgtype.UUID{}, false, fmt.Errorf("create size %s/%s: %w", p.slug, s.label, err)
		}
	}
	return product.ID, true, nil
}
