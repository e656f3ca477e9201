package catalog_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/cache"
	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/repo"
	"github.com/noah-isme/storefront-api/internal/tenant"
)

type fixture struct {
	ctx     context.Context
	queries *fakeQueries
	lookup  *mapLookup
	svc     *catalog.Service
	mr      *miniredis.Miniredis
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	storeID := uuid.New()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	queries := newFakeQueries(repo.FromUUID(storeID))
	lookup := &mapLookup{}
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      queries,
		Cache:        cache.New(client, time.Minute),
		Lookup:       lookup,
		DefaultLimit: 20,
		MaxLimit:     50,
		Now:          func() time.Time { return t0 },
	})
	require.NoError(t, err)
	return fixture{
		ctx:     tenant.With(context.Background(), storeID.String()),
		queries: queries,
		lookup:  lookup,
		svc:     svc,
		mr:      mr,
	}
}

func TestParseListParams(t *testing.T) {
	fx := newFixture(t)

	params, err := fx.svc.ParseListParams(url.Values{"q": {" tee "}, "limit": {"500"}})
	require.NoError(t, err)
	require.Equal(t, "tee", params.Query)
	require.Equal(t, 1, params.Page)
	require.Equal(t, 50, params.Limit)

	_, err = fx.svc.ParseListParams(url.Values{"page": {"0"}})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}

func TestListProductsResolvesFlashSalePrices(t *testing.T) {
	fx := newFixture(t)
	tee := fx.queries.product("basic-tee")
	rule := percentRule("20", t0.Add(time.Hour))
	fx.lookup.set(tee.ID, rule)

	result, err := fx.svc.ListProducts(fx.ctx, catalog.ListParams{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.EqualValues(t, 2, result.Total)
	require.Len(t, result.Items, 2)

	var view catalog.ProductView
	for _, item := range result.Items {
		if item.Slug == "basic-tee" {
			view = item
		}
	}
	require.Len(t, view.Sizes, 2)
	require.True(t, view.Sizes[0].FinalPrice.Equal(dec("80")), view.Sizes[0].FinalPrice.String())
	// 120 less the 10% size discount, then 20% off.
	require.True(t, view.Sizes[1].FinalPrice.Equal(dec("86.4")), view.Sizes[1].FinalPrice.String())
	require.False(t, view.Sizes[1].InStock)
	require.True(t, view.FromPrice.Equal(dec("80")))
	require.True(t, view.OriginalPrice.Equal(dec("100")))
	require.NotNil(t, view.FlashSale)
	require.Equal(t, rule.FlashSaleID, view.FlashSale.ID)
	require.True(t, view.InStock)
}

func TestListProductsCachesRowsButNotPrices(t *testing.T) {
	fx := newFixture(t)
	tee := fx.queries.product("basic-tee")

	first, err := fx.svc.ListProducts(fx.ctx, catalog.ListParams{Query: "tee", Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	require.Nil(t, first.Items[0].FlashSale)
	require.True(t, first.Items[0].FromPrice.Equal(dec("100")))

	fx.lookup.set(tee.ID, percentRule("50", t0.Add(time.Hour)))
	second, err := fx.svc.ListProducts(fx.ctx, catalog.ListParams{Query: "tee", Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 1, fx.queries.listCalls)
	require.True(t, second.Items[0].FromPrice.Equal(dec("50")))
	require.NotNil(t, second.Items[0].FlashSale)
}

func TestExpiredRuleIsIgnored(t *testing.T) {
	fx := newFixture(t)
	tee := fx.queries.product("basic-tee")
	fx.lookup.set(tee.ID, percentRule("20", t0))

	view, err := fx.svc.GetProductDetail(fx.ctx, "basic-tee")
	require.NoError(t, err)
	require.Nil(t, view.FlashSale)
	require.True(t, view.FromPrice.Equal(dec("100")))
}

func TestGetProductDetailNotFound(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.GetProductDetail(fx.ctx, "missing")
	require.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = fx.svc.GetProductDetail(context.Background(), "basic-tee")
	require.ErrorIs(t, err, repo.ErrTenantMissing)
}

func TestCreateProductInvalidatesCatalog(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.ListProducts(fx.ctx, catalog.ListParams{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.NotEmpty(t, fx.mr.Keys())

	created, err := fx.svc.CreateProduct(fx.ctx, catalog.ProductInput{
		Name:     "Linen Shirt",
		Category: "tops",
		Sizes:    []catalog.SizeInput{{Label: "L", Price: dec("75"), Stock: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, "linen-shirt", created.Slug)
	require.Len(t, created.Sizes, 1)
	require.Empty(t, fx.mr.Keys())

	result, err := fx.svc.ListProducts(fx.ctx, catalog.ListParams{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.EqualValues(t, 3, result.Total)

	_, err = fx.svc.CreateProduct(fx.ctx, catalog.ProductInput{Name: "Linen shirt", Category: "tops"})
	require.ErrorIs(t, err, catalog.ErrSlugTaken)
}

func TestAddSize(t *testing.T) {
	fx := newFixture(t)
	tee := fx.queries.product("basic-tee")

	size, err := fx.svc.AddSize(fx.ctx, repo.String(tee.ID), catalog.SizeInput{Label: "XL", Price: dec("130"), Stock: 1})
	require.NoError(t, err)
	require.True(t, size.FinalPrice.Equal(dec("130")))

	_, err = fx.svc.AddSize(fx.ctx, uuid.NewString(), catalog.SizeInput{Label: "XL", Price: dec("130")})
	require.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = fx.svc.AddSize(fx.ctx, repo.String(tee.ID), catalog.SizeInput{Label: "XL", Price: dec("-1")})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "summer-tee-2025", catalog.Slugify("  Summer Tee (2025)! "))
	require.Equal(t, "", catalog.Slugify("!!!"))
}
