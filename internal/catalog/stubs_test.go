package catalog_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/repo"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeQueries struct {
	mu        sync.Mutex
	products  []db.Product
	sizes     []db.ProductSize
	listCalls int
}

func newFakeQueries(storeID pgtype.UUID) *fakeQueries {
	f := &fakeQueries{}
	tee := f.addProduct(storeID, "Basic Tee", "tops")
	f.addSize(tee, "S", "100", decimal.NullDecimal{}, 3)
	f.addSize(tee, "M", "120", decimal.NullDecimal{Decimal: dec("10"), Valid: true}, 0)
	hat := f.addProduct(storeID, "Cap", "hats")
	f.addSize(hat, "One", "50", decimal.NullDecimal{}, 5)
	return f
}

func (f *fakeQueries) addProduct(storeID pgtype.UUID, name, category string) pgtype.UUID {
	id := repo.FromUUID(uuid.New())
	f.products = append(f.products, db.Product{
		ID:       id,
		StoreID:  storeID,
		Slug:     strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Name:     name,
		Category: category,
		IsActive: true,
	})
	return id
}

func (f *fakeQueries) addSize(productID pgtype.UUID, label, price string, discount decimal.NullDecimal, stock int32) pgtype.UUID {
	id := repo.FromUUID(uuid.New())
	f.sizes = append(f.sizes, db.ProductSize{
		ID:              id,
		ProductID:       productID,
		Label:           label,
		Price:           dec(price),
		DiscountPercent: discount,
		Stock:           stock,
		SortOrder:       int32(len(f.sizes)),
	})
	return id
}

func (f *fakeQueries) product(slug string) db.Product {
	for _, p := range f.products {
		if p.Slug == slug {
			return p
		}
	}
	return db.Product{}
}

func (f *fakeQueries) size(productID pgtype.UUID, label string) db.ProductSize {
	for _, s := range f.sizes {
		if s.ProductID == productID && s.Label == label {
			return s
		}
	}
	return db.ProductSize{}
}

func (f *fakeQueries) matches(p db.Product, storeID pgtype.UUID, search, category pgtype.Text) bool {
	if p.StoreID != storeID || !p.IsActive {
		return false
	}
	if search.Valid && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(search.String)) {
		return false
	}
	return !category.Valid || p.Category == category.String
}

func (f *fakeQueries) CountProducts(_ context.Context, arg db.CountProductsParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.products {
		if f.matches(p, arg.StoreID, arg.Search, arg.Category) {
			n++
		}
	}
	return n, nil
}

func (f *fakeQueries) ListProducts(_ context.Context, arg db.ListProductsParams) ([]db.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var out []db.Product
	for _, p := range f.products {
		if f.matches(p, arg.StoreID, arg.Search, arg.Category) {
			out = append(out, p)
		}
	}
	start := int(arg.Offset)
	if start > len(out) {
		return nil, nil
	}
	end := start + int(arg.Limit)
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

func (f *fakeQueries) GetProductBySlug(_ context.Context, arg db.GetProductBySlugParams) (db.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.StoreID == arg.StoreID && p.Slug == arg.Slug && p.IsActive {
			return p, nil
		}
	}
	return db.Product{}, pgx.ErrNoRows
}

func (f *fakeQueries) GetProductByID(_ context.Context, arg db.GetProductByIDParams) (db.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.StoreID == arg.StoreID && p.ID == arg.ID {
			return p, nil
		}
	}
	return db.Product{}, pgx.ErrNoRows
}

func (f *fakeQueries) ListSizesByProductIDs(_ context.Context, ids []pgtype.UUID) ([]db.ProductSize, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[pgtype.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []db.ProductSize
	for _, s := range f.sizes {
		if want[s.ProductID] {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (f *fakeQueries) CreateProduct(_ context.Context, arg db.CreateProductParams) (db.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.StoreID == arg.StoreID && p.Slug == arg.Slug {
			return db.Product{}, &pgconn.PgError{Code: "23505"}
		}
	}
	row := db.Product{
		ID:          repo.FromUUID(uuid.New()),
		StoreID:     arg.StoreID,
		Slug:        arg.Slug,
		Name:        arg.Name,
		Description: arg.Description,
		Category:    arg.Category,
		ImageUrl:    arg.ImageUrl,
		IsActive:    true,
	}
	f.products = append(f.products, row)
	return row, nil
}

func (f *fakeQueries) CreateProductSize(_ context.Context, arg db.CreateProductSizeParams) (db.ProductSize, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := db.ProductSize{
		ID:              repo.FromUUID(uuid.New()),
		ProductID:       arg.ProductID,
		Label:           arg.Label,
		Price:           arg.Price,
		DiscountPercent: arg.DiscountPercent,
		Stock:           arg.Stock,
		SortOrder:       arg.SortOrder,
	}
	f.sizes = append(f.sizes, row)
	return row, nil
}

func (f *fakeQueries) ListSizesWithProduct(_ context.Context, arg db.ListSizesWithProductParams) ([]db.ListSizesWithProductRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	products := map[pgtype.UUID]db.Product{}
	for _, p := range f.products {
		if p.StoreID == arg.StoreID && p.IsActive {
			products[p.ID] = p
		}
	}
	var out []db.ListSizesWithProductRow
	for _, id := range arg.SizeIds {
		for _, s := range f.sizes {
			p, ok := products[s.ProductID]
			if s.ID != id || !ok {
				continue
			}
			out = append(out, db.ListSizesWithProductRow{
				SizeID:          s.ID,
				ProductID:       p.ID,
				ProductName:     p.Name,
				ProductSlug:     p.Slug,
				Label:           s.Label,
				Price:           s.Price,
				DiscountPercent: s.DiscountPercent,
				Stock:           s.Stock,
			})
		}
	}
	return out, nil
}

// mapLookup serves rules from a fixed map.
type mapLookup struct {
	mu    sync.Mutex
	rules map[uuid.UUID]*pricing.Rule
}

func (m *mapLookup) set(id pgtype.UUID, rule *pricing.Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rules == nil {
		m.rules = map[uuid.UUID]*pricing.Rule{}
	}
	m.rules[uuid.UUID(id.Bytes)] = rule
}

func (m *mapLookup) ActiveRule(_ context.Context, id uuid.UUID, _ time.Time) (*pricing.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rules[id], nil
}

func (m *mapLookup) ActiveRules(_ context.Context, ids []uuid.UUID, _ time.Time) (map[uuid.UUID]*pricing.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uuid.UUID]*pricing.Rule{}
	for _, id := range ids {
		if r, ok := m.rules[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func percentRule(value string, end time.Time) *pricing.Rule {
	return &pricing.Rule{
		FlashSaleID:   uuid.NewString(),
		Name:          "Payday",
		StartDate:     t0.Add(-time.Hour),
		EndDate:       end,
		DiscountType:  pricing.Percentage,
		DiscountValue: dec(value),
	}
}
