package flashsale_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/repo"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

// fakeDB is an in-memory stand-in for the flash sale queries.
type fakeDB struct {
	mu       sync.Mutex
	sales    map[pgtype.UUID]db.FlashSale
	products map[pgtype.UUID]map[pgtype.UUID]db.FlashSaleProduct
	catalog  map[pgtype.UUID]db.Product
	rules    []db.ActiveRuleRow
	ruleErr  error
	calls    int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		sales:    map[pgtype.UUID]db.FlashSale{},
		products: map[pgtype.UUID]map[pgtype.UUID]db.FlashSaleProduct{},
		catalog:  map[pgtype.UUID]db.Product{},
	}
}

func (f *fakeDB) addProduct(storeID pgtype.UUID) pgtype.UUID {
	id := repo.FromUUID(uuid.New())
	f.catalog[id] = db.Product{ID: id, StoreID: storeID, Name: "Tee"}
	return id
}

func (f *fakeDB) CreateFlashSale(_ context.Context, arg db.CreateFlashSaleParams) (db.FlashSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := db.FlashSale{
		ID:            repo.FromUUID(uuid.New()),
		StoreID:       arg.StoreID,
		Name:          arg.Name,
		DiscountType:  arg.DiscountType,
		DiscountValue: arg.DiscountValue,
		MaxDiscount:   arg.MaxDiscount,
		StartDate:     arg.StartDate,
		EndDate:       arg.EndDate,
		Featured:      arg.Featured,
		IsActive:      arg.IsActive,
	}
	f.sales[row.ID] = row
	return row, nil
}

func (f *fakeDB) UpdateFlashSale(_ context.Context, arg db.UpdateFlashSaleParams) (db.FlashSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.sales[arg.ID]
	if !ok || row.StoreID != arg.StoreID {
		return db.FlashSale{}, pgx.ErrNoRows
	}
	row.Name = arg.Name
	row.DiscountType = arg.DiscountType
	row.DiscountValue = arg.DiscountValue
	row.MaxDiscount = arg.MaxDiscount
	row.StartDate = arg.StartDate
	row.EndDate = arg.EndDate
	row.Featured = arg.Featured
	row.IsActive = arg.IsActive
	f.sales[row.ID] = row
	return row, nil
}

func (f *fakeDB) GetFlashSale(_ context.Context, id pgtype.UUID) (db.FlashSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.sales[id]
	if !ok {
		return db.FlashSale{}, pgx.ErrNoRows
	}
	return row, nil
}

func (f *fakeDB) ListFlashSalesByStore(_ context.Context, arg db.ListFlashSalesByStoreParams) ([]db.FlashSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.FlashSale
	for _, row := range f.sales {
		if row.StoreID == arg.StoreID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeDB) ListActiveFlashSales(_ context.Context, arg db.ListActiveFlashSalesParams) ([]db.FlashSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.FlashSale
	for _, row := range f.sales {
		if row.StoreID == arg.StoreID && row.IsActive &&
			!arg.Now.Time.Before(row.StartDate.Time) && arg.Now.Time.Before(row.EndDate.Time) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeDB) SetFlashSaleActive(_ context.Context, arg db.SetFlashSaleActiveParams) (db.FlashSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.sales[arg.ID]
	if !ok || row.StoreID != arg.StoreID {
		return db.FlashSale{}, pgx.ErrNoRows
	}
	row.IsActive = arg.IsActive
	f.sales[row.ID] = row
	return row, nil
}

func (f *fakeDB) UpsertFlashSaleProduct(_ context.Context, arg db.UpsertFlashSaleProductParams) (db.FlashSaleProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.products[arg.FlashSaleID]
	if !ok {
		set = map[pgtype.UUID]db.FlashSaleProduct{}
		f.products[arg.FlashSaleID] = set
	}
	row := db.FlashSaleProduct(arg)
	set[arg.ProductID] = row
	return row, nil
}

func (f *fakeDB) DeleteFlashSaleProduct(_ context.Context, arg db.DeleteFlashSaleProductParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.products[arg.FlashSaleID]
	if _, ok := set[arg.ProductID]; !ok {
		return 0, nil
	}
	delete(set, arg.ProductID)
	return 1, nil
}

func (f *fakeDB) ListFlashSaleProducts(_ context.Context, id pgtype.UUID) ([]db.FlashSaleProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.FlashSaleProduct
	for _, row := range f.products[id] {
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeDB) GetProductByID(_ context.Context, arg db.GetProductByIDParams) (db.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.catalog[arg.ID]
	if !ok || row.StoreID != arg.StoreID {
		return db.Product{}, pgx.ErrNoRows
	}
	return row, nil
}

func (f *fakeDB) GetActiveRule(_ context.Context, arg db.GetActiveRuleParams) (db.ActiveRuleRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.ruleErr != nil {
		return db.ActiveRuleRow{}, f.ruleErr
	}
	for _, row := range f.rules {
		if row.ProductID == arg.ProductID {
			return row, nil
		}
	}
	return db.ActiveRuleRow{}, pgx.ErrNoRows
}

func (f *fakeDB) ListActiveRules(_ context.Context, arg db.ListActiveRulesParams) ([]db.ActiveRuleRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.ruleErr != nil {
		return nil, f.ruleErr
	}
	var out []db.ActiveRuleRow
	for _, id := range arg.ProductIds {
		for _, row := range f.rules {
			if row.ProductID == id {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

// countingLookup records how often the wrapped layer is hit.
type countingLookup struct {
	mu     sync.Mutex
	rules  map[uuid.UUID]*pricing.Rule
	err    error
	single int
	batch  [][]uuid.UUID
	delay  time.Duration
}

func (c *countingLookup) ActiveRule(_ context.Context, id uuid.UUID, _ time.Time) (*pricing.Rule, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.single++
	if c.err != nil {
		return nil, c.err
	}
	return c.rules[id], nil
}

func (c *countingLookup) ActiveRules(_ context.Context, ids []uuid.UUID, _ time.Time) (map[uuid.UUID]*pricing.Rule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batch = append(c.batch, append([]uuid.UUID(nil), ids...))
	if c.err != nil {
		return nil, c.err
	}
	out := map[uuid.UUID]*pricing.Rule{}
	for _, id := range ids {
		if r, ok := c.rules[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (c *countingLookup) singleCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.single
}

func percentRule(value string, end time.Time) *pricing.Rule {
	return &pricing.Rule{
		FlashSaleID:   uuid.NewString(),
		Name:          "Weekend",
		StartDate:     t0.Add(-time.Hour),
		EndDate:       end,
		DiscountType:  pricing.Percentage,
		DiscountValue: dec(value),
	}
}
