package flashsale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/repo"
)

var (
	// ErrNotFound is returned when a sale or product is not in the current store.
	ErrNotFound = errors.New("flash sale not found")
	// ErrInvalidInput is returned for sales or overrides that fail validation.
	ErrInvalidInput = errors.New("invalid flash sale")
)

var hundred = decimal.NewFromInt(100)

// Status values derived from the sale window.
const (
	StatusScheduled = "scheduled"
	StatusActive    = "active"
	StatusEnded     = "ended"
	StatusInactive  = "inactive"
)

// Querier is the subset of db.Querier used by Service.
type Querier interface {
	CreateFlashSale(ctx context.Context, arg db.CreateFlashSaleParams) (db.FlashSale, error)
	UpdateFlashSale(ctx context.Context, arg db.UpdateFlashSaleParams) (db.FlashSale, error)
	GetFlashSale(ctx context.Context, id pgtype.UUID) (db.FlashSale, error)
	ListFlashSalesByStore(ctx context.Context, arg db.ListFlashSalesByStoreParams) ([]db.FlashSale, error)
	ListActiveFlashSales(ctx context.Context, arg db.ListActiveFlashSalesParams) ([]db.FlashSale, error)
	SetFlashSaleActive(ctx context.Context, arg db.SetFlashSaleActiveParams) (db.FlashSale, error)
	UpsertFlashSaleProduct(ctx context.Context, arg db.UpsertFlashSaleProductParams) (db.FlashSaleProduct, error)
	DeleteFlashSaleProduct(ctx context.Context, arg db.DeleteFlashSaleProductParams) (int64, error)
	ListFlashSaleProducts(ctx context.Context, flashSaleID pgtype.UUID) ([]db.FlashSaleProduct, error)
	GetProductByID(ctx context.Context, arg db.GetProductByIDParams) (db.Product, error)
}

// Scheduler arranges the start and end notifications of a sale window.
type Scheduler interface {
	ScheduleWindow(ctx context.Context, sale db.FlashSale) error
}

// Invalidator drops cached rules for products.
type Invalidator interface {
	Invalidate(ctx context.Context, productIDs ...uuid.UUID) error
}

// Service implements seller management and storefront listing of flash sales.
type Service struct {
	Q         Querier
	Scheduler Scheduler
	Cache     Invalidator
	Now       func() time.Time
	Log       zerolog.Logger
}

// SaleInput is the create/update payload.
type SaleInput struct {
	Name          string              `json:"name" validate:"required,max=120"`
	DiscountType  string              `json:"discount_type" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	MaxDiscount   decimal.NullDecimal `json:"max_discount"`
	StartDate     time.Time           `json:"start_date" validate:"required"`
	EndDate       time.Time           `json:"end_date" validate:"required"`
	Featured      bool                `json:"featured"`
	IsActive      *bool               `json:"is_active"`
}

// ProductInput attaches a product with optional overrides.
type ProductInput struct {
	CustomDiscountValue decimal.NullDecimal `json:"custom_discount_value"`
	CustomMaxDiscount   decimal.NullDecimal `json:"custom_max_discount"`
}

// Sale is the API view of a flash sale.
type Sale struct {
	ID            string              `json:"id"`
	StoreID       string              `json:"store_id"`
	Name          string              `json:"name"`
	DiscountType  string              `json:"discount_type"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	MaxDiscount   decimal.NullDecimal `json:"max_discount"`
	StartDate     time.Time           `json:"start_date"`
	EndDate       time.Time           `json:"end_date"`
	Featured      bool                `json:"featured"`
	IsActive      bool                `json:"is_active"`
	Status        string              `json:"status"`
	EndsInSeconds int64               `json:"ends_in_seconds,omitempty"`
}

// SaleProduct is an attached product.
type SaleProduct struct {
	ProductID           string              `json:"product_id"`
	CustomDiscountValue decimal.NullDecimal `json:"custom_discount_value"`
	CustomMaxDiscount   decimal.NullDecimal `json:"custom_max_discount"`
}

// SaleDetail is a sale with its products.
type SaleDetail struct {
	Sale
	Products []SaleProduct `json:"products"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create stores a new sale for the current store and schedules its window.
func (s *Service) Create(ctx context.Context, in SaleInput) (Sale, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return Sale{}, err
	}
	if err := ValidateSale(in); err != nil {
		return Sale{}, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	row, err := s.Q.CreateFlashSale(ctx, db.CreateFlashSaleParams{
		StoreID:       storeID,
		Name:          in.Name,
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue,
		MaxDiscount:   in.MaxDiscount,
		StartDate:     repo.Timestamptz(in.StartDate),
		EndDate:       repo.Timestamptz(in.EndDate),
		Featured:      in.Featured,
		IsActive:      active,
	})
	if err != nil {
		return Sale{}, fmt.Errorf("create flash sale: %w", err)
	}
	s.schedule(ctx, row)
	return s.toSale(row), nil
}

// Update replaces a sale's terms, drops cached rules of its products and
// reschedules the window.
func (s *Service) Update(ctx context.Context, id string, in SaleInput) (Sale, error) {
	current, err := s.owned(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	if err := ValidateSale(in); err != nil {
		return Sale{}, err
	}
	active := current.IsActive
	if in.IsActive != nil {
		active = *in.IsActive
	}
	row, err := s.Q.UpdateFlashSale(ctx, db.UpdateFlashSaleParams{
		StoreID:       current.StoreID,
		ID:            current.ID,
		Name:          in.Name,
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue,
		MaxDiscount:   in.MaxDiscount,
		StartDate:     repo.Timestamptz(in.StartDate),
		EndDate:       repo.Timestamptz(in.EndDate),
		Featured:      in.Featured,
		IsActive:      active,
	})
	if err != nil {
		if repo.IsNotFound(err) {
			return Sale{}, ErrNotFound
		}
		return Sale{}, fmt.Errorf("update flash sale: %w", err)
	}
	s.invalidateSale(ctx, row)
	s.schedule(ctx, row)
	return s.toSale(row), nil
}

// SetActive toggles a sale on or off without touching its terms.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (Sale, error) {
	current, err := s.owned(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	row, err := s.Q.SetFlashSaleActive(ctx, db.SetFlashSaleActiveParams{
		StoreID:  current.StoreID,
		ID:       current.ID,
		IsActive: active,
	})
	if err != nil {
		if repo.IsNotFound(err) {
			return Sale{}, ErrNotFound
		}
		return Sale{}, fmt.Errorf("toggle flash sale: %w", err)
	}
	s.invalidateSale(ctx, row)
	if active {
		s.schedule(ctx, row)
	}
	return s.toSale(row), nil
}

// Get returns a sale of the current store with its products.
func (s *Service) Get(ctx context.Context, id string) (SaleDetail, error) {
	row, err := s.owned(ctx, id)
	if err != nil {
		return SaleDetail{}, err
	}
	products, err := s.Q.ListFlashSaleProducts(ctx, row.ID)
	if err != nil {
		return SaleDetail{}, fmt.Errorf("list flash sale products: %w", err)
	}
	detail := SaleDetail{Sale: s.toSale(row), Products: make([]SaleProduct, 0, len(products))}
	for _, p := range products {
		detail.Products = append(detail.Products, SaleProduct{
			ProductID:           repo.String(p.ProductID),
			CustomDiscountValue: p.CustomDiscountValue,
			CustomMaxDiscount:   p.CustomMaxDiscount,
		})
	}
	return detail, nil
}

// List returns the current store's sales, newest window first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Sale, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.Q.ListFlashSalesByStore(ctx, db.ListFlashSalesByStoreParams{
		StoreID: storeID,
		Limit:   int32(limit),
		Offset:  int32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("list flash sales: %w", err)
	}
	return s.toSales(rows), nil
}

// ListActive returns sales running right now, for storefront countdowns.
func (s *Service) ListActive(ctx context.Context) ([]Sale, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.Q.ListActiveFlashSales(ctx, db.ListActiveFlashSalesParams{
		StoreID: storeID,
		Now:     repo.Timestamptz(s.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("list active flash sales: %w", err)
	}
	return s.toSales(rows), nil
}

// AttachProduct adds or updates a product in a sale.
func (s *Service) AttachProduct(ctx context.Context, saleID, productID string, in ProductInput) (SaleProduct, error) {
	sale, err := s.owned(ctx, saleID)
	if err != nil {
		return SaleProduct{}, err
	}
	pid, err := repo.UUID(productID)
	if err != nil {
		return SaleProduct{}, ErrNotFound
	}
	if _, err := s.Q.GetProductByID(ctx, db.GetProductByIDParams{StoreID: sale.StoreID, ID: pid}); err != nil {
		if repo.IsNotFound(err) {
			return SaleProduct{}, ErrNotFound
		}
		return SaleProduct{}, fmt.Errorf("load product: %w", err)
	}
	if err := validateOverride(pricing.DiscountType(sale.DiscountType), in); err != nil {
		return SaleProduct{}, err
	}
	row, err := s.Q.UpsertFlashSaleProduct(ctx, db.UpsertFlashSaleProductParams{
		FlashSaleID:         sale.ID,
		ProductID:           pid,
		CustomDiscountValue: in.CustomDiscountValue,
		CustomMaxDiscount:   in.CustomMaxDiscount,
	})
	if err != nil {
		return SaleProduct{}, fmt.Errorf("attach product: %w", err)
	}
	s.invalidate(ctx, uuid.UUID(pid.Bytes))
	return SaleProduct{
		ProductID:           repo.String(row.ProductID),
		CustomDiscountValue: row.CustomDiscountValue,
		CustomMaxDiscount:   row.CustomMaxDiscount,
	}, nil
}

// DetachProduct removes a product from a sale.
func (s *Service) DetachProduct(ctx context.Context, saleID, productID string) error {
	sale, err := s.owned(ctx, saleID)
	if err != nil {
		return err
	}
	pid, err := repo.UUID(productID)
	if err != nil {
		return ErrNotFound
	}
	n, err := s.Q.DeleteFlashSaleProduct(ctx, db.DeleteFlashSaleProductParams{FlashSaleID: sale.ID, ProductID: pid})
	if err != nil {
		return fmt.Errorf("detach product: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.invalidate(ctx, uuid.UUID(pid.Bytes))
	return nil
}

// ValidateSale checks a sale's terms.
func ValidateSale(in SaleInput) error {
	kind := pricing.DiscountType(in.DiscountType)
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidInput, in.DiscountType)
	}
	if !in.EndDate.After(in.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidInput)
	}
	if in.DiscountValue.IsNegative() {
		return fmt.Errorf("%w: discount value must not be negative", ErrInvalidInput)
	}
	if kind == pricing.Percentage && in.DiscountValue.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentage must not exceed 100", ErrInvalidInput)
	}
	if in.MaxDiscount.Valid && in.MaxDiscount.Decimal.IsNegative() {
		return fmt.Errorf("%w: max discount must not be negative", ErrInvalidInput)
	}
	return nil
}

func validateOverride(kind pricing.DiscountType, in ProductInput) error {
	if v := in.CustomDiscountValue; v.Valid {
		if v.Decimal.IsNegative() {
			return fmt.Errorf("%w: custom discount value must not be negative", ErrInvalidInput)
		}
		if kind == pricing.Percentage && v.Decimal.GreaterThan(hundred) {
			return fmt.Errorf("%w: custom percentage must not exceed 100", ErrInvalidInput)
		}
	}
	if in.CustomMaxDiscount.Valid && in.CustomMaxDiscount.Decimal.IsNegative() {
		return fmt.Errorf("%w: custom max discount must not be negative", ErrInvalidInput)
	}
	return nil
}

// owned loads a sale and hides sales of other stores.
func (s *Service) owned(ctx context.Context, id string) (db.FlashSale, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return db.FlashSale{}, err
	}
	sid, err := repo.UUID(id)
	if err != nil {
		return db.FlashSale{}, ErrNotFound
	}
	row, err := s.Q.GetFlashSale(ctx, sid)
	if err != nil {
		if repo.IsNotFound(err) {
			return db.FlashSale{}, ErrNotFound
		}
		return db.FlashSale{}, fmt.Errorf("load flash sale: %w", err)
	}
	if row.StoreID != storeID {
		return db.FlashSale{}, ErrNotFound
	}
	return row, nil
}

func (s *Service) schedule(ctx context.Context, row db.FlashSale) {
	if s.Scheduler == nil || !row.IsActive {
		return
	}
	if err := s.Scheduler.ScheduleWindow(ctx, row); err != nil {
		s.Log.Warn().Err(err).Str("flash_sale_id", repo.String(row.ID)).Msg("schedule flash sale window")
	}
}

func (s *Service) invalidateSale(ctx context.Context, row db.FlashSale) {
	if s.Cache == nil {
		return
	}
	products, err := s.Q.ListFlashSaleProducts(ctx, row.ID)
	if err != nil {
		s.Log.Warn().Err(err).Str("flash_sale_id", repo.String(row.ID)).Msg("list products for invalidation")
		return
	}
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, uuid.UUID(p.ProductID.Bytes))
	}
	s.invalidate(ctx, ids...)
}

func (s *Service) invalidate(ctx context.Context, ids ...uuid.UUID) {
	if s.Cache == nil || len(ids) == 0 {
		return
	}
	if err := s.Cache.Invalidate(ctx, ids...); err != nil {
		s.Log.Warn().Err(err).Int("products", len(ids)).Msg("invalidate flash sale rules")
	}
}

func (s *Service) toSales(rows []db.FlashSale) []Sale {
	out := make([]Sale, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.toSale(row))
	}
	return out
}

func (s *Service) toSale(row db.FlashSale) Sale {
	now := s.now()
	sale := Sale{
		ID:            repo.String(row.ID),
		StoreID:       repo.String(row.StoreID),
		Name:          row.Name,
		DiscountType:  row.DiscountType,
		DiscountValue: row.DiscountValue,
		MaxDiscount:   row.MaxDiscount,
		StartDate:     row.StartDate.Time,
		EndDate:       row.EndDate.Time,
		Featured:      row.Featured,
		IsActive:      row.IsActive,
		Status:        StatusAt(row.IsActive, row.StartDate.Time, row.EndDate.Time, now),
	}
	if sale.Status == StatusActive {
		sale.EndsInSeconds = int64(sale.EndDate.Sub(now).Seconds())
	}
	return sale
}

// StatusAt derives the display status of a sale window at now.
func StatusAt(active bool, start, end, now time.Time) string {
	switch {
	case !active:
		return StatusInactive
	case now.Before(start):
		return StatusScheduled
	case !now.Before(end):
		return StatusEnded
	default:
		return StatusActive
	}
}
