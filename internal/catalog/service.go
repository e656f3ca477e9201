package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/cache"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/flashsale"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/repo"
)

var (
	// ErrNotFound is returned for unknown or hidden products.
	ErrNotFound = errors.New("product not found")
	// ErrSlugTaken is returned when a product slug already exists in the store.
	ErrSlugTaken = errors.New("product slug already exists")
)

type queryProvider interface {
	CountProducts(ctx context.Context, arg db.CountProductsParams) (int64, error)
	ListProducts(ctx context.Context, arg db.ListProductsParams) ([]db.Product, error)
	GetProductBySlug(ctx context.Context, arg db.GetProductBySlugParams) (db.Product, error)
	GetProductByID(ctx context.Context, arg db.GetProductByIDParams) (db.Product, error)
	ListSizesByProductIDs(ctx context.Context, productIds []pgtype.UUID) ([]db.ProductSize, error)
	CreateProduct(ctx context.Context, arg db.CreateProductParams) (db.Product, error)
	CreateProductSize(ctx context.Context, arg db.CreateProductSizeParams) (db.ProductSize, error)
}

// Service lists products with their current prices and manages the seller catalog.
type Service struct {
	queries      queryProvider
	cache        *cache.JSON
	lookup       flashsale.Lookup
	reconciler   pricing.Reconciler
	defaultLimit int
	maxLimit     int
	now          func() time.Time
	log          zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *cache.JSON
	Lookup       flashsale.Lookup
	Reconciler   pricing.Reconciler
	DefaultLimit int
	MaxLimit     int
	Now          func() time.Time
	Log          zerolog.Logger
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Page     int
	Limit    int
}

// SizeView is a purchasable size with its resolved price.
type SizeView struct {
	ID              string              `json:"id"`
	Label           string              `json:"label"`
	Price           decimal.Decimal     `json:"price"`
	DiscountPercent decimal.NullDecimal `json:"discount_percent"`
	FinalPrice      decimal.Decimal     `json:"final_price"`
	Stock           int32               `json:"stock"`
	InStock         bool                `json:"in_stock"`
}

// FlashSaleBadge marks products discounted by a running sale.
type FlashSaleBadge struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Featured bool      `json:"featured"`
	EndsAt   time.Time `json:"ends_at"`
}

// ProductView is the public product payload.
type ProductView struct {
	ID            string          `json:"id"`
	Slug          string          `json:"slug"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Category      string          `json:"category"`
	ImageURL      *string         `json:"image_url,omitempty"`
	FromPrice     decimal.Decimal `json:"from_price"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	InStock       bool            `json:"in_stock"`
	FlashSale     *FlashSaleBadge `json:"flash_sale,omitempty"`
	Sizes         []SizeView      `json:"sizes"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []ProductView
	Total int64
	Page  int
	Limit int
}

// productRecord is the cached, price-independent shape of a product.
// Prices are resolved per request so a sale starting or ending never
// waits for the catalog cache to expire.
type productRecord struct {
	ID          string           `json:"id"`
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	ImageURL    *string          `json:"image_url,omitempty"`
	Sizes       []db.ProductSize `json:"sizes"`
}

type listRecord struct {
	Items []productRecord `json:"items"`
	Total int64           `json:"total"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < defaultLimit {
		maxLimit = 100
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	reconciler := cfg.Reconciler
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		lookup:       cfg.Lookup,
		reconciler:   reconciler,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          now,
		log:          cfg.Log,
	}, nil
}

// ParseListParams converts query parameters into ListParams.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Query:    strings.TrimSpace(values.Get("q")),
		Category: strings.TrimSpace(values.Get("category")),
		Page:     1,
		Limit:    s.defaultLimit,
	}
	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return ListParams{}, badRequest("page must be a positive integer")
		}
		params.Page = page
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return ListParams{}, badRequest("limit must be a positive integer")
		}
		if limit > s.maxLimit {
			limit = s.maxLimit
		}
		params.Limit = limit
	}
	return params, nil
}

// ListProducts returns a page of active products with current prices.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return ProductListResult{}, err
	}
	rec, err := cache.Fetch(ctx, s.cache, cache.KeyCatalogList(ctx, listCacheKey(params)), func(ctx context.Context) (listRecord, error) {
		return s.loadList(ctx, storeID, params)
	})
	if err != nil {
		return ProductListResult{}, err
	}
	items, err := s.decorate(ctx, rec.Items)
	if err != nil {
		return ProductListResult{}, err
	}
	for i := range items {
		items[i].Description = ""
	}
	return ProductListResult{Items: items, Total: rec.Total, Page: params.Page, Limit: params.Limit}, nil
}

// GetProductDetail returns a single product by slug.
func (s *Service) GetProductDetail(ctx context.Context, slug string) (ProductView, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return ProductView{}, err
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ProductView{}, ErrNotFound
	}
	rec, err := cache.Fetch(ctx, s.cache, cache.KeyProduct(ctx, slug), func(ctx context.Context) (productRecord, error) {
		row, err := s.queries.GetProductBySlug(ctx, db.GetProductBySlugParams{StoreID: storeID, Slug: slug})
		if err != nil {
			if repo.IsNotFound(err) {
				return productRecord{}, ErrNotFound
			}
			return productRecord{}, fmt.Errorf("load product: %w", err)
		}
		records, err := s.withSizes(ctx, []db.Product{row})
		if err != nil {
			return productRecord{}, err
		}
		return records[0], nil
	})
	if err != nil {
		return ProductView{}, err
	}
	views, err := s.decorate(ctx, []productRecord{rec})
	if err != nil {
		return ProductView{}, err
	}
	return views[0], nil
}

// ProductInput is the seller payload for a new product.
type ProductInput struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Slug        string      `json:"slug" validate:"omitempty,max=200"`
	Description string      `json:"description" validate:"max=5000"`
	Category    string      `json:"category" validate:"required,max=100"`
	ImageURL    string      `json:"image_url" validate:"omitempty,url"`
	Sizes       []SizeInput `json:"sizes" validate:"dive"`
}

// SizeInput is the seller payload for a product size.
type SizeInput struct {
	Label           string              `json:"label" validate:"required,max=50"`
	Price           decimal.Decimal     `json:"price"`
	DiscountPercent decimal.NullDecimal `json:"discount_percent"`
	Stock           int32               `json:"stock" validate:"gte=0"`
	SortOrder       int32               `json:"sort_order"`
}

func (in SizeInput) validate() error {
	if in.Price.IsNegative() {
		return badRequest("price must not be negative")
	}
	if in.DiscountPercent.Valid {
		d := in.DiscountPercent.Decimal
		if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
			return badRequest("discount_percent must be between 0 and 100")
		}
	}
	return nil
}

// CreateProduct stores a product and its sizes for the current store.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (ProductView, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return ProductView{}, err
	}
	for _, size := range in.Sizes {
		if err := size.validate(); err != nil {
			return ProductView{}, err
		}
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(in.Name)
	}
	if slug == "" {
		return ProductView{}, badRequest("slug could not be derived from name")
	}
	row, err := s.queries.CreateProduct(ctx, db.CreateProductParams{
		StoreID:     storeID,
		Slug:        slug,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		ImageUrl:    repo.Text(in.ImageURL),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ProductView{}, ErrSlugTaken
		}
		return ProductView{}, fmt.Errorf("create product: %w", err)
	}
	rec := toRecord(row)
	for _, size := range in.Sizes {
		created, err := s.queries.CreateProductSize(ctx, sizeParams(row.ID, size))
		if err != nil {
			return ProductView{}, fmt.Errorf("create size: %w", err)
		}
		rec.Sizes = append(rec.Sizes, created)
	}
	s.invalidate(ctx, storeID)
	views, err := s.decorate(ctx, []productRecord{rec})
	if err != nil {
		return ProductView{}, err
	}
	return views[0], nil
}

// AddSize appends a size to a product of the current store.
func (s *Service) AddSize(ctx context.Context, productID string, in SizeInput) (SizeView, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return SizeView{}, err
	}
	if err := in.validate(); err != nil {
		return SizeView{}, err
	}
	pid, err := repo.UUID(productID)
	if err != nil {
		return SizeView{}, ErrNotFound
	}
	if _, err := s.queries.GetProductByID(ctx, db.GetProductByIDParams{StoreID: storeID, ID: pid}); err != nil {
		if repo.IsNotFound(err) {
			return SizeView{}, ErrNotFound
		}
		return SizeView{}, fmt.Errorf("load product: %w", err)
	}
	created, err := s.queries.CreateProductSize(ctx, sizeParams(pid, in))
	if err != nil {
		return SizeView{}, fmt.Errorf("create size: %w", err)
	}
	s.invalidate(ctx, storeID)
	return SizeView{
		ID:              repo.String(created.ID),
		Label:           created.Label,
		Price:           created.Price,
		DiscountPercent: created.DiscountPercent,
		FinalPrice:      s.reconciler.Scale.Round(pricing.AfterSizeDiscount(created.Price, created.DiscountPercent.Decimal)),
		Stock:           created.Stock,
		InStock:         created.Stock > 0,
	}, nil
}

func (s *Service) invalidate(ctx context.Context, storeID pgtype.UUID) {
	if err := s.cache.DeletePrefix(ctx, cache.CatalogPrefix(repo.String(storeID))); err != nil {
		s.log.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}

func (s *Service) loadList(ctx context.Context, storeID pgtype.UUID, params ListParams) (listRecord, error) {
	search, category := repo.Text(params.Query), repo.Text(params.Category)
	total, err := s.queries.CountProducts(ctx, db.CountProductsParams{StoreID: storeID, Search: search, Category: category})
	if err != nil {
		return listRecord{}, fmt.Errorf("count products: %w", err)
	}
	rows, err := s.queries.ListProducts(ctx, db.ListProductsParams{
		StoreID:  storeID,
		Search:   search,
		Category: category,
		Limit:    int32(params.Limit),
		Offset:   int32(common.Offset(params.Page, params.Limit)),
	})
	if err != nil {
		return listRecord{}, fmt.Errorf("list products: %w", err)
	}
	items, err := s.withSizes(ctx, rows)
	if err != nil {
		return listRecord{}, err
	}
	return listRecord{Items: items, Total: total}, nil
}

func (s *Service) withSizes(ctx context.Context, rows []db.Product) ([]productRecord, error) {
	out := make([]productRecord, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]pgtype.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	sizes, err := s.queries.ListSizesByProductIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list sizes: %w", err)
	}
	byProduct := make(map[[16]byte][]db.ProductSize, len(rows))
	for _, size := range sizes {
		byProduct[size.ProductID.Bytes] = append(byProduct[size.ProductID.Bytes], size)
	}
	for _, row := range rows {
		rec := toRecord(row)
		rec.Sizes = byProduct[row.ID.Bytes]
		out = append(out, rec)
	}
	return out, nil
}

// decorate resolves the current price of every size. Each size is priced as
// a single-unit line so listing and cart use the same rounding.
func (s *Service) decorate(ctx context.Context, recs []productRecord) ([]ProductView, error) {
	now := s.now()
	ids := make([]uuid.UUID, 0, len(recs))
	for _, rec := range recs {
		if id, err := uuid.Parse(rec.ID); err == nil {
			ids = append(ids, id)
		}
	}
	rules := map[uuid.UUID]*pricing.Rule{}
	if s.lookup != nil && len(ids) > 0 {
		found, err := s.lookup.ActiveRules(ctx, ids, now)
		if err != nil {
			return nil, fmt.Errorf("load flash sale rules: %w", err)
		}
		rules = found
	}

	out := make([]ProductView, 0, len(recs))
	for _, rec := range recs {
		view := ProductView{
			ID:          rec.ID,
			Slug:        rec.Slug,
			Name:        rec.Name,
			Description: rec.Description,
			Category:    rec.Category,
			ImageURL:    rec.ImageURL,
			Sizes:       make([]SizeView, 0, len(rec.Sizes)),
		}
		pid, _ := uuid.Parse(rec.ID)
		rule := rules[pid]
		items := make([]pricing.LineItem, 0, len(rec.Sizes))
		for _, size := range rec.Sizes {
			items = append(items, pricing.LineItem{
				ProductID:           rec.ID,
				SizeID:              repo.String(size.ID),
				Name:                rec.Name,
				Size:                size.Label,
				UnitPrice:           size.Price,
				SizeDiscountPercent: size.DiscountPercent,
				Quantity:            1,
				Rule:                rule,
			})
		}
		summary, err := s.reconciler.ReconcileAt(items, now)
		if err != nil {
			return nil, fmt.Errorf("price product %s: %w", rec.Slug, err)
		}
		first := true
		for i, line := range summary.Items {
			size := rec.Sizes[i]
			view.Sizes = append(view.Sizes, SizeView{
				ID:              line.SizeID,
				Label:           size.Label,
				Price:           size.Price,
				DiscountPercent: size.DiscountPercent,
				FinalPrice:      line.FinalUnitPrice,
				Stock:           size.Stock,
				InStock:         size.Stock > 0,
			})
			if size.Stock > 0 {
				view.InStock = true
			}
			if first || line.FinalUnitPrice.LessThan(view.FromPrice) {
				view.FromPrice = line.FinalUnitPrice
				view.OriginalPrice = line.OriginalUnitPrice
				first = false
			}
		}
		if rule.ActiveAt(now) && summary.HasActiveDiscount {
			view.FlashSale = &FlashSaleBadge{ID: rule.FlashSaleID, Name: rule.Name, Featured: rule.Featured, EndsAt: rule.EndDate}
		}
		out = append(out, view)
	}
	return out, nil
}

func toRecord(row db.Product) productRecord {
	rec := productRecord{
		ID:          repo.String(row.ID),
		Slug:        row.Slug,
		Name:        row.Name,
		Description: row.Description,
		Category:    row.Category,
	}
	if row.ImageUrl.Valid {
		v := row.ImageUrl.String
		rec.ImageURL = &v
	}
	return rec
}

func sizeParams(productID pgtype.UUID, in SizeInput) db.CreateProductSizeParams {
	return db.CreateProductSizeParams{
		ProductID:       productID,
		Label:           strings.TrimSpace(in.Label),
		Price:           in.Price,
		DiscountPercent: in.DiscountPercent,
		Stock:           in.Stock,
		SortOrder:       in.SortOrder,
	}
}

func listCacheKey(params ListParams) string {
	parts := []string{
		"q=" + strings.ToLower(params.Query),
		"category=" + strings.ToLower(params.Category),
		"page=" + strconv.Itoa(params.Page),
		"limit=" + strconv.Itoa(params.Limit),
	}
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-"), "-")
}

func badRequest(message string) error {
	return &common.AppError{Code: "BAD_REQUEST", Message: message, HTTPStatus: http.StatusBadRequest}
}
