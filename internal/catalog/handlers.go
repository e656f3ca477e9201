package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// Handler exposes catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

var errorMappings = []common.ErrorMapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Err: ErrSlugTaken, Status: http.StatusConflict, Code: "SLUG_TAKEN"},
	{Err: repo.ErrTenantMissing, Status: http.StatusBadRequest, Code: "TENANT_REQUIRED"},
	{Err: repo.ErrTenantInvalid, Status: http.StatusBadRequest, Code: "TENANT_INVALID"},
}

// Routes mounts the storefront endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Products)
	r.Get("/{slug}", h.ProductDetail)
}

// SellerRoutes mounts the dashboard endpoints.
func (h *Handler) SellerRoutes(r chi.Router) {
	r.Post("/", h.CreateProduct)
	r.Post("/{id}/sizes", h.AddSize)
}

// Products handles GET /products with search, category filter, and pagination.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	params, err := h.service.ParseListParams(r.URL.Query())
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	result, err := h.service.ListProducts(r.Context(), params)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(result.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: int(result.Total)},
	})
}

// ProductDetail handles GET /products/{slug}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	detail, err := h.service.GetProductDetail(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, detail)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	product, err := h.service.CreateProduct(r.Context(), in)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusCreated, product)
}

func (h *Handler) AddSize(w http.ResponseWriter, r *http.Request) {
	var in SizeInput
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	size, err := h.service.AddSize(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusCreated, size)
}
