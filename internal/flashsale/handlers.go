package flashsale

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// Handler exposes flash sale endpoints.
type Handler struct {
	Svc            *Service
	DefaultPerPage int
	MaxPerPage     int
}

var errorMappings = []common.ErrorMapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Err: ErrInvalidInput, Status: http.StatusUnprocessableEntity, Code: "INVALID_FLASH_SALE"},
	{Err: repo.ErrTenantMissing, Status: http.StatusBadRequest, Code: "TENANT_REQUIRED"},
	{Err: repo.ErrTenantInvalid, Status: http.StatusBadRequest, Code: "TENANT_INVALID"},
}

// SellerRoutes mounts the dashboard endpoints.
func (h *Handler) SellerRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/activate", h.toggle(true))
	r.Post("/{id}/deactivate", h.toggle(false))
	r.Put("/{id}/products/{productID}", h.AttachProduct)
	r.Delete("/{id}/products/{productID}", h.DetachProduct)
}

// Active lists sales running now for the storefront.
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Svc.ListActive(r.Context())
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, sales)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, h.DefaultPerPage, h.MaxPerPage)
	sales, err := h.Svc.List(r.Context(), perPage, common.Offset(page, perPage))
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       sales,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(sales)},
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in SaleInput
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	sale, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusCreated, sale)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, detail)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in SaleInput
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	sale, err := h.Svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, sale)
}

func (h *Handler) toggle(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sale, err := h.Svc.SetActive(r.Context(), chi.URLParam(r, "id"), active)
		if err != nil {
			common.WriteError(w, err, errorMappings...)
			return
		}
		common.Data(w, http.StatusOK, sale)
	}
}

func (h *Handler) AttachProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if r.ContentLength != 0 {
		if !common.DecodeAndValidate(w, r, &in) {
			return
		}
	}
	product, err := h.Svc.AttachProduct(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(chi.URLParam(r, "productID")), in)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, product)
}

func (h *Handler) DetachProduct(w http.ResponseWriter, r *http.Request) {
	err := h.Svc.DetachProduct(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productID"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product is not part of this flash sale", nil)
			return
		}
		common.WriteError(w, err, errorMappings...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
