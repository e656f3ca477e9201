package shipping

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// Handler exposes rate lookup and the seller rate table.
type Handler struct {
	Svc *Service
}

var errorMappings = []common.ErrorMapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Err: ErrInvalidRate, Status: http.StatusUnprocessableEntity, Code: "INVALID_RATE"},
	{Err: repo.ErrTenantMissing, Status: http.StatusBadRequest, Code: "TENANT_REQUIRED"},
	{Err: repo.ErrTenantInvalid, Status: http.StatusBadRequest, Code: "TENANT_INVALID"},
}

// SellerRoutes mounts the dashboard endpoints.
func (h *Handler) SellerRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/", h.Upsert)
	r.Delete("/{id}", h.Delete)
}

// Quote handles GET /shipping/rates?country=&items=&subtotal=.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	country := strings.TrimSpace(q.Get("country"))
	if country == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "country is required", nil)
		return
	}
	items := common.AtoiDefault(q.Get("items"), 1)
	if items < 1 {
		items = 1
	}
	subtotal := decimal.Zero
	if raw := q.Get("subtotal"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "subtotal must be a non-negative number", nil)
			return
		}
		subtotal = v
	}
	options, err := h.Svc.Quote(r.Context(), country, items, subtotal)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, options)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Svc.Rates(r.Context())
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, rates)
}

func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var in RateInput
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	rate, err := h.Svc.Upsert(r.Context(), in)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, rate)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "shipping rate not found", nil)
			return
		}
		common.WriteError(w, err, errorMappings...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
