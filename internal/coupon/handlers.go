package coupon

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// Handler exposes the seller coupon endpoints.
type Handler struct {
	Svc *Service
}

// ErrorMappings renders coupon errors; the cart and checkout reuse them.
var ErrorMappings = []common.ErrorMapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: "COUPON_NOT_FOUND"},
	{Err: ErrInactive, Status: http.StatusUnprocessableEntity, Code: "COUPON_INACTIVE"},
	{Err: ErrNotStarted, Status: http.StatusUnprocessableEntity, Code: "COUPON_NOT_STARTED"},
	{Err: ErrExpired, Status: http.StatusUnprocessableEntity, Code: "COUPON_EXPIRED"},
	{Err: ErrMinimumOrderUnmet, Status: http.StatusUnprocessableEntity, Code: "COUPON_MIN_ORDER"},
	{Err: ErrUsageLimitReached, Status: http.StatusUnprocessableEntity, Code: "COUPON_USAGE_LIMIT"},
	{Err: ErrPerUserLimitReached, Status: http.StatusUnprocessableEntity, Code: "COUPON_PER_USER_LIMIT"},
	{Err: ErrInvalidCoupon, Status: http.StatusUnprocessableEntity, Code: "INVALID_COUPON"},
	{Err: ErrCodeTaken, Status: http.StatusConflict, Code: "COUPON_CODE_TAKEN"},
	{Err: repo.ErrTenantMissing, Status: http.StatusBadRequest, Code: "TENANT_REQUIRED"},
	{Err: repo.ErrTenantInvalid, Status: http.StatusBadRequest, Code: "TENANT_INVALID"},
}

// SellerRoutes mounts the dashboard endpoints.
func (h *Handler) SellerRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/{id}/activate", h.toggle(true))
	r.Post("/{id}/deactivate", h.toggle(false))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Svc.List(r.Context())
	if err != nil {
		common.WriteError(w, err, ErrorMappings...)
		return
	}
	common.Data(w, http.StatusOK, coupons)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	created, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err, ErrorMappings...)
		return
	}
	common.Data(w, http.StatusCreated, created)
}

func (h *Handler) toggle(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updated, err := h.Svc.SetActive(r.Context(), chi.URLParam(r, "id"), active)
		if err != nil {
			common.WriteError(w, err, ErrorMappings...)
			return
		}
		common.Data(w, http.StatusOK, updated)
	}
}
