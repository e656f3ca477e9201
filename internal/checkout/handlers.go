package checkout

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/repo"
	"github.com/noah-isme/storefront-api/internal/shipping"
)

// Handler exposes POST /checkout.
type Handler struct {
	Svc *Service
	// Idempotency wraps the endpoint so retried submissions replay the
	// first response instead of placing a second order.
	Idempotency func(http.Handler) http.Handler
}

var errorMappings = append([]common.ErrorMapping{
	{Err: ErrEmptyCart, Status: http.StatusUnprocessableEntity, Code: "CART_EMPTY"},
	{Err: ErrCartChanged, Status: http.StatusConflict, Code: "CART_CHANGED"},
	{Err: ErrOutOfStock, Status: http.StatusConflict, Code: "OUT_OF_STOCK"},
	{Err: ErrBusy, Status: http.StatusConflict, Code: "CHECKOUT_IN_PROGRESS"},
	{Err: shipping.ErrNoOption, Status: http.StatusUnprocessableEntity, Code: "SHIPPING_UNAVAILABLE"},
	{Err: cart.ErrOwnerRequired, Status: http.StatusUnauthorized, Code: "UNAUTHORIZED"},
	{Err: repo.ErrTenantMissing, Status: http.StatusBadRequest, Code: "TENANT_REQUIRED"},
	{Err: repo.ErrTenantInvalid, Status: http.StatusBadRequest, Code: "TENANT_INVALID"},
}, coupon.ErrorMappings...)

// Routes mounts the checkout endpoint.
func (h *Handler) Routes(r chi.Router) {
	if h.Idempotency != nil {
		r = r.With(h.Idempotency)
	}
	r.Post("/", h.Checkout)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in Input
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	view, err := h.Svc.Place(r.Context(), userID, in)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusCreated, view)
}
