package cart

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// AnonHeader carries the guest cart id. Responses echo it so a client
// without one learns the id generated for it.
const AnonHeader = "X-Cart-Token"

// Handler wires the cart service to HTTP.
type Handler struct {
	Svc *Service
}

var errorMappings = append([]common.ErrorMapping{
	{Err: ErrInvalidQuantity, Status: http.StatusUnprocessableEntity, Code: "INVALID_QUANTITY"},
	{Err: ErrItemNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Err: ErrUnknownSize, Status: http.StatusUnprocessableEntity, Code: "SIZE_UNAVAILABLE"},
	{Err: ErrOutOfStock, Status: http.StatusConflict, Code: "OUT_OF_STOCK"},
	{Err: ErrOwnerRequired, Status: http.StatusBadRequest, Code: "CART_OWNER_REQUIRED"},
	{Err: repo.ErrTenantMissing, Status: http.StatusBadRequest, Code: "TENANT_REQUIRED"},
	{Err: repo.ErrTenantInvalid, Status: http.StatusBadRequest, Code: "TENANT_INVALID"},
}, coupon.ErrorMappings...)

// Routes mounts the cart endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{sizeID}", h.UpdateItem)
	r.Delete("/items/{sizeID}", h.RemoveItem)
	r.Post("/coupon", h.ApplyCoupon)
	r.Delete("/coupon", h.RemoveCoupon)
	r.Post("/merge", h.Merge)
}

// OwnerFrom identifies the cart of a request: the signed-in user, else the
// guest token header.
func OwnerFrom(r *http.Request) Owner {
	userID, _ := common.UserID(r.Context())
	return Owner{UserID: userID, AnonID: strings.TrimSpace(r.Header.Get(AnonHeader))}
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) Owner {
	o := OwnerFrom(r)
	if o.UserID == "" && o.AnonID == "" {
		o.AnonID = uuid.NewString()
	}
	if o.UserID == "" {
		w.Header().Set(AnonHeader, o.AnonID)
	}
	return o
}

func (h *Handler) respond(w http.ResponseWriter, view View, err error) {
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// Get handles GET /cart?country=.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.View(r.Context(), h.owner(w, r), r.URL.Query().Get("country"))
	h.respond(w, view, err)
}

type addItemRequest struct {
	SizeID   string `json:"size_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gte=1,lte=99"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !common.DecodeAndValidate(w, r, &req) {
		return
	}
	view, err := h.Svc.Add(r.Context(), h.owner(w, r), req.SizeID, req.Quantity)
	h.respond(w, view, err)
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=99"`
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if !common.DecodeAndValidate(w, r, &req) {
		return
	}
	view, err := h.Svc.Update(r.Context(), h.owner(w, r), chi.URLParam(r, "sizeID"), req.Quantity)
	h.respond(w, view, err)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Remove(r.Context(), h.owner(w, r), chi.URLParam(r, "sizeID"))
	h.respond(w, view, err)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Clear(r.Context(), h.owner(w, r)); err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type couponRequest struct {
	Code string `json:"code" validate:"required,max=40"`
}

func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if !common.DecodeAndValidate(w, r, &req) {
		return
	}
	view, err := h.Svc.ApplyCoupon(r.Context(), h.owner(w, r), req.Code)
	h.respond(w, view, err)
}

func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.RemoveCoupon(r.Context(), h.owner(w, r))
	h.respond(w, view, err)
}

type mergeRequest struct {
	AnonID string `json:"anon_id"`
}

// Merge handles POST /cart/merge after sign-in. The guest id comes from the
// body or the cart token header.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req mergeRequest
	if r.ContentLength != 0 {
		if !common.DecodeAndValidate(w, r, &req) {
			return
		}
	}
	anonID := strings.TrimSpace(req.AnonID)
	if anonID == "" {
		anonID = strings.TrimSpace(r.Header.Get(AnonHeader))
	}
	view, err := h.Svc.Merge(r.Context(), userID, anonID)
	h.respond(w, view, err)
}
