package order

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// Handler serves buyer and seller order endpoints.
type Handler struct {
	Svc            *Service
	DefaultPerPage int
	MaxPerPage     int
}

var errorMappings = []common.ErrorMapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Err: ErrInvalidStatus, Status: http.StatusBadRequest, Code: "INVALID_STATUS"},
	{Err: ErrInvalidTransition, Status: http.StatusConflict, Code: "INVALID_TRANSITION"},
	{Err: ErrConflict, Status: http.StatusConflict, Code: "ORDER_CONFLICT"},
	{Err: ErrForbidden, Status: http.StatusForbidden, Code: "FORBIDDEN"},
	{Err: repo.ErrTenantMissing, Status: http.StatusBadRequest, Code: "TENANT_REQUIRED"},
	{Err: repo.ErrTenantInvalid, Status: http.StatusBadRequest, Code: "TENANT_INVALID"},
}

// Routes mounts the buyer endpoints; callers must be authenticated.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.ListMine)
	r.Get("/{id}", h.GetMine)
	r.Post("/{id}/cancel", h.Cancel)
}

// SellerRoutes mounts the store dashboard endpoints.
func (h *Handler) SellerRoutes(r chi.Router) {
	r.Get("/", h.ListStore)
	r.Get("/{id}", h.GetStore)
	r.Patch("/{id}/status", h.UpdateStatus)
}

func (h *Handler) page(r *http.Request) (int, int) {
	def, limit := h.DefaultPerPage, h.MaxPerPage
	if def <= 0 {
		def = 20
	}
	if limit <= 0 {
		limit = 100
	}
	return common.ParsePagination(r, def, limit)
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (common.Principal, bool) {
	p, ok := common.PrincipalFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	}
	return p, ok
}

func writeList(w http.ResponseWriter, items []View, total int64, page, perPage int) {
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	page, perPage := h.page(r)
	items, total, err := h.Svc.ListMine(r.Context(), p.UserID, perPage, common.Offset(page, perPage))
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	writeList(w, items, total, page, perPage)
}

func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"), p.UserID)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, view)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Cancel(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, view)
}

func (h *Handler) ListStore(w http.ResponseWriter, r *http.Request) {
	page, perPage := h.page(r)
	items, total, err := h.Svc.ListStore(r.Context(), r.URL.Query().Get("status"), perPage, common.Offset(page, perPage))
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	writeList(w, items, total, page, perPage)
}

func (h *Handler) GetStore(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, view)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in statusRequest
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	view, err := h.Svc.Advance(r.Context(), p, chi.URLParam(r, "id"), in.Status)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, view)
}
