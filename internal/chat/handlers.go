package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// Handler exposes chat for customers and store staff.
type Handler struct {
	Svc *Service
}

var errorMappings = []common.ErrorMapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Err: ErrInvalidCursor, Status: http.StatusBadRequest, Code: "INVALID_CURSOR"},
	{Err: ErrRateLimited, Status: http.StatusTooManyRequests, Code: "RATE_LIMITED"},
	{Err: ErrEmptyMessage, Status: http.StatusUnprocessableEntity, Code: "EMPTY_MESSAGE"},
	{Err: ErrMessageTooLong, Status: http.StatusUnprocessableEntity, Code: "MESSAGE_TOO_LONG"},
	{Err: repo.ErrTenantMissing, Status: http.StatusBadRequest, Code: "TENANT_REQUIRED"},
	{Err: repo.ErrTenantInvalid, Status: http.StatusBadRequest, Code: "TENANT_INVALID"},
}

// Routes mounts the customer side.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/conversations", h.listConversations(false))
	r.Post("/messages", h.SendToStore)
	r.Get("/conversations/{id}/messages", h.ListMessages)
	r.Post("/conversations/{id}/read", h.MarkRead)
}

// SellerRoutes mounts the store inbox.
func (h *Handler) SellerRoutes(r chi.Router) {
	r.Get("/conversations", h.listConversations(true))
	r.Get("/conversations/{id}/messages", h.ListMessages)
	r.Post("/conversations/{id}/messages", h.Reply)
	r.Post("/conversations/{id}/read", h.MarkRead)
}

type sendRequest struct {
	Body string `json:"body" validate:"required"`
}

func principal(w http.ResponseWriter, r *http.Request) (common.Principal, bool) {
	p, ok := common.PrincipalFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	}
	return p, ok
}

func (h *Handler) SendToStore(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in sendRequest
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	msg, err := h.Svc.SendAsCustomer(r.Context(), p.UserID, in.Body)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusCreated, msg)
}

func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in sendRequest
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	msg, err := h.Svc.SendAsStore(r.Context(), p, chi.URLParam(r, "id"), in.Body)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusCreated, msg)
}

func (h *Handler) listConversations(asStore bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		limit := common.AtoiDefault(r.URL.Query().Get("limit"), 50)
		if limit < 1 || limit > 100 {
			limit = 50
		}
		items, err := h.Svc.ListConversations(r.Context(), p, asStore, limit)
		if err != nil {
			common.WriteError(w, err, errorMappings...)
			return
		}
		common.Data(w, http.StatusOK, items)
	}
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 50)
	if limit < 1 || limit > 100 {
		limit = 50
	}
	items, err := h.Svc.ListMessages(r.Context(), p, chi.URLParam(r, "id"), r.URL.Query().Get("before"), limit)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, items)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.Svc.MarkRead(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
