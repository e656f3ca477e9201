package notify

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/common"
)

// Handler serves the caller's notification inbox.
type Handler struct {
	Svc *Service
}

var errorMappings = []common.ErrorMapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Err: ErrInvalidRecipient, Status: http.StatusUnauthorized, Code: "UNAUTHORIZED"},
}

// Routes mounts the inbox endpoints; callers must be authenticated.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/unread-count", h.UnreadCount)
	r.Post("/read-all", h.MarkAllRead)
	r.Post("/{id}/read", h.MarkRead)
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	}
	return id, ok
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	items, err := h.Svc.List(r.Context(), uid, unread, perPage, common.Offset(page, perPage))
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, items)
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	n, err := h.Svc.UnreadCount(r.Context(), uid)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, map[string]int64{"unread": n})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.MarkRead(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	n, err := h.Svc.MarkAllRead(r.Context(), uid)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, map[string]int64{"updated": n})
}
