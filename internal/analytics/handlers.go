package analytics

import (
	"net/http"
	"time"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// Handler exposes analytics read endpoints.
type Handler struct {
	Svc *Service
}

var errorMappings = []common.ErrorMapping{
	{Err: ErrInvalidRange, Status: http.StatusBadRequest, Code: "INVALID_RANGE"},
	{Err: repo.ErrTenantMissing, Status: http.StatusBadRequest, Code: "TENANT_REQUIRED"},
	{Err: repo.ErrTenantInvalid, Status: http.StatusBadRequest, Code: "TENANT_INVALID"},
}

// Overview returns the dashboard for ?from=&to= (RFC3339) or, without
// both, for the last ?days= days.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fromStr, toStr := query.Get("from"), query.Get("to")
	var from, to time.Time
	if fromStr != "" && toStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from date", nil)
			return
		}
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to date", nil)
			return
		}
	} else {
		from, to = h.Svc.DefaultWindow()
		if days := common.AtoiDefault(query.Get("days"), 0); days > 0 {
			from = to.AddDate(0, 0, -days)
		}
	}
	out, err := h.Svc.Overview(r.Context(), from, to)
	if err != nil {
		common.WriteError(w, err, errorMappings...)
		return
	}
	common.Data(w, http.StatusOK, out)
}
