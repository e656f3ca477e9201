package flashsale_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/flashsale"
	"github.com/noah-isme/storefront-api/internal/tenant"
)

func newRouter(fx serviceFixture) http.Handler {
	h := &flashsale.Handler{Svc: fx.svc, DefaultPerPage: 20, MaxPerPage: 100}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(tenant.With(r.Context(), fx.storeID)))
		})
	})
	r.Route("/seller/flash-sales", h.SellerRoutes)
	r.Get("/flash-sales/active", h.Active)
	return r
}

func TestHandlerCreateAndListActive(t *testing.T) {
	fx := newServiceFixture()
	router := newRouter(fx)

	body := `{"name":"Payday","discount_type":"PERCENTAGE","discount_value":"30","start_date":"2025-03-01T11:00:00Z","end_date":"2025-03-01T13:00:00Z"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/seller/flash-sales/", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data flashsale.Sale `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "Payday", created.Data.Name)
	require.Equal(t, flashsale.StatusActive, created.Data.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/flash-sales/active", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var active struct {
		Data []flashsale.Sale `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	require.Len(t, active.Data, 1)
	require.Equal(t, created.Data.ID, active.Data[0].ID)
}

func TestHandlerRejectsInvalidPayloads(t *testing.T) {
	router := newRouter(newServiceFixture())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/seller/flash-sales/", strings.NewReader(`{"name":""}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_FAILED")

	body := `{"name":"Bad","discount_type":"PERCENTAGE","discount_value":"30","start_date":"2025-03-01T13:00:00Z","end_date":"2025-03-01T11:00:00Z"}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/seller/flash-sales/", strings.NewReader(body)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_FLASH_SALE")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/seller/flash-sales/00000000-0000-0000-0000-000000000000", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
