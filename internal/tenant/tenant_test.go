package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type mapFinder map[string]Store

func (m mapFinder) FindStore(_ context.Context, key string) (Store, error) {
	if s, ok := m[key]; ok {
		return s, nil
	}
	return Store{}, ErrStoreNotFound
}

func TestResolverHeaderAndSubdomain(t *testing.T) {
	r := NewResolver("", "shop.test", "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "abc")
	require.Equal(t, "abc", r.Resolve(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "acme.shop.test:8080"
	require.Equal(t, "acme", r.Resolve(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "shop.test"
	require.Equal(t, "", r.Resolve(req))

	req = httptest.NewRequest(http.MethodGet, "/ws?store=acme", nil)
	req.Host = "shop.test"
	require.Equal(t, "", r.Resolve(req), "query ignored unless enabled")
	r.QueryParam = "store"
	require.Equal(t, "acme", r.Resolve(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "other.example"
	require.Equal(t, "", r.Resolve(req))
}

func TestLoaderAndRequireTenant(t *testing.T) {
	finder := mapFinder{"acme": {ID: "s-1", Slug: "acme", Name: "Acme"}}
	var got Store
	h := NewResolver("", "shop.test", "").Middleware(
		Loader{Finder: finder}.Middleware(
			RequireTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = StoreFrom(r.Context())
				id, _ := From(r.Context())
				require.Equal(t, "s-1", id)
				w.WriteHeader(http.StatusNoContent)
			}))))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "acme.shop.test"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "Acme", got.Name)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "missing")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPrefixKey(t *testing.T) {
	require.Equal(t, "store:s1:cart", PrefixKey("s1", "cart"))
	require.Equal(t, "cart", PrefixKey("", "cart"))
}

func TestResolverWithoutRootDomainIgnoresHost(t *testing.T) {
	r := NewResolver("", "", "")
	for _, host := range []string{"api.example.com", "localhost:8080", "acme.shop.test"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		require.Equal(t, "", r.Resolve(req), host)
	}

	var reached bool
	h := r.Middleware(Loader{Finder: mapFinder{}}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := From(r.Context())
		require.False(t, ok)
		reached = true
		w.WriteHeader(http.StatusOK)
	})))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Host = "api.example.com"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, reached)
}
