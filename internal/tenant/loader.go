package tenant

import (
	"context"
	"errors"
	"net/http"

	"github.com/noah-isme/storefront-api/internal/common"
)

// ErrStoreNotFound is returned by finders when no store matches the key.
var ErrStoreNotFound = errors.New("store not found")

// Finder resolves a store by id or slug.
type Finder interface {
	FindStore(ctx context.Context, key string) (Store, error)
}

// Loader turns the resolved tenant key into a Store. Requests without a
// tenant pass through untouched; use RequireTenant to reject them.
type Loader struct {
	Finder Finder
}

// Middleware loads the store named by the tenant key in context.
func (l Loader) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := From(r.Context())
		if !ok || l.Finder == nil {
			next.ServeHTTP(w, r)
			return
		}
		store, err := l.Finder.FindStore(r.Context(), key)
		if err != nil {
			if errors.Is(err, ErrStoreNotFound) {
				common.JSONError(w, http.StatusNotFound, "STORE_NOT_FOUND", "store not found", nil)
				return
			}
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to resolve store", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithStore(r.Context(), store)))
	})
}

// RequireTenant ensures a store exists in the request context.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := StoreFrom(r.Context()); !ok {
			common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "store is required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
