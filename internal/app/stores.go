package app

import (
	"context"
	"strings"

	"github.com/noah-isme/storefront-api/internal/cache"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/repo"
	"github.com/noah-isme/storefront-api/internal/tenant"
)

// StoreQuerier looks stores up by id or slug.
type StoreQuerier interface {
	GetStoreByKey(ctx context.Context, key string) (db.Store, error)
}

// StoreFinder resolves tenants for the loader middleware. Found stores are
// cached under their lower-cased key; unknown keys are not.
type StoreFinder struct {
	Q     StoreQuerier
	Cache *cache.JSON
}

// FindStore implements tenant.Finder.
func (f *StoreFinder) FindStore(ctx context.Context, key string) (tenant.Store, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return tenant.Store{}, tenant.ErrStoreNotFound
	}
	return cache.Fetch(ctx, f.Cache, "stores:"+strings.ToLower(key), func(ctx context.Context) (tenant.Store, error) {
		row, err := f.Q.GetStoreByKey(ctx, key)
		if repo.IsNotFound(err) {
			return tenant.Store{}, tenant.ErrStoreNotFound
		}
		if err != nil {
			return tenant.Store{}, err
		}
		return tenant.Store{
			ID:       repo.String(row.ID),
			Slug:     row.Slug,
			Name:     row.Name,
			Currency: row.Currency,
			OwnerID:  repo.String(row.OwnerID),
		}, nil
	})
}
