package cache

import (
	"context"
	"strings"

	"github.com/noah-isme/storefront-api/internal/tenant"
)

// Key joins parts and namespaces the result with the current store.
func Key(ctx context.Context, parts ...string) string {
	base := strings.Join(parts, ":")
	id, ok := tenant.From(ctx)
	if !ok {
		return base
	}
	return tenant.PrefixKey(id, base)
}

// KeyCatalogList returns a per-store cache key for catalog lists.
func KeyCatalogList(ctx context.Context, base string) string {
	return Key(ctx, "catalog", "list", base)
}

// KeyProduct returns a per-store key for a given product slug.
func KeyProduct(ctx context.Context, slug string) string {
	return Key(ctx, "catalog", "product", slug)
}

// CatalogPrefix is the prefix of every catalog key of a store.
func CatalogPrefix(storeID string) string {
	return tenant.PrefixKey(storeID, "catalog:")
}

// KeyAnalytics returns a per-store key for a dashboard report.
func KeyAnalytics(ctx context.Context, report string, parts ...string) string {
	return Key(ctx, append([]string{"analytics", report}, parts...)...)
}
