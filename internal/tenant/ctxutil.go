package tenant

import (
	"context"
	"strings"
)

type ctxKey int

const (
	keyCtx ctxKey = iota
	storeCtx
)

// Store is the resolved tenant record carried on request contexts.
type Store struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	OwnerID  string `json:"owner_id,omitempty"`
}

// With attaches a raw tenant key, a store id or slug, to ctx.
func With(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyCtx, key)
}

// From returns the canonical store id once the Loader ran, otherwise the raw
// key the Resolver found.
func From(ctx context.Context) (string, bool) {
	if s, ok := StoreFrom(ctx); ok {
		return s.ID, true
	}
	key, _ := ctx.Value(keyCtx).(string)
	key = strings.TrimSpace(key)
	return key, key != ""
}

// WithStore attaches the loaded store.
func WithStore(ctx context.Context, s Store) context.Context {
	return context.WithValue(With(ctx, s.ID), storeCtx, s)
}

// StoreFrom returns the loaded store if the Loader middleware ran.
func StoreFrom(ctx context.Context) (Store, bool) {
	s, ok := ctx.Value(storeCtx).(Store)
	return s, ok && s.ID != ""
}
