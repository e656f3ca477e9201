// Package cache holds the Redis JSON cache shared by read-heavy services and
// the helpers that namespace keys per store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/storefront-api/internal/obs"
)

// JSON stores JSON documents in Redis with a fixed TTL. A nil *JSON, or one
// without a client, caches nothing.
type JSON struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// New constructs a cache helper.
func New(client *redis.Client, ttl time.Duration) *JSON {
	return &JSON{client: client, ttl: ttl}
}

func (c *JSON) enabled() bool { return c != nil && c.client != nil }

// GetJSON decodes the document at key into dst and reports whether it existed.
func (c *JSON) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, json.Unmarshal(data, dst)
}

// SetJSON stores v at key. A non-positive TTL disables writes.
func (c *JSON) SetJSON(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// DeletePrefix unlinks every key starting with prefix, one scan page at a time.
func (c *JSON) DeletePrefix(ctx context.Context, prefix string) error {
	if !c.enabled() || prefix == "" {
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Unlink(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if cursor = next; cursor == 0 {
			return nil
		}
	}
}

// Fetch returns the document at key, or calls load, caches its result and
// returns it. Concurrent misses on one key share a single load. Redis
// failures are logged and bypassed; only load errors are returned, and they
// are never cached.
func Fetch[T any](ctx context.Context, c *JSON, key string, load func(context.Context) (T, error)) (T, error) {
	var out T
	hit, err := c.GetJSON(ctx, key, &out)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	if hit && err == nil {
		obs.Inc(obs.CacheRequests, "hit")
		return out, nil
	}
	obs.Inc(obs.CacheRequests, "miss")
	if !c.enabled() {
		return load(ctx)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		fresh, err := load(ctx)
		if err != nil {
			return fresh, err
		}
		if err := c.SetJSON(ctx, key, fresh); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
