package flashsale

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

const ruleKeyPrefix = "flashsale:rule:"

// cachedRule wraps the rule so "no active sale" can be cached too.
type cachedRule struct {
	Rule *pricing.Rule `json:"rule"`
}

// CachedLookup keeps per-product rules in Redis. An entry never outlives the
// end date of the rule it holds, and concurrent misses share one query.
type CachedLookup struct {
	Next Lookup
	R    *redis.Client
	TTL  time.Duration

	group singleflight.Group
}

// NewCachedLookup wraps next with a Redis cache.
func NewCachedLookup(next Lookup, rdb *redis.Client, ttl time.Duration) *CachedLookup {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedLookup{Next: next, R: rdb, TTL: ttl}
}

func ruleKey(productID uuid.UUID) string {
	return ruleKeyPrefix + productID.String()
}

func (c *CachedLookup) ActiveRule(ctx context.Context, productID uuid.UUID, now time.Time) (*pricing.Rule, error) {
	if c.R == nil {
		return c.Next.ActiveRule(ctx, productID, now)
	}
	if rule, ok := c.get(ctx, productID, now); ok {
		obs.Inc(obs.FlashSaleLookups, "cache", "hit")
		return rule, nil
	}
	obs.Inc(obs.FlashSaleLookups, "cache", "miss")
	v, err, _ := c.group.Do(productID.String(), func() (any, error) {
		rule, err := c.Next.ActiveRule(ctx, productID, now)
		if err != nil {
			return nil, err
		}
		c.set(ctx, c.R, productID, rule, now)
		return rule, nil
	})
	if err != nil {
		return nil, err
	}
	rule, _ := v.(*pricing.Rule)
	return rule, nil
}

func (c *CachedLookup) ActiveRules(ctx context.Context, productIDs []uuid.UUID, now time.Time) (map[uuid.UUID]*pricing.Rule, error) {
	if c.R == nil {
		return c.Next.ActiveRules(ctx, productIDs, now)
	}
	out := make(map[uuid.UUID]*pricing.Rule, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = ruleKey(id)
	}
	values, err := c.R.MGet(ctx, keys...).Result()
	if err != nil {
		values = make([]any, len(keys))
	}
	var misses []uuid.UUID
	for i, id := range productIDs {
		if rule, ok := decodeCached(values[i], now); ok {
			if rule != nil {
				out[id] = rule
			}
			continue
		}
		misses = append(misses, id)
	}
	obs.Inc(obs.FlashSaleLookups, "cache", "batch")
	if len(misses) == 0 {
		return out, nil
	}

	v, err, _ := c.group.Do(batchKey(misses), func() (any, error) {
		fetched, err := c.Next.ActiveRules(ctx, misses, now)
		if err != nil {
			return nil, err
		}
		pipe := c.R.Pipeline()
		for _, id := range misses {
			c.set(ctx, pipe, id, fetched[id], now)
		}
		_, _ = pipe.Exec(ctx)
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	fetched, _ := v.(map[uuid.UUID]*pricing.Rule)
	for _, id := range misses {
		if rule := fetched[id]; rule != nil {
			out[id] = rule
		}
	}
	return out, nil
}

// Invalidate drops cached entries so the next read goes to the database.
func (c *CachedLookup) Invalidate(ctx context.Context, productIDs ...uuid.UUID) error {
	if c.R == nil || len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = ruleKey(id)
	}
	if err := c.R.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("flashsale: invalidate rules: %w", err)
	}
	return nil
}

func (c *CachedLookup) get(ctx context.Context, productID uuid.UUID, now time.Time) (*pricing.Rule, bool) {
	raw, err := c.R.Get(ctx, ruleKey(productID)).Result()
	if err != nil {
		return nil, false
	}
	return decodeCached(raw, now)
}

func (c *CachedLookup) set(ctx context.Context, cmd redis.Cmdable, productID uuid.UUID, rule *pricing.Rule, now time.Time) {
	ttl := c.entryTTL(rule, now)
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(cachedRule{Rule: rule})
	if err != nil {
		return
	}
	_ = cmd.Set(ctx, ruleKey(productID), data, ttl).Err()
}

func (c *CachedLookup) entryTTL(rule *pricing.Rule, now time.Time) time.Duration {
	ttl := c.TTL
	if rule != nil {
		if left := rule.EndDate.Sub(now); left < ttl {
			ttl = left
		}
	}
	return ttl
}

// decodeCached reports ok=false for absent or corrupt entries. A cached rule
// that has already ended counts as "no rule".
func decodeCached(v any, now time.Time) (*pricing.Rule, bool) {
	var raw string
	switch s := v.(type) {
	case string:
		raw = s
	default:
		return nil, false
	}
	var entry cachedRule
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false
	}
	if entry.Rule != nil && !entry.Rule.ActiveAt(now) {
		return nil, true
	}
	return entry.Rule, true
}

func batchKey(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	sort.Strings(parts)
	return "batch:" + strings.Join(parts, ",")
}
