package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLimited is returned by Check when the caller is over its quota.
var ErrLimited = errors.New("rate limit exceeded")

// Rule is a quota of Max events per sliding Window.
type Rule struct {
	Window time.Duration
	Max    int
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter implements a sliding window rate limiter backed by Redis sorted
// sets. Rejected attempts are not recorded, so a client hammering a closed
// window does not extend its own penalty.
type Limiter struct {
	Client *redis.Client
	Prefix string
	Now    func() time.Time
}

func (l Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Allow registers an event for key if rule still has room.
func (l Limiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	now := l.now()
	if l.Client == nil || rule.Max <= 0 || rule.Window <= 0 {
		return Decision{Allowed: true, Remaining: rule.Max, ResetAt: now.Add(rule.Window)}, nil
	}

	redisKey := l.Prefix + key
	cutoff := strconv.FormatInt(now.Add(-rule.Window).UnixNano(), 10)
	member := uuid.NewString()

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", cutoff)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.PExpire(ctx, redisKey, rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("ratelimit: %w", err)
	}

	count := int(countCmd.Val())
	d := Decision{Allowed: count <= rule.Max, ResetAt: now.Add(rule.Window)}
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		d.ResetAt = time.Unix(0, int64(oldest[0].Score)).Add(rule.Window)
	}
	if !d.Allowed {
		if err := l.Client.ZRem(ctx, redisKey, member).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: %w", err)
		}
		count--
	}
	d.Remaining = rule.Max - count
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d, nil
}

// Check is Allow for callers that only need a yes or no; it returns
// ErrLimited when the quota is used up.
func (l Limiter) Check(ctx context.Context, key string, rule Rule) error {
	d, err := l.Allow(ctx, key, rule)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return ErrLimited
	}
	return nil
}
