// Package lock provides a Redis mutex held for the span of a callback.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned when the lock is still held after MaxWait.
var ErrBusy = errors.New("lock: resource busy")

// Only the holder's token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker serialises work on a key across API replicas.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
	// MaxWait bounds how long acquisition polls before ErrBusy. Zero waits
	// for as long as ctx allows.
	MaxWait time.Duration
}

// Key namespaces a lock name.
func Key(name string) string { return "lock:" + name }

// lease is one successful acquisition.
type lease struct {
	key, token string
}

// WithLock runs fn while holding key and releases it when fn returns. ttl
// expires the key if the holder dies before releasing.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	held, err := l.acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer l.release(held)
	return fn(ctx)
}

func (l Locker) acquire(ctx context.Context, key string, ttl time.Duration) (lease, error) {
	wait := ctx
	if l.MaxWait > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, l.MaxWait)
		defer cancel()
	}
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	ticker := time.NewTicker(backoff)
	defer ticker.Stop()

	held := lease{key: key, token: uuid.NewString()}
	for {
		ok, err := l.R.SetNX(ctx, key, held.token, ttl).Result()
		switch {
		case err != nil:
			return lease{}, err
		case ok:
			return held, nil
		}
		select {
		case <-wait.Done():
			if ctx.Err() != nil {
				return lease{}, ctx.Err()
			}
			return lease{}, ErrBusy
		case <-ticker.C:
		}
	}
}

// release runs detached so a cancelled request still frees the key.
func (l Locker) release(held lease) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.R, []string{held.key}, held.token).Err()
}
