package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/lock"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLockSerialises(t *testing.T) {
	_, client := newClient(t)
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var seen []string
	var mu sync.Mutex
	firstIn := make(chan struct{})
	releaseFirst := make(chan struct{})
	errs := make(chan error, 2)

	go func() {
		errs <- locker.WithLock(ctx, lock.Key("cart"), time.Second, func(context.Context) error {
			mu.Lock()
			seen = append(seen, "first")
			mu.Unlock()
			close(firstIn)
			<-releaseFirst
			return nil
		})
	}()
	<-firstIn

	go func() {
		errs <- locker.WithLock(ctx, lock.Key("cart"), time.Second, func(context.Context) error {
			mu.Lock()
			seen = append(seen, "second")
			mu.Unlock()
			return nil
		})
	}()

	close(releaseFirst)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, seen)
}

func TestWithLockReleasesOnError(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{R: client}
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "lock:x", time.Second, func(context.Context) error {
		require.True(t, mr.Exists("lock:x"))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("lock:x"))
}

func TestWithLockBusyAfterMaxWait(t *testing.T) {
	mr, client := newClient(t)
	require.NoError(t, mr.Set("lock:held", "someone-else"))

	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}
	called := false
	err := locker.WithLock(context.Background(), "lock:held", time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrBusy)
	require.False(t, called)
	// a foreign token is never released
	got, _ := mr.Get("lock:held")
	require.Equal(t, "someone-else", got)
}

func TestWithLockHonoursCallerCancellation(t *testing.T) {
	mr, client := newClient(t)
	require.NoError(t, mr.Set("lock:held", "someone-else"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
	err := locker.WithLock(ctx, "lock:held", time.Second, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithLockExpiresAbandonedKey(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{R: client}

	require.NoError(t, locker.WithLock(context.Background(), "lock:ttl", time.Minute, func(context.Context) error {
		require.Equal(t, time.Minute, mr.TTL("lock:ttl"))
		return nil
	}))
}
