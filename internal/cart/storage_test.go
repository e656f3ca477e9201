package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisStorageSlidingTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := RedisStorage{R: client, TTL: time.Hour}
	ctx := context.Background()

	empty, err := store.Load(ctx, "cart:x")
	require.NoError(t, err)
	require.True(t, empty.Empty())

	s, err := AddItem(Clear(t0), Item{ProductID: "p", SizeID: "s", Quantity: 2}, t0)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "cart:x", s))
	require.Equal(t, time.Hour, mr.TTL("cart:x"))

	mr.FastForward(45 * time.Minute)
	loaded, err := store.Load(ctx, "cart:x")
	require.NoError(t, err)
	require.Equal(t, s.Items, loaded.Items)
	require.Equal(t, time.Hour, mr.TTL("cart:x"))

	mr.FastForward(2 * time.Hour)
	gone, err := store.Load(ctx, "cart:x")
	require.NoError(t, err)
	require.True(t, gone.Empty())

	require.NoError(t, store.Save(ctx, "cart:x", s))
	require.NoError(t, store.Delete(ctx, "cart:x"))
	require.False(t, mr.Exists("cart:x"))
}

func TestMemoryStorageIsolatesSnapshots(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	s, err := AddItem(Clear(t0), Item{SizeID: "s", Quantity: 1}, t0)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "k", s))

	s.Items[0].Quantity = 50
	loaded, err := store.Load(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Items[0].Quantity)

	require.NoError(t, store.Delete(ctx, "k"))
	loaded, err = store.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, loaded.Empty())
}
