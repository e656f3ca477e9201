package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an untouched cart survives.
const DefaultTTL = 7 * 24 * time.Hour

// Storage persists cart snapshots. Load returns an empty State for unknown keys.
type Storage interface {
	Load(ctx context.Context, key string) (State, error)
	Save(ctx context.Context, key string, s State) error
	Delete(ctx context.Context, key string) error
}

// RedisStorage keeps carts as JSON with a sliding expiry: every read or
// write pushes the expiry out by TTL.
type RedisStorage struct {
	R   *redis.Client
	TTL time.Duration
}

func (r RedisStorage) ttl() time.Duration {
	if r.TTL <= 0 {
		return DefaultTTL
	}
	return r.TTL
}

func (r RedisStorage) Load(ctx context.Context, key string) (State, error) {
	raw, err := r.R.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{Items: []Item{}}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("load cart: %w", err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("decode cart: %w", err)
	}
	if err := r.R.Expire(ctx, key, r.ttl()).Err(); err != nil {
		return State{}, fmt.Errorf("touch cart: %w", err)
	}
	return s, nil
}

func (r RedisStorage) Save(ctx context.Context, key string, s State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return r.R.Set(ctx, key, raw, r.ttl()).Err()
}

func (r RedisStorage) Delete(ctx context.Context, key string) error {
	return r.R.Del(ctx, key).Err()
}

// MemoryStorage is a process-local Storage for tests and single-node setups.
type MemoryStorage struct {
	mu    sync.Mutex
	carts map[string]State
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{carts: map[string]State{}}
}

func (m *MemoryStorage) Load(_ context.Context, key string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.carts[key]
	if !ok {
		return State{Items: []Item{}}, nil
	}
	return s.clone(), nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[key] = s.clone()
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, key)
	return nil
}
