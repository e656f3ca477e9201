package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newLimiter(t *testing.T) (Limiter, *clock) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	return Limiter{Client: client, Prefix: "test:", Now: c.now}, c
}

func TestLimiterAllowSlidingWindow(t *testing.T) {
	limiter, c := newLimiter(t)
	ctx := context.Background()
	rule := Rule{Window: 2 * time.Second, Max: 2}

	for i := 0; i < rule.Max; i++ {
		d, err := limiter.Allow(ctx, "key", rule)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if d.Remaining != rule.Max-(i+1) {
			t.Fatalf("unexpected remaining: %d", d.Remaining)
		}
		c.t = c.t.Add(500 * time.Millisecond)
	}

	d, err := limiter.Allow(ctx, "key", rule)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected third request to be rejected, got %+v", d)
	}
	// the oldest event leaves the window two seconds after it was recorded
	want := time.Date(2026, 3, 1, 10, 0, 2, 0, time.UTC)
	if !d.ResetAt.Equal(want) {
		t.Fatalf("expected reset at %v, got %v", want, d.ResetAt)
	}

	c.t = want
	d, err = limiter.Allow(ctx, "key", rule)
	if err != nil {
		t.Fatalf("allow after slide: %v", err)
	}
	if !d.Allowed {
		t.Fatal("expected request to be allowed once the first event slid out")
	}
}

func TestLimiterRejectedAttemptsDoNotCount(t *testing.T) {
	limiter, c := newLimiter(t)
	ctx := context.Background()
	rule := Rule{Window: time.Second, Max: 1}

	if err := limiter.Check(ctx, "chat:u1", rule); err != nil {
		t.Fatalf("first check: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := limiter.Check(ctx, "chat:u1", rule); !errors.Is(err, ErrLimited) {
			t.Fatalf("expected ErrLimited, got %v", err)
		}
	}
	c.t = c.t.Add(time.Second)
	if err := limiter.Check(ctx, "chat:u1", rule); err != nil {
		t.Fatalf("expected quota back after one window, got %v", err)
	}
	if err := limiter.Check(ctx, "chat:u2", rule); err != nil {
		t.Fatalf("keys must be independent: %v", err)
	}
}

func TestLimiterWithoutClientAllows(t *testing.T) {
	d, err := Limiter{}.Allow(context.Background(), "k", Rule{Window: time.Second, Max: 3})
	if err != nil || !d.Allowed || d.Remaining != 3 {
		t.Fatalf("unexpected decision %+v err %v", d, err)
	}
}
