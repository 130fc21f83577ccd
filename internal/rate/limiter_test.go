package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, maxMisses int) (*Limiter, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return New(Config{MaxMisses: maxMisses, MissCooldown: time.Minute}), mr, rdb
}

func TestVerifyThrottleBlocksAfterMaxMisses(t *testing.T) {
	l, _, rdb := newLimiterTest(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckVerify(ctx, rdb, "id-1"); err != nil {
			t.Fatalf("check %d: unexpected error %v", i, err)
		}
		if err := l.IncrementVerifyMiss(ctx, rdb, "id-1"); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	if err := l.CheckVerify(ctx, rdb, "id-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckVerify(ctx, rdb, "id-2"); err != nil {
		t.Fatalf("other identifier must not be limited, got %v", err)
	}
}

func TestVerifyThrottleWindowExpires(t *testing.T) {
	l, mr, rdb := newLimiterTest(t, 1)
	ctx := context.Background()

	if err := l.IncrementVerifyMiss(ctx, rdb, "id-1"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := l.CheckVerify(ctx, rdb, "id-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := l.CheckVerify(ctx, rdb, "id-1"); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestVerifyThrottleReset(t *testing.T) {
	l, _, rdb := newLimiterTest(t, 5)
	ctx := context.Background()

	_ = l.IncrementVerifyMiss(ctx, rdb, "id-1")
	_ = l.IncrementVerifyMiss(ctx, rdb, "id-1")
	if n, _ := l.Misses(ctx, rdb, "id-1"); n != 2 {
		t.Fatalf("expected 2 misses, got %d", n)
	}

	if err := l.ResetVerify(ctx, rdb, "id-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := l.Misses(ctx, rdb, "id-1"); n != 0 {
		t.Fatalf("expected 0 misses after reset, got %d", n)
	}
}

func TestVerifyThrottleRedisDown(t *testing.T) {
	l, mr, rdb := newLimiterTest(t, 1)
	mr.Close()

	err := l.CheckVerify(context.Background(), rdb, "id-1")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
