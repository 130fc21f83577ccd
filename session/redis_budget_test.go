package session

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// cmdCounter is a go-redis Hook that counts Redis round trips: single
// commands and pipeline flushes.
type cmdCounter struct {
	singles   atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.singles.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		// One network round trip regardless of command count.
		h.pipelines.Add(1)
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.singles.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) RoundTrips() int64 { return h.singles.Load() + h.pipelines.Load() }

func newCountedStore(t *testing.T) (*Store, *cmdCounter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}

	counter := &cmdCounter{}
	store := NewStore(Options{Addrs: []string{mr.Addr()}, KeyPrefix: "sess:"}, counter)
	t.Cleanup(func() {
		_ = store.Disconnect()
		mr.Close()
	})

	// Warm the pool so connection setup does not count against budgets.
	if _, err := store.Ping(context.Background()); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}
	counter.Reset()
	return store, counter
}

func TestStoreRedisBudget(t *testing.T) {
	ctx := context.Background()
	store, counter := newCountedStore(t)

	if err := store.SetFields(ctx, "seed", testFields(), time.Minute); err != nil {
		t.Fatalf("seed: %v", err)
	}
	counter.Reset()

	tests := []struct {
		name          string
		op            func() error
		wantPipelines int64
		wantSingles   int64
	}{
		{
			name: "SetFields",
			op: func() error {
				return store.SetFields(ctx, "budget", testFields(), time.Minute)
			},
			wantPipelines: 1,
		},
		{
			name: "GetAll",
			op: func() error {
				_, err := store.GetAll(ctx, "seed")
				return err
			},
			wantSingles: 1,
		},
		{
			name: "GetAllAndTouch",
			op: func() error {
				_, err := store.GetAllAndTouch(ctx, "seed", time.Minute)
				return err
			},
			wantPipelines: 1,
		},
		{
			name: "Expire",
			op: func() error {
				_, err := store.Expire(ctx, "seed", time.Minute)
				return err
			},
			wantSingles: 1,
		},
		{
			name: "TTL",
			op: func() error {
				_, _, err := store.TTL(ctx, "seed")
				return err
			},
			wantSingles: 1,
		},
		{
			name: "Delete",
			op: func() error {
				_, err := store.Delete(ctx, "budget")
				return err
			},
			wantSingles: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			counter.Reset()
			if err := tc.op(); err != nil {
				t.Fatalf("%s failed: %v", tc.name, err)
			}
			if got := counter.pipelines.Load(); got != tc.wantPipelines {
				t.Fatalf("expected %d pipelines, got %d", tc.wantPipelines, got)
			}
			if got := counter.singles.Load(); got != tc.wantSingles {
				t.Fatalf("expected %d single commands, got %d", tc.wantSingles, got)
			}
			if counter.RoundTrips() != 1 {
				t.Fatalf("expected exactly one round trip, got %d", counter.RoundTrips())
			}
		})
	}
}
