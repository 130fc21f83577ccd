package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goRWT "github.com/MrEthical07/goRWT"
	"github.com/alicebob/miniredis/v2"
)

const loadSecret = "loadtest-secret"

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (verify + extend)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "sess:", "session key prefix")
		extends     = flag.Bool("verify-extends", false, "extend the TTL on every verify")
		configPath  = flag.String("config", "", "optional YAML config file; flags above override its store address and prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	cfg := goRWT.DefaultConfig()
	if *configPath != "" {
		loaded, err := goRWT.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(2)
		}
		cfg = loaded
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" && *configPath == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else if addr != "" {
		fmt.Printf("using redis at %s\n", addr)
	}
	if addr != "" {
		cfg.Store.Addrs = []string{addr}
	}
	cfg.Store.KeyPrefix = *prefix
	cfg.Store.PoolSize = *concurrency
	cfg.Session.VerifyExtendsToken = *extends
	cfg.Metrics.Enabled = true

	engine, err := goRWT.New().WithConfig(cfg).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(2)
	}
	defer engine.Close()

	if err := engine.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}

	ids := make([]string, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := 0; i < *sessions; i++ {
		id, err := engine.Sign(ctx, buildRecord(i), loadSecret, goRWT.WithExpire(24*time.Hour))
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign failed: %v\n", err)
			os.Exit(1)
		}
		ids[i] = id
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	verifyStats := runPhase(ids, *ops, *concurrency, 7919, func(id string) error {
		rec, err := engine.Verify(ctx, id, loadSecret)
		if err == nil && rec == nil {
			return errMissing
		}
		return err
	})
	extendStats := runPhase(ids, *ops, *concurrency, 6151, func(id string) error {
		return engine.Extend(ctx, id, loadSecret)
	})

	fmt.Println("---- results ----")
	printStats("verify", verifyStats)
	printStats("extend", extendStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: verify_hit=%d verify_miss=%d store_failures=%d\n",
		snap.Counters[goRWT.MetricVerifyHit],
		snap.Counters[goRWT.MetricVerifyMiss],
		snap.Counters[goRWT.MetricStoreCommandFailure],
	)
}

var errMissing = fmt.Errorf("session missing")

func runPhase(ids []string, ops, concurrency int, seed int64, op func(id string) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				id := ids[r.Intn(len(ids))]
				t0 := time.Now()
				err := op(id)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func buildRecord(i int) map[string]any {
	return map[string]any{
		"user":    "u" + strconv.Itoa(i),
		"tenant":  i % 16,
		"role":    "member",
		"premium": i%7 == 0,
	}
}
