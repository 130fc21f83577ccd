package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds verify throttle tuning parameters.
type Config struct {
	Prefix       string
	MaxMisses    int
	MissCooldown time.Duration
}

// Limiter counts Verify misses per identifier in fixed windows.
type Limiter struct {
	config Config
}

// New creates a [Limiter]. The Redis client is passed per call so the limiter
// follows the engine's connect/disconnect lifecycle.
func New(cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rwt:vm:"
	}
	return &Limiter{config: cfg}
}

// CheckVerify returns ErrRateLimited when identifier already exceeded the
// allowed number of misses in the current window.
func (l *Limiter) CheckVerify(ctx context.Context, rdb redis.Cmdable, identifier string) error {
	count, err := rdb.Get(ctx, l.key(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxMisses) {
		return ErrRateLimited
	}

	return nil
}

// IncrementVerifyMiss records a Verify that found no session.
func (l *Limiter) IncrementVerifyMiss(ctx context.Context, rdb redis.Cmdable, identifier string) error {
	key := l.key(identifier)

	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := rdb.Expire(ctx, key, l.config.MissCooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return nil
}

// ResetVerify clears the miss counter after a successful Verify.
func (l *Limiter) ResetVerify(ctx context.Context, rdb redis.Cmdable, identifier string) error {
	if err := rdb.Del(ctx, l.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Misses returns the current miss counter for identifier.
func (l *Limiter) Misses(ctx context.Context, rdb redis.Cmdable, identifier string) (int, error) {
	count, err := rdb.Get(ctx, l.key(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) key(identifier string) string {
	return l.config.Prefix + identifier
}
