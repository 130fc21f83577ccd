package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis command or connection failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrTouchFailed is returned alongside a valid record when the TTL refresh that
// accompanied a read could not be applied.
var ErrTouchFailed = errors.New("ttl refresh failed")

// Options configures how a [Store] reaches Redis.
type Options struct {
	// Addrs lists host:port pairs. One address yields a plain client; several
	// yield a cluster client (see redis.NewUniversalClient).
	Addrs        []string
	Username     string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MaxRetries   int
}

// Store is the Redis session adapter. It owns a single logical connection
// (a go-redis pooled client) with an explicit connect/disconnect lifecycle;
// every command lazily reconnects after [Store.Disconnect].
type Store struct {
	opts  Options
	hooks []redis.Hook

	mu     sync.RWMutex
	client redis.UniversalClient
}

// NewStore creates a disconnected [Store]. Hooks are installed on every client
// the store opens.
func NewStore(opts Options, hooks ...redis.Hook) *Store {
	return &Store{
		opts:  opts,
		hooks: hooks,
	}
}

func (s *Store) key(storageKey string) string {
	return s.opts.KeyPrefix + storageKey
}

// Connect opens the client if the store is disconnected. It reports whether a
// new client was created; calling it on a connected store is a no-op.
//
// go-redis dials lazily, so Connect itself performs no network I/O.
func (s *Store) Connect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return false
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        s.opts.Addrs,
		Username:     s.opts.Username,
		Password:     s.opts.Password,
		DB:           s.opts.DB,
		DialTimeout:  s.opts.DialTimeout,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		PoolSize:     s.opts.PoolSize,
		MaxRetries:   s.opts.MaxRetries,

		DisableIdentity: true,
	})
	for _, hook := range s.hooks {
		client.AddHook(hook)
	}

	s.client = client
	return true
}

// Disconnect closes the client. Calling it on a disconnected store is a no-op.
func (s *Store) Disconnect() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Connected reports whether the store currently holds an open client.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

// Client returns the current client, connecting first if needed.
//
// A concurrent Disconnect may close the returned client underneath the caller;
// the in-flight command then fails with "client is closed" and is reported as
// ErrRedisUnavailable. The next call reconnects.
func (s *Store) Client() redis.UniversalClient {
	for {
		s.mu.RLock()
		client := s.client
		s.mu.RUnlock()
		if client != nil {
			return client
		}
		s.Connect()
	}
}

// SetFields writes fields as a hash under storageKey and arms its TTL.
//
//	Performance: 1 round trip (MULTI HSET EXPIRE EXEC).
func (s *Store) SetFields(ctx context.Context, storageKey string, fields Fields, ttl time.Duration) error {
	if len(fields) == 0 {
		return errors.New("no fields to store")
	}
	key := s.key(storageKey)

	_, err := s.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields.Args()...)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// GetAll reads every field stored under storageKey. A missing key yields a nil
// [Record] and no error.
//
//	Performance: 1 Redis HGETALL.
func (s *Store) GetAll(ctx context.Context, storageKey string) (Record, error) {
	reply, err := s.Client().HGetAll(ctx, s.key(storageKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return Decode(reply), nil
}

// GetAllAndTouch reads every field under storageKey and resets its TTL in the
// same round trip. When only the TTL reset fails, the record is returned with
// an error wrapping [ErrTouchFailed].
//
//	Performance: 1 round trip (pipelined HGETALL + EXPIRE).
func (s *Store) GetAllAndTouch(ctx context.Context, storageKey string, ttl time.Duration) (Record, error) {
	key := s.key(storageKey)

	var (
		getCmd    *redis.MapStringStringCmd
		expireCmd *redis.BoolCmd
	)
	_, pipeErr := s.Client().Pipelined(ctx, func(pipe redis.Pipeliner) error {
		getCmd = pipe.HGetAll(ctx, key)
		expireCmd = pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err := getCmd.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// A dial or write failure can leave every command unset; only an error that
	// is the EXPIRE's own counts as a failed touch.
	expireErr := expireCmd.Err()
	if pipeErr != nil && (expireErr == nil || !errors.Is(pipeErr, expireErr)) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, pipeErr)
	}

	record := Decode(getCmd.Val())
	if expireErr != nil {
		return record, fmt.Errorf("%w: %v", ErrTouchFailed, expireErr)
	}
	return record, nil
}

// Delete removes storageKey. It reports whether the key existed; deleting a
// missing key is not an error.
func (s *Store) Delete(ctx context.Context, storageKey string) (bool, error) {
	n, err := s.Client().Del(ctx, s.key(storageKey)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Expire resets the TTL of storageKey. It reports whether the key existed;
// Redis ignores EXPIRE on a missing key, and so does this method.
func (s *Store) Expire(ctx context.Context, storageKey string, ttl time.Duration) (bool, error) {
	ok, err := s.Client().Expire(ctx, s.key(storageKey), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ok, nil
}

// TTL returns the remaining lifetime of storageKey and whether it exists.
// A key without expiry reports (0, true).
func (s *Store) TTL(ctx context.Context, storageKey string) (time.Duration, bool, error) {
	ttl, err := s.Client().TTL(ctx, s.key(storageKey)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch {
	case ttl == -2:
		return 0, false, nil
	case ttl < 0:
		return 0, true, nil
	default:
		return ttl, true, nil
	}
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.Client().Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
