package rate

import "errors"

var (
	// ErrRateLimited is returned when the identifier has exhausted its miss budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter read/write failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
