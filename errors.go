package goRWT

import "errors"

var (
	// ErrConfig is returned by [Builder.Build], [ParseConfig], [LoadConfig] and
	// [ConfigFromMap] when configuration is malformed or fails validation.
	ErrConfig = errors.New("invalid configuration")
	// ErrInvalidArgument is returned before any Redis interaction when a caller
	// passes an empty identifier, an empty secret, or a record that is nil,
	// nested, or encodes to no fields.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStore wraps every failure reported by the Redis session store.
	ErrStore = errors.New("session store failure")
	// ErrEngineNotReady is returned when an Engine method is called on a nil or
	// closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrVerifyRateLimited is returned by Verify when the verify throttle is
	// enabled and the identifier exceeded its miss budget.
	ErrVerifyRateLimited = errors.New("verify rate limited")
)
