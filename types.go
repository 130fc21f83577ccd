package goRWT

import (
	"time"

	"github.com/MrEthical07/goRWT/session"
)

// Record is a verified session payload: field names mapped to their stored
// text values. A nil Record means no live session matched.
type Record = session.Record

// SignOption adjusts a single [Engine.Sign] call without touching the
// engine's configuration.
type SignOption func(*signOptions)

type signOptions struct {
	expire time.Duration
}

// WithExpire overrides the session TTL for one Sign call. Redis keeps TTLs at
// second resolution, so sub-second remainders are truncated; values below one
// second are rejected with [ErrInvalidArgument].
func WithExpire(d time.Duration) SignOption {
	return func(o *signOptions) {
		o.expire = d
	}
}

func (e *Engine) signOptions(opts []SignOption) signOptions {
	o := signOptions{expire: e.config.Session.Expire}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
