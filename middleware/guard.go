package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	goRWT "github.com/MrEthical07/goRWT"
)

type recordContextKey struct{}

type identifierContextKey struct{}

// SecretFunc returns the server-side secret a request's sessions were signed
// with. Most applications return a constant; multi-tenant servers may key it
// off the host or a header.
type SecretFunc func(r *http.Request) string

// StaticSecret returns a SecretFunc that always yields secret.
func StaticSecret(secret string) SecretFunc {
	return func(*http.Request) string { return secret }
}

// RecordFromContext returns the session record a guard attached to ctx.
func RecordFromContext(ctx context.Context) (goRWT.Record, bool) {
	rec, ok := ctx.Value(recordContextKey{}).(goRWT.Record)
	return rec, ok
}

// IdentifierFromContext returns the bearer identifier that resolved to the
// attached record, for handlers that Extend or Destroy it.
func IdentifierFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identifierContextKey{}).(string)
	return id, ok && id != ""
}

// Guard verifies the bearer identifier of every request against engine.
// Requests without a live session get 401, throttled callers get 429, and
// store failures get 503.
func Guard(engine *goRWT.Engine, secret SecretFunc) func(http.Handler) http.Handler {
	return guard(engine, secret, false)
}

func guard(engine *goRWT.Engine, secret SecretFunc, extend bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || secret == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identifier, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := r.Context()
			if ip := clientIP(r); ip != "" {
				ctx = goRWT.WithClientIP(ctx, ip)
			}

			key := secret(r)
			rec, err := engine.Verify(ctx, identifier, key)
			if err != nil {
				writeVerifyError(w, err)
				return
			}
			if rec == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if extend {
				if err := engine.Extend(ctx, identifier, key); err != nil {
					writeVerifyError(w, err)
					return
				}
			}

			ctx = context.WithValue(ctx, recordContextKey{}, rec)
			ctx = context.WithValue(ctx, identifierContextKey{}, identifier)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, goRWT.ErrVerifyRateLimited):
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	case errors.Is(err, goRWT.ErrStore), errors.Is(err, goRWT.ErrEngineNotReady):
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
