// Package goRWT issues opaque session tokens backed by Redis.
//
// Sign stores a flat record under a fresh identifier. The identifier goes to
// the client; the caller keeps a secret. Together they derive the Redis key
// (base64 of identifier+secret), so a session is reachable only by someone
// presenting both. Verify reads the record back, Extend resets its TTL,
// Destroy removes it. Redis owns expiry.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goRWT is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([Record], [MetricsSnapshot], [AuditEvent]). Key derivation,
// the field codec, the Redis adapter and the verify throttle live under
// internal/ and session/.
//
// # What this package must NOT do
//
//   - Log or audit secrets or storage keys; identifiers only.
//   - Sign or encrypt payloads. The token is opaque and carries no claims.
//   - Perform I/O during Build. The Redis client opens on first use.
//   - Retry failed commands itself. Retries are go-redis's MaxRetries.
//
// # Performance contract
//
// Sign, Verify, Extend and Destroy are one Redis round trip each. Verify with
// VerifyExtendsToken pipelines the TTL reset into the same round trip.
package goRWT
