// Package middleware adapts goRWT.Engine session verification to net/http.
//
// # Guards
//
//   - [Guard] verifies the bearer identifier and attaches the session record.
//   - [RequireSliding] also resets the session TTL on every accepted request.
//
// Each guard reads the Authorization header, calls Engine.Verify with the
// secret returned by a [SecretFunc], and injects the record and identifier
// into the request context. The remote address is forwarded to the engine
// with goRWT.WithClientIP for audit events.
//
// # What this package must NOT do
//
//   - Derive storage keys or talk to Redis directly.
//   - Decide anything beyond pass/reject from Engine.Verify.
package middleware
