// Package rate implements Redis-backed fixed-window counters used to throttle
// repeated Verify misses for a single session identifier.
//
// # What this package must NOT do
//
//   - Store secrets or storage keys; counters are keyed by identifier only.
//   - Import goRWT (no upward imports).
package rate
