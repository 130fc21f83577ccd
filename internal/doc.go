// Package internal contains helper utilities that are intentionally private to goRWT:
// session identifier generation and storage key derivation.
//
// # Sub-packages
//
//   - rate: Redis-backed fixed-window counters used by the verify throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public goRWT API.
//   - Talk to Redis (key derivation is pure).
//   - Be imported by any package outside the goRWT module.
package internal
