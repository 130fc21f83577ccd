// Package session provides the Redis side of goRWT: the hash field codec and the
// connection-owning [Store] adapter.
//
// # Field codec
//
// Records are flat string-keyed maps. [Encode] coerces scalar values to text,
// drops falsy values (nil, "", zero numbers, false, NaN) and orders fields by
// name. [Decode] turns an HGETALL reply back into a [Record].
//
// # Architecture boundaries
//
// This package owns Redis I/O and the [Record] model. It does NOT generate
// identifiers, derive storage keys, or decide TTL policy. Those responsibilities
// belong to the Engine.
//
// # What this package must NOT do
//
//   - Import goRWT (no upward imports).
//   - Retry commands on its own; go-redis MaxRetries is the only retry layer.
//   - Log or return secrets.
package session
