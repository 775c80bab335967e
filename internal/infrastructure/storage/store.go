// Package storage defines the persistence port the cache writes its
// snapshots through, plus the backends that implement it. The cache never
// touches a concrete backend directly, so tests run against the in-memory
// implementation.
package storage

import "context"

// Store is a flat key/value port. Get reports whether the key existed so an
// empty value is distinguishable from a missing one.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
