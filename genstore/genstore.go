// Package genstore holds the invalidation generation of a cache namespace.
// Use LocalGenStore (default) for a single process, or RedisGenStore when
// several host processes share one Redis-backed catalog.
package genstore

import "context"

// GenStore abstracts where generations live.
type GenStore interface {
	// Snapshot returns the current generation of ns; missing => 0.
	Snapshot(ctx context.Context, ns string) (uint64, error)
	// Bump atomically increments and returns the new generation of ns.
	Bump(ctx context.Context, ns string) (uint64, error)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
