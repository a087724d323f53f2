// Package provider defines the byte store behind the versioned catalog cache.
//
// Implementations must return exactly the bytes passed to Set. The store
// wraps every value in its own envelope (generation + expiry) and treats
// anything else found under its namespace as corruption, so a provider never
// needs to understand catalog entities.
package provider

import (
	"context"
	"time"
)

// Provider is a byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl. cost is the encoded size in bytes; backends
	// without cost accounting ignore it. ok=false means the write was
	// dropped under memory pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	Del(ctx context.Context, key string) error
	Close(ctx context.Context) error
}

// Usage is what an in-process backend knows about itself. Entries and Bytes
// include entries orphaned by older generations that have not aged out yet.
type Usage struct {
	Backend string `json:"backend"`
	Entries int64  `json:"entries"`
	Bytes   int64  `json:"bytes"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Reporter is implemented by backends that can report Usage cheaply.
type Reporter interface {
	Usage() Usage
}

// Pinger is implemented by remote backends whose reachability can change
// after startup.
type Pinger interface {
	Ping(ctx context.Context) error
}
