// Package provider defines the byte stores store/kvstore writes encoded
// records into.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the []byte previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation).
//
// The keyspace "rec:<ns>:" is owned by normcache. Foreign writes under that
// prefix fail wire validation and are deleted on read.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL (<= 0 means no expiry). May ignore
	// cost if unsupported. Returns ok=false when the store rejected the write
	// under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort). Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// BatchGetter is implemented by providers that can fetch many keys in one
// round trip. Missing keys are absent from the result.
type BatchGetter interface {
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
}
