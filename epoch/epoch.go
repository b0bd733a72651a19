// Package epoch stores one generation number per namespace. A byte-level
// record store stamps every entry with the epoch it was written under;
// bumping the epoch hides the whole namespace at once, and stale entries
// are deleted lazily as they are read.
//
// Use Local for a single process, or Redis to share epochs between
// processes writing the same keyspace.
package epoch

import "context"

// Store abstracts where epochs live. Implementations must be safe for
// concurrent use.
type Store interface {
	// Current returns the namespace epoch; missing => 0.
	Current(ctx context.Context, namespace string) (uint64, error)
	// Bump atomically increments and returns the new epoch.
	Bump(ctx context.Context, namespace string) (uint64, error)
	// Close releases resources (no-op ok).
	Close(ctx context.Context) error
}
