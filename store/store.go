// Package store defines the record-store contracts the cache engine talks
// to. Physical storage lives behind these interfaces: store/memory keeps
// records in a weighted LRU, store/kvstore encodes them into any byte
// provider (Ristretto, BigCache, Redis).
package store

import (
	"context"

	"github.com/unkn0wn-root/normcache/record"
)

// ReadOnlyStore is the read surface used by the readers.
type ReadOnlyStore interface {
	// LoadRecord returns (nil, nil) when key is absent.
	LoadRecord(ctx context.Context, key string, h Headers) (*record.Record, error)
	// LoadRecords returns the present records only, in no particular order.
	LoadRecords(ctx context.Context, keys []string, h Headers) ([]*record.Record, error)
}

// NormalizedCache is a durable record store.
type NormalizedCache interface {
	ReadOnlyStore

	// Merge folds rec into the stored record with the same key (overwriting
	// field by field) and returns the changed "key.fieldKey" set.
	Merge(ctx context.Context, rec *record.Record, h Headers) (record.KeySet, error)
	MergeRecords(ctx context.Context, recs []*record.Record, h Headers) (record.KeySet, error)

	// Remove deletes key and, with cascade, every record reachable from it
	// through References. It reports whether anything was present.
	Remove(ctx context.Context, key string, cascade bool) (bool, error)

	Clear(ctx context.Context) error

	// Dump returns every record, grouped by layer name.
	Dump(ctx context.Context) (map[string]map[string]*record.Record, error)
}

// Closer is implemented by stores holding connections or background state.
type Closer interface {
	Close(ctx context.Context) error
}
