package normcache

import (
	"context"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/normcache/cachekey"
	"github.com/unkn0wn-root/normcache/field"
	"github.com/unkn0wn-root/normcache/reader"
	"github.com/unkn0wn-root/normcache/record"
	"github.com/unkn0wn-root/normcache/store"
)

// Store is the high-level normalized cache API. Every method is safe for
// concurrent use; calls are serialized internally.
//
// An empty rootKey means record.QueryRoot.
type Store interface {
	Enabled() bool
	Close(ctx context.Context) error

	// WriteResponse normalizes tree and merges the records into the durable
	// store. It returns the changed fields as "recordKey.fieldKey".
	// Normalization failures (ErrInconsistentScalar, ErrUnsupportedMerge)
	// are programming errors and are always returned.
	WriteResponse(ctx context.Context, rootKey string, sets []field.FieldSet, tree map[string]any, vars field.Variables, h store.Headers) (record.KeySet, error)

	// ReadResponse rebuilds the tree for sets, speculative writes included.
	// Any error means the caller should treat the read as a miss.
	ReadResponse(ctx context.Context, rootKey string, sets []field.FieldSet, vars field.Variables, h store.Headers) (map[string]any, error)

	// WriteOptimistic journals tree under mutation id without touching the
	// durable store. Every id must eventually be rolled back.
	WriteOptimistic(ctx context.Context, id uuid.UUID, rootKey string, sets []field.FieldSet, tree map[string]any, vars field.Variables) (record.KeySet, error)
	RollbackOptimistic(ctx context.Context, id uuid.UUID) (record.KeySet, error)

	// Record level
	LoadRecord(ctx context.Context, key string, h store.Headers) (*record.Record, error)
	Stream(ctx context.Context, key string, h store.Headers) (*store.RecordStream, error)
	Remove(ctx context.Context, key string, cascade bool) (bool, error)
	Clear(ctx context.Context) error
	Dump(ctx context.Context) (map[string]map[string]*record.Record, error)
}

// Options tune the Store. Everything is optional.
type Options struct {
	Cache           store.NormalizedCache // durable store; nil => store/memory with MaxSize
	MaxSize         int64                 // weight of the default memory store; 0 => 32 MiB
	Resolver        cachekey.Resolver     // nil => cachekey.NoKey (path keys only)
	Reader          reader.Reader         // nil => reader.NewSequential(Resolver)
	JournalCapacity int64                 // journaled keys; 0 => 10k
	Logger          Logger                // nil => NopLogger
	Hooks           Hooks                 // nil => NopHooks
	Disabled        bool                  // writes are dropped, reads miss
}

func New(opts Options) (Store, error) {
	return newCache(opts)
}
