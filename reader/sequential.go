package reader

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/normcache/cachekey"
	"github.com/unkn0wn-root/normcache/field"
	"github.com/unkn0wn-root/normcache/store"
)

// Sequential reads depth-first, loading each referenced record as soon as
// it is reached. One store call per object; suits in-memory stores.
type Sequential struct {
	resolver cachekey.Resolver
}

var _ Reader = (*Sequential)(nil)

// NewSequential returns a depth-first reader. resolver names objects whose
// field is absent from the parent record; nil means cachekey.NoKey.
func NewSequential(resolver cachekey.Resolver) *Sequential {
	return &Sequential{resolver: orNoKey(resolver)}
}

func (r *Sequential) Read(ctx context.Context, s store.ReadOnlyStore, rootKey string, sets []field.FieldSet, vars field.Variables, h store.Headers) (map[string]any, error) {
	return r.object(ctx, s, rootKey, sets, vars, h)
}

func (r *Sequential) object(ctx context.Context, s store.ReadOnlyStore, key string, sets []field.FieldSet, vars field.Variables, h store.Headers) (map[string]any, error) {
	rec, err := s.LoadRecord(ctx, key, h)
	if err != nil {
		return nil, fmt.Errorf("reader: load %q: %w", key, err)
	}
	if rec == nil {
		return nil, &CacheMissError{Key: key}
	}

	obj := make(map[string]any)
	next := func(child string, childSets []field.FieldSet, set func(any)) error {
		m, err := r.object(ctx, s, child, childSets, vars, h)
		if err != nil {
			return err
		}
		set(m)
		return nil
	}
	if err := fields(rec, sets, vars, r.resolver, obj, next); err != nil {
		return nil, err
	}
	return obj, nil
}
