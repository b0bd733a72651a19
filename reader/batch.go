package reader

import (
	"context"
	"fmt"
	"slices"

	"github.com/unkn0wn-root/normcache/cachekey"
	"github.com/unkn0wn-root/normcache/field"
	"github.com/unkn0wn-root/normcache/record"
	"github.com/unkn0wn-root/normcache/store"
)

// Batch reads breadth-first: every reference found while resolving one
// level is loaded with a single LoadRecords call for the next level. Suits
// stores where per-call latency dominates.
type Batch struct {
	resolver cachekey.Resolver
}

var _ Reader = (*Batch)(nil)

// NewBatch returns a breadth-first reader. nil resolver means cachekey.NoKey.
func NewBatch(resolver cachekey.Resolver) *Batch {
	return &Batch{resolver: orNoKey(resolver)}
}

type pending struct {
	key  string
	pos  []int // depth-first position: child indexes from the root
	sets []field.FieldSet
	set  func(any)
}

// firstErr keeps the error a depth-first walk would meet first, so Batch
// fails exactly like Sequential even though it visits records level by
// level.
type firstErr struct {
	err error
	pos []int
}

func (f *firstErr) before(pos []int) bool {
	return f.err == nil || slices.Compare(pos, f.pos) < 0
}

func (f *firstErr) offer(pos []int, err error) {
	if f.before(pos) {
		f.err, f.pos = err, pos
	}
}

func childPos(pos []int, i int) []int {
	out := make([]int, len(pos)+1)
	copy(out, pos)
	out[len(pos)] = i
	return out
}

func (r *Batch) Read(ctx context.Context, s store.ReadOnlyStore, rootKey string, sets []field.FieldSet, vars field.Variables, h store.Headers) (map[string]any, error) {
	var (
		root  map[string]any
		first firstErr
	)
	frontier := []pending{{
		key:  rootKey,
		sets: sets,
		set:  func(v any) { root = v.(map[string]any) },
	}}

	for len(frontier) > 0 {
		// nothing at or after the first known error can change the outcome
		live := make([]pending, 0, len(frontier))
		for _, p := range frontier {
			if first.before(p.pos) {
				live = append(live, p)
			}
		}
		if len(live) == 0 {
			break
		}

		recs, err := r.load(ctx, s, live, h)
		if err != nil {
			return nil, err
		}

		var next []pending
		for _, p := range live {
			rec, ok := recs[p.key]
			if !ok {
				first.offer(p.pos, &CacheMissError{Key: p.key})
				continue
			}
			obj := make(map[string]any)
			p.set(obj)

			n := 0
			enqueue := func(key string, sets []field.FieldSet, set func(any)) error {
				next = append(next, pending{key: key, pos: childPos(p.pos, n), sets: sets, set: set})
				n++
				return nil
			}
			if err := fields(rec, p.sets, vars, r.resolver, obj, enqueue); err != nil {
				// after every reference this record handed out so far
				first.offer(childPos(p.pos, n), err)
			}
		}
		frontier = next
	}
	if first.err != nil {
		return nil, first.err
	}
	return root, nil
}

// load fetches every distinct key of the frontier in one call.
func (r *Batch) load(ctx context.Context, s store.ReadOnlyStore, frontier []pending, h store.Headers) (map[string]*record.Record, error) {
	keys := make([]string, 0, len(frontier))
	seen := make(map[string]struct{}, len(frontier))
	for _, p := range frontier {
		if _, dup := seen[p.key]; dup {
			continue
		}
		seen[p.key] = struct{}{}
		keys = append(keys, p.key)
	}

	loaded, err := s.LoadRecords(ctx, keys, h)
	if err != nil {
		return nil, fmt.Errorf("reader: load %d records: %w", len(keys), err)
	}
	out := make(map[string]*record.Record, len(loaded))
	for _, rec := range loaded {
		out[rec.Key] = rec
	}
	return out, nil
}
