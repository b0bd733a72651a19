// Package optimistic layers speculative writes over a durable
// NormalizedCache.
//
// Each speculative write is tagged with a mutation id and journaled per
// record key. Reads merge the journal snapshot over the durable record, so
// the speculative value wins field by field. Reverting a mutation id drops
// its entries and recomputes every affected snapshot from the remaining
// history.
//
// Not safe for concurrent use.
package optimistic

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/normcache/hooks"
	"github.com/unkn0wn-root/normcache/log"
	"github.com/unkn0wn-root/normcache/lru"
	"github.com/unkn0wn-root/normcache/record"
	"github.com/unkn0wn-root/normcache/store"
)

// Layer is the journal layer's name in Dump output.
const Layer = "optimistic"

const defaultCapacity = 10_000

type Options struct {
	// Next is the durable store. Nil means journals are the only storage.
	Next store.NormalizedCache
	// Capacity bounds the number of journaled keys; 0 => 10k. An evicted
	// journal loses its pending speculative writes.
	Capacity int64
	Logger   log.Logger
	Hooks    hooks.Hooks
}

type Cache struct {
	next     store.NormalizedCache
	journals *lru.Cache[string, *journal]
	log      log.Logger
	hooks    hooks.Hooks
}

var (
	_ store.NormalizedCache = (*Cache)(nil)
	_ store.Closer          = (*Cache)(nil)
)

func New(opts Options) *Cache {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Cache{
		next:     opts.Next,
		journals: lru.New[string, *journal](capacity, nil),
		log:      log.OrNop(opts.Logger),
		hooks:    hooks.OrNop(opts.Hooks),
	}
}

// LoadRecord returns the durable record with the journal snapshot merged on
// top. A failing durable store is logged and treated as a miss.
func (c *Cache) LoadRecord(ctx context.Context, key string, h store.Headers) (*record.Record, error) {
	var base *record.Record
	if c.next != nil {
		rec, err := c.next.LoadRecord(ctx, key, h)
		if err != nil {
			c.readFailed(key, err)
		} else {
			base = rec
		}
	}
	j, ok := c.journals.Get(key)
	if !ok {
		return base, nil
	}
	return overlay(base, j.snapshot), nil
}

func (c *Cache) LoadRecords(ctx context.Context, keys []string, h store.Headers) ([]*record.Record, error) {
	base := make(map[string]*record.Record, len(keys))
	if c.next != nil && len(keys) > 0 {
		recs, err := c.next.LoadRecords(ctx, keys, h)
		if err != nil {
			c.readFailed(keys[0], err)
		}
		for _, r := range recs {
			base[r.Key] = r
		}
	}

	out := make([]*record.Record, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		rec := base[k]
		if j, ok := c.journals.Get(k); ok {
			rec = overlay(rec, j.snapshot)
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (c *Cache) readFailed(key string, err error) {
	c.log.Warn("durable store read failed under optimistic read", log.Fields{"key": key, "err": err})
	c.hooks.StoreReadFailed(key, err)
}

func overlay(base, snapshot *record.Record) *record.Record {
	if base == nil {
		return snapshot.Clone()
	}
	out := base.Clone()
	out.MergeWith(snapshot)
	return out
}

// Merge writes a confirmed record straight to the durable store; journals
// are untouched.
func (c *Cache) Merge(ctx context.Context, rec *record.Record, h store.Headers) (record.KeySet, error) {
	if c.next == nil {
		return record.KeySet{}, nil
	}
	return c.next.Merge(ctx, rec, h)
}

func (c *Cache) MergeRecords(ctx context.Context, recs []*record.Record, h store.Headers) (record.KeySet, error) {
	if c.next == nil {
		return record.KeySet{}, nil
	}
	return c.next.MergeRecords(ctx, recs, h)
}

// MergeOptimisticUpdate journals rec under id and returns the snapshot
// fields it changed.
func (c *Cache) MergeOptimisticUpdate(rec *record.Record, id uuid.UUID) record.KeySet {
	j, ok := c.journals.Get(rec.Key)
	if ok {
		return j.add(id, rec)
	}
	j = newJournal(id, rec)
	c.setJournal(rec.Key, j)
	changed := record.KeySet{}
	for fk := range rec.Fields {
		changed.Add(rec.Key + "." + fk)
	}
	return changed
}

func (c *Cache) MergeOptimisticUpdates(recs []*record.Record, id uuid.UUID) record.KeySet {
	changed := record.KeySet{}
	for _, rec := range recs {
		changed.Union(c.MergeOptimisticUpdate(rec, id))
	}
	return changed
}

func (c *Cache) setJournal(key string, j *journal) {
	if evicted := c.journals.Set(key, j); len(evicted) > 0 {
		c.log.Warn("optimistic journals evicted", log.Fields{"count": len(evicted), "keys": evicted})
		c.hooks.RecordsEvicted(Layer, evicted)
	}
}

// RemoveOptimisticUpdates reverts every journaled write of id and returns
// the fields whose speculative value changed. Journals left without
// history are dropped.
func (c *Cache) RemoveOptimisticUpdates(id uuid.UUID) record.KeySet {
	changed := record.KeySet{}
	keys := c.journals.Keys()
	sort.Strings(keys)

	touched := 0
	for _, k := range keys {
		j, _ := c.journals.Peek(k)
		if !j.has(id) {
			continue
		}
		touched++
		fields, empty := j.revert(id)
		changed.Union(fields)
		if empty {
			c.journals.Remove(k)
		}
	}
	if touched > 0 {
		c.log.Debug("optimistic updates reverted", log.Fields{"mutation": id.String(), "records": touched})
		c.hooks.OptimisticReverted(id.String(), touched)
	}
	return changed
}

// Remove drops key from the journals and the durable store. With cascade,
// every record reachable from key's current view is removed too; the view
// is the journal snapshot when one exists, else the durable record.
func (c *Cache) Remove(ctx context.Context, key string, cascade bool) (bool, error) {
	return store.CascadeRemove(ctx, key, cascade, c.view, c.removeOne)
}

func (c *Cache) view(ctx context.Context, key string) (*record.Record, error) {
	if j, ok := c.journals.Peek(key); ok {
		return j.snapshot, nil
	}
	if c.next == nil {
		return nil, nil
	}
	return c.next.LoadRecord(ctx, key, nil)
}

func (c *Cache) removeOne(ctx context.Context, key string) (bool, error) {
	_, removed := c.journals.Remove(key)
	if c.next == nil {
		return removed, nil
	}
	nextRemoved, err := c.next.Remove(ctx, key, false)
	return removed || nextRemoved, err
}

func (c *Cache) Clear(ctx context.Context) error {
	c.journals.Clear()
	if c.next != nil {
		return c.next.Clear(ctx)
	}
	return nil
}

// Dump returns journal snapshots under Layer plus the durable layers.
func (c *Cache) Dump(ctx context.Context) (map[string]map[string]*record.Record, error) {
	snaps := make(map[string]*record.Record, c.journals.Len())
	for k, j := range c.journals.Dump() {
		snaps[k] = j.snapshot.Clone()
	}
	out := map[string]map[string]*record.Record{Layer: snaps}
	if c.next == nil {
		return out, nil
	}
	nested, err := c.next.Dump(ctx)
	if err != nil {
		return nil, err
	}
	for layer, recs := range nested {
		out[layer] = recs
	}
	return out, nil
}

// Pending returns the number of journaled keys.
func (c *Cache) Pending() int { return c.journals.Len() }

func (c *Cache) Close(ctx context.Context) error {
	if cl, ok := c.next.(store.Closer); ok {
		return cl.Close(ctx)
	}
	return nil
}
