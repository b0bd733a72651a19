// Package memory is an in-process NormalizedCache backed by a weighted LRU.
//
// Records are weighed by their estimated byte size. An optional Next cache
// makes it a read-through/write-through front for a slower store (e.g. a
// kvstore over Redis): misses are loaded from Next and kept in memory,
// merges go to both.
//
// Honoured headers: evict-after-read drops a record from memory once read;
// do-not-store skips the write; memory-cache-only keeps Next out of the call.
//
// Not safe for concurrent use.
package memory

import (
	"context"

	"github.com/unkn0wn-root/normcache/hooks"
	"github.com/unkn0wn-root/normcache/log"
	"github.com/unkn0wn-root/normcache/lru"
	"github.com/unkn0wn-root/normcache/record"
	"github.com/unkn0wn-root/normcache/store"
)

// Layer is this cache's name in Dump output.
const Layer = "memory"

const defaultMaxSize = 32 << 20

type Options struct {
	MaxSize int64                               // total weight; 0 => 32 MiB
	Weigher lru.Weigher[string, *record.Record] // nil => key length + SizeEstimate
	Next    store.NormalizedCache               // optional chained store
	Logger  log.Logger
	Hooks   hooks.Hooks
}

type Cache struct {
	lru   *lru.Cache[string, *record.Record]
	next  store.NormalizedCache
	log   log.Logger
	hooks hooks.Hooks
}

var _ store.NormalizedCache = (*Cache)(nil)

func New(opts Options) *Cache {
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	weigher := opts.Weigher
	if weigher == nil {
		weigher = func(k string, r *record.Record) int64 { return int64(len(k)) + r.SizeEstimate() }
	}
	return &Cache{
		lru:   lru.New[string, *record.Record](maxSize, weigher),
		next:  opts.Next,
		log:   log.OrNop(opts.Logger),
		hooks: hooks.OrNop(opts.Hooks),
	}
}

// LoadRecord returns a copy of the stored record.
func (c *Cache) LoadRecord(ctx context.Context, key string, h store.Headers) (*record.Record, error) {
	if rec, ok := c.lru.Get(key); ok {
		if h.Has(store.HeaderEvictAfterRead) {
			c.lru.Remove(key)
		}
		return rec.Clone(), nil
	}
	if c.next == nil || h.Has(store.HeaderMemoryCacheOnly) {
		return nil, nil
	}
	rec, err := c.next.LoadRecord(ctx, key, h)
	if err != nil || rec == nil {
		return nil, err
	}
	if !h.Has(store.HeaderEvictAfterRead) {
		c.put(rec.Clone())
	}
	return rec, nil
}

func (c *Cache) LoadRecords(ctx context.Context, keys []string, h store.Headers) ([]*record.Record, error) {
	out := make([]*record.Record, 0, len(keys))
	var misses []string
	for _, k := range keys {
		rec, ok := c.lru.Get(k)
		if !ok {
			misses = append(misses, k)
			continue
		}
		if h.Has(store.HeaderEvictAfterRead) {
			c.lru.Remove(k)
		}
		out = append(out, rec.Clone())
	}
	if len(misses) == 0 || c.next == nil || h.Has(store.HeaderMemoryCacheOnly) {
		return out, nil
	}
	loaded, err := c.next.LoadRecords(ctx, misses, h)
	if err != nil {
		return nil, err
	}
	for _, rec := range loaded {
		if !h.Has(store.HeaderEvictAfterRead) {
			c.put(rec.Clone())
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Cache) Merge(ctx context.Context, rec *record.Record, h store.Headers) (record.KeySet, error) {
	if h.Has(store.HeaderDoNotStore) {
		return record.KeySet{}, nil
	}
	changed, err := c.mergeLocal(ctx, rec, h)
	if err != nil {
		return nil, err
	}
	if c.next == nil || h.Has(store.HeaderMemoryCacheOnly) {
		return changed, nil
	}
	nextChanged, err := c.next.Merge(ctx, rec, h)
	if err != nil {
		return changed, err
	}
	changed.Union(nextChanged)
	return changed, nil
}

func (c *Cache) MergeRecords(ctx context.Context, recs []*record.Record, h store.Headers) (record.KeySet, error) {
	if h.Has(store.HeaderDoNotStore) {
		return record.KeySet{}, nil
	}
	changed := record.KeySet{}
	for _, rec := range recs {
		local, err := c.mergeLocal(ctx, rec, h)
		if err != nil {
			return nil, err
		}
		changed.Union(local)
	}
	if c.next == nil || h.Has(store.HeaderMemoryCacheOnly) {
		return changed, nil
	}
	nextChanged, err := c.next.MergeRecords(ctx, recs, h)
	if err != nil {
		return changed, err
	}
	changed.Union(nextChanged)
	return changed, nil
}

// mergeLocal seeds a memory miss from Next first, so memory never holds a
// partial view of a record Next knows in full.
func (c *Cache) mergeLocal(ctx context.Context, rec *record.Record, h store.Headers) (record.KeySet, error) {
	existing, ok := c.lru.Peek(rec.Key)
	if !ok && c.next != nil && !h.Has(store.HeaderMemoryCacheOnly) {
		seed, err := c.next.LoadRecord(ctx, rec.Key, h)
		if err != nil {
			return nil, err
		}
		if seed != nil {
			existing, ok = seed.Clone(), true
		}
	}
	if !ok {
		existing = record.New(rec.Key)
	}
	changed := existing.MergeWith(rec)
	// re-set so the weight follows the new size
	c.put(existing)
	return changed, nil
}

func (c *Cache) put(rec *record.Record) {
	if evicted := c.lru.Set(rec.Key, rec); len(evicted) > 0 {
		c.log.Debug("memory cache evicted records", log.Fields{"count": len(evicted), "weight": c.lru.Weight()})
		c.hooks.RecordsEvicted(Layer, evicted)
	}
}

func (c *Cache) Remove(ctx context.Context, key string, cascade bool) (bool, error) {
	return store.CascadeRemove(ctx, key, cascade, c.view, c.removeOne)
}

// view reads without promoting or populating memory.
func (c *Cache) view(ctx context.Context, key string) (*record.Record, error) {
	if rec, ok := c.lru.Peek(key); ok {
		return rec, nil
	}
	if c.next == nil {
		return nil, nil
	}
	return c.next.LoadRecord(ctx, key, nil)
}

func (c *Cache) removeOne(ctx context.Context, key string) (bool, error) {
	_, removed := c.lru.Remove(key)
	if c.next == nil {
		return removed, nil
	}
	nextRemoved, err := c.next.Remove(ctx, key, false)
	return removed || nextRemoved, err
}

func (c *Cache) Clear(ctx context.Context) error {
	c.lru.Clear()
	if c.next != nil {
		return c.next.Clear(ctx)
	}
	return nil
}

// Dump returns copies, so callers cannot reach the records the LRU holds.
func (c *Cache) Dump(ctx context.Context) (map[string]map[string]*record.Record, error) {
	live := c.lru.Dump()
	own := make(map[string]*record.Record, len(live))
	for k, rec := range live {
		own[k] = rec.Clone()
	}
	out := map[string]map[string]*record.Record{Layer: own}
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

// Close closes Next when it holds resources.
func (c *Cache) Close(ctx context.Context) error {
	if cl, ok := c.next.(store.Closer); ok {
		return cl.Close(ctx)
	}
	return nil
}

// Size returns the current total weight.
func (c *Cache) Size() int64 { return c.lru.Weight() }

// Len returns the number of records held in memory.
func (c *Cache) Len() int { return c.lru.Len() }
