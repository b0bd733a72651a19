package normcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/normcache/cachekey"
	"github.com/unkn0wn-root/normcache/field"
	"github.com/unkn0wn-root/normcache/hooks"
	"github.com/unkn0wn-root/normcache/log"
	"github.com/unkn0wn-root/normcache/normalize"
	"github.com/unkn0wn-root/normcache/optimistic"
	"github.com/unkn0wn-root/normcache/reader"
	"github.com/unkn0wn-root/normcache/record"
	"github.com/unkn0wn-root/normcache/store"
	"github.com/unkn0wn-root/normcache/store/memory"
)

type cache struct {
	mu     sync.Mutex
	closed bool

	enabled bool
	norm    *normalize.Normalizer
	reader  reader.Reader
	overlay *optimistic.Cache
	log     Logger
	hooks   Hooks
}

func newCache(opts Options) (*cache, error) {
	if opts.MaxSize < 0 {
		return nil, fmt.Errorf("normcache: MaxSize must be >= 0")
	}
	if opts.JournalCapacity < 0 {
		return nil, fmt.Errorf("normcache: JournalCapacity must be >= 0")
	}

	c := &cache{
		enabled: !opts.Disabled,
		log:     log.OrNop(opts.Logger),
		hooks:   hooks.OrNop(opts.Hooks),
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = cachekey.NoKey{}
	}
	c.norm = normalize.New(resolver)

	c.reader = opts.Reader
	if c.reader == nil {
		c.reader = reader.NewSequential(resolver)
	}

	durable := opts.Cache
	if durable == nil {
		durable = memory.New(memory.Options{MaxSize: opts.MaxSize, Logger: c.log, Hooks: c.hooks})
	}
	c.overlay = optimistic.New(optimistic.Options{
		Next:     durable,
		Capacity: opts.JournalCapacity,
		Logger:   c.log,
		Hooks:    c.hooks,
	})
	return c, nil
}

func (c *cache) Enabled() bool { return c.enabled }

func (c *cache) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.overlay.Close(ctx)
}

// lock serializes one operation; it fails once the store is closed.
func (c *cache) lock() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	return nil
}

func rootOr(key string) string {
	if key == "" {
		return record.QueryRoot
	}
	return key
}

func (c *cache) WriteResponse(ctx context.Context, rootKey string, sets []field.FieldSet, tree map[string]any, vars field.Variables, h store.Headers) (record.KeySet, error) {
	rootKey = rootOr(rootKey)
	res, err := c.norm.Normalize(rootKey, sets, tree, vars)
	if err != nil {
		return nil, &OpError{Op: "write", Key: rootKey, Err: err}
	}
	if !c.enabled {
		return record.KeySet{}, nil
	}

	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	changed, err := c.overlay.MergeRecords(ctx, res.List(), h)
	if err != nil {
		return nil, &OpError{Op: "write", Key: rootKey, Err: err}
	}
	c.log.Debug("response written", Fields{"root": rootKey, "records": len(res.Records), "changed": len(changed)})
	return changed, nil
}

func (c *cache) ReadResponse(ctx context.Context, rootKey string, sets []field.FieldSet, vars field.Variables, h store.Headers) (map[string]any, error) {
	rootKey = rootOr(rootKey)
	if !c.enabled {
		return nil, &OpError{Op: "read", Key: rootKey, Err: &reader.CacheMissError{Key: rootKey}}
	}

	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	out, err := c.reader.Read(ctx, c.overlay, rootKey, sets, vars, h)
	if err != nil {
		c.log.Debug("response read failed", Fields{"root": rootKey, "err": err})
		return nil, &OpError{Op: "read", Key: rootKey, Err: err}
	}
	return out, nil
}

func (c *cache) WriteOptimistic(ctx context.Context, id uuid.UUID, rootKey string, sets []field.FieldSet, tree map[string]any, vars field.Variables) (record.KeySet, error) {
	rootKey = rootOr(rootKey)
	res, err := c.norm.Normalize(rootKey, sets, tree, vars)
	if err != nil {
		return nil, &OpError{Op: "write optimistic", Key: rootKey, Err: err}
	}
	if !c.enabled {
		return record.KeySet{}, nil
	}

	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	changed := c.overlay.MergeOptimisticUpdates(res.List(), id)
	c.log.Debug("optimistic response written", Fields{"root": rootKey, "mutation": id.String(), "changed": len(changed)})
	return changed, nil
}

func (c *cache) RollbackOptimistic(_ context.Context, id uuid.UUID) (record.KeySet, error) {
	if !c.enabled {
		return record.KeySet{}, nil
	}
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	return c.overlay.RemoveOptimisticUpdates(id), nil
}

func (c *cache) LoadRecord(ctx context.Context, key string, h store.Headers) (*record.Record, error) {
	if !c.enabled {
		return nil, nil
	}
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	return c.overlay.LoadRecord(ctx, key, h)
}

func (c *cache) Stream(ctx context.Context, key string, h store.Headers) (*store.RecordStream, error) {
	rec, err := c.LoadRecord(ctx, key, h)
	if err != nil || rec == nil {
		return nil, err
	}
	return store.NewRecordStream(rec), nil
}

func (c *cache) Remove(ctx context.Context, key string, cascade bool) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	if err := c.lock(); err != nil {
		return false, err
	}
	defer c.mu.Unlock()

	removed, err := c.overlay.Remove(ctx, key, cascade)
	if err != nil {
		return removed, &OpError{Op: "remove", Key: key, Err: err}
	}
	return removed, nil
}

func (c *cache) Clear(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	return c.overlay.Clear(ctx)
}

func (c *cache) Dump(ctx context.Context) (map[string]map[string]*record.Record, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	return c.overlay.Dump(ctx)
}
