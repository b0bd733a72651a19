// Package kvstore is a NormalizedCache over any byte provider.
//
// Each record is encoded with a codec.Codec[record.Wire], framed with its
// key, codec id and the namespace epoch, and written under
// "rec:<ns>:...". Clear bumps the epoch instead of scanning the keyspace;
// entries from older epochs, other codecs or corrupt frames are deleted
// the next time they are read.
//
// Providers cannot enumerate keys, so Dump only reports records this
// process wrote or read since the last Clear.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/normcache/codec"
	"github.com/unkn0wn-root/normcache/epoch"
	"github.com/unkn0wn-root/normcache/hooks"
	"github.com/unkn0wn-root/normcache/internal/util"
	"github.com/unkn0wn-root/normcache/internal/wire"
	"github.com/unkn0wn-root/normcache/log"
	pr "github.com/unkn0wn-root/normcache/provider"
	"github.com/unkn0wn-root/normcache/record"
	"github.com/unkn0wn-root/normcache/store"
)

const (
	defaultNamespace   = "default"
	defaultConcurrency = 8
)

// Self-heal reasons reported to Hooks.RecordSelfHealed.
const (
	ReasonCorrupt    = "corrupt"
	ReasonStaleEpoch = "stale_epoch"
	ReasonCodec      = "codec"
	ReasonDecode     = "decode"
)

var ErrNilProvider = errors.New("kvstore: provider is required")

// SetCostFunc computes the provider cost of one frame.
type SetCostFunc func(storageKey string, frame []byte) int64

type Options struct {
	Provider    pr.Provider              // required
	Codec       codec.Codec[record.Wire] // nil => codec.JSON
	CodecID     byte                     // stamped into frames; change it together with Codec
	Namespace   string                   // "" => "default"
	Epochs      epoch.Store              // nil => epoch.NewLocal()
	TTL         time.Duration            // <= 0 => no expiry
	Concurrency int                      // parallel Gets when the provider has no GetMany; 0 => 8
	SetCost     SetCostFunc              // nil => frame length
	Logger      log.Logger
	Hooks       hooks.Hooks
}

type Store struct {
	ns      string
	p       pr.Provider
	codec   codec.Codec[record.Wire]
	codecID byte
	epochs  epoch.Store
	ttl     time.Duration
	conc    int
	cost    SetCostFunc
	log     log.Logger
	hooks   hooks.Hooks

	mu    sync.Mutex
	index map[string]struct{}
}

var (
	_ store.NormalizedCache = (*Store)(nil)
	_ store.Closer          = (*Store)(nil)
)

func New(opts Options) (*Store, error) {
	if opts.Provider == nil {
		return nil, ErrNilProvider
	}
	s := &Store{
		ns:      util.Coalesce(opts.Namespace, defaultNamespace),
		p:       opts.Provider,
		codec:   opts.Codec,
		codecID: opts.CodecID,
		epochs:  opts.Epochs,
		ttl:     opts.TTL,
		conc:    util.Coalesce(opts.Concurrency, defaultConcurrency),
		cost:    opts.SetCost,
		log:     log.OrNop(opts.Logger),
		hooks:   hooks.OrNop(opts.Hooks),
		index:   make(map[string]struct{}),
	}
	if s.codec == nil {
		s.codec = codec.JSON[record.Wire]{}
	}
	if s.epochs == nil {
		s.epochs = epoch.NewLocal()
	}
	if s.cost == nil {
		s.cost = func(_ string, frame []byte) int64 { return int64(len(frame)) }
	}
	return s, nil
}

// Layer is this store's name in Dump output.
func (s *Store) Layer() string { return "kv:" + s.ns }

func (s *Store) LoadRecord(ctx context.Context, key string, h store.Headers) (*record.Record, error) {
	ep, err := s.epoch(ctx)
	if err != nil {
		return nil, err
	}
	sk := util.StorageKey(s.ns, key)
	raw, ok, err := s.p.Get(ctx, sk)
	if err != nil {
		return nil, fmt.Errorf("kvstore: get %q: %w", key, err)
	}
	if !ok {
		s.forget(key)
		return nil, nil
	}
	rec := s.decode(ctx, key, sk, raw, ep)
	if rec != nil && h.Has(store.HeaderEvictAfterRead) {
		s.del(ctx, key, sk)
	}
	return rec, nil
}

func (s *Store) LoadRecords(ctx context.Context, keys []string, h store.Headers) ([]*record.Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	ep, err := s.epoch(ctx)
	if err != nil {
		return nil, err
	}

	uniq := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			uniq = append(uniq, k)
		}
	}
	sks := make([]string, len(uniq))
	for i, k := range uniq {
		sks[i] = util.StorageKey(s.ns, k)
	}

	raws, err := s.getMany(ctx, sks)
	if err != nil {
		return nil, fmt.Errorf("kvstore: get %d keys: %w", len(sks), err)
	}

	out := make([]*record.Record, 0, len(uniq))
	for i, raw := range raws {
		if raw == nil {
			s.forget(uniq[i])
			continue
		}
		rec := s.decode(ctx, uniq[i], sks[i], raw, ep)
		if rec == nil {
			continue
		}
		if h.Has(store.HeaderEvictAfterRead) {
			s.del(ctx, uniq[i], sks[i])
		}
		out = append(out, rec)
	}
	return out, nil
}

// getMany returns raw values aligned with sks; nil marks a miss.
func (s *Store) getMany(ctx context.Context, sks []string) ([][]byte, error) {
	out := make([][]byte, len(sks))
	if bg, ok := s.p.(pr.BatchGetter); ok {
		m, err := bg.GetMany(ctx, sks)
		if err != nil {
			return nil, err
		}
		for i, k := range sks {
			out[i] = m[k]
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.conc)
	for i, k := range sks {
		g.Go(func() error {
			raw, ok, err := s.p.Get(gctx, k)
			if err != nil {
				return err
			}
			if ok {
				out[i] = raw
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Merge(ctx context.Context, rec *record.Record, h store.Headers) (record.KeySet, error) {
	if h.Has(store.HeaderDoNotStore) {
		return record.KeySet{}, nil
	}
	ep, err := s.epoch(ctx)
	if err != nil {
		return nil, err
	}
	return s.merge(ctx, rec, ep)
}

func (s *Store) MergeRecords(ctx context.Context, recs []*record.Record, h store.Headers) (record.KeySet, error) {
	changed := record.KeySet{}
	if h.Has(store.HeaderDoNotStore) || len(recs) == 0 {
		return changed, nil
	}
	ep, err := s.epoch(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		c, err := s.merge(ctx, rec, ep)
		if err != nil {
			return changed, err
		}
		changed.Union(c)
	}
	return changed, nil
}

func (s *Store) merge(ctx context.Context, rec *record.Record, ep uint64) (record.KeySet, error) {
	sk := util.StorageKey(s.ns, rec.Key)
	existing := record.New(rec.Key)
	found := false
	raw, ok, err := s.p.Get(ctx, sk)
	if err != nil {
		return nil, fmt.Errorf("kvstore: get %q: %w", rec.Key, err)
	}
	if ok {
		if s.heldByOther(raw, rec.Key, ep) {
			s.log.Warn("storage key held by another record, write skipped", log.Fields{"key": rec.Key})
			s.hooks.ProviderSetRejected(sk)
			return record.KeySet{}, nil
		}
		if cur := s.decode(ctx, rec.Key, sk, raw, ep); cur != nil {
			existing, found = cur, true
		}
	}

	changed := existing.MergeWith(rec)
	if len(changed) == 0 && found {
		return changed, nil
	}
	stored, err := s.put(ctx, existing, sk, ep)
	if err != nil {
		return nil, err
	}
	if !stored {
		return record.KeySet{}, nil
	}
	return changed, nil
}

func (s *Store) put(ctx context.Context, rec *record.Record, sk string, ep uint64) (bool, error) {
	payload, err := s.codec.Encode(rec.ToWire())
	if err != nil {
		return false, fmt.Errorf("kvstore: encode %q: %w", rec.Key, err)
	}
	frame, err := wire.Encode(s.codecID, ep, rec.Key, payload)
	if err != nil {
		return false, fmt.Errorf("kvstore: frame %q: %w", rec.Key, err)
	}
	ok, err := s.p.Set(ctx, sk, frame, s.cost(sk, frame), s.ttl)
	if err != nil {
		return false, fmt.Errorf("kvstore: set %q: %w", rec.Key, err)
	}
	if !ok {
		s.log.Debug("record write rejected by provider (pressure)", log.Fields{"key": rec.Key})
		s.hooks.ProviderSetRejected(sk)
		return false, nil
	}
	s.remember(rec.Key)
	return true, nil
}

// heldByOther reports whether raw is a live frame of a different record
// whose key hashes to the same storage key. Frames from older epochs are
// fair game.
func (s *Store) heldByOther(raw []byte, key string, ep uint64) bool {
	f, err := wire.Decode(raw)
	return err == nil && f.Key != key && f.Epoch == ep
}

// decode validates a stored frame and returns its record, or nil after
// deleting an unusable entry.
func (s *Store) decode(ctx context.Context, key, sk string, raw []byte, ep uint64) *record.Record {
	f, err := wire.Decode(raw)
	if err != nil {
		s.heal(ctx, key, sk, ReasonCorrupt)
		return nil
	}
	if f.Key != key {
		// hashed storage key shared with another record
		return nil
	}
	if f.Epoch != ep {
		s.heal(ctx, key, sk, ReasonStaleEpoch)
		return nil
	}
	if f.Codec != s.codecID {
		s.heal(ctx, key, sk, ReasonCodec)
		return nil
	}
	w, err := s.codec.Decode(f.Payload)
	if err != nil {
		s.heal(ctx, key, sk, ReasonDecode)
		return nil
	}
	rec, err := record.FromWire(w)
	if err != nil || rec.Key != key {
		s.heal(ctx, key, sk, ReasonDecode)
		return nil
	}
	s.remember(key)
	return rec
}

func (s *Store) heal(ctx context.Context, key, sk, reason string) {
	s.del(ctx, key, sk)
	s.log.Debug("self-healed stored record", log.Fields{"key": key, "reason": reason})
	s.hooks.RecordSelfHealed(sk, reason)
}

func (s *Store) del(ctx context.Context, key, sk string) {
	if err := s.p.Del(ctx, sk); err != nil {
		s.log.Warn("record delete failed", log.Fields{"key": key, "err": err})
	}
	s.forget(key)
}

func (s *Store) Remove(ctx context.Context, key string, cascade bool) (bool, error) {
	view := func(ctx context.Context, k string) (*record.Record, error) {
		return s.LoadRecord(ctx, k, nil)
	}
	return store.CascadeRemove(ctx, key, cascade, view, s.removeOne)
}

func (s *Store) removeOne(ctx context.Context, key string) (bool, error) {
	rec, err := s.LoadRecord(ctx, key, nil)
	if err != nil || rec == nil {
		return false, err
	}
	sk := util.StorageKey(s.ns, key)
	if err := s.p.Del(ctx, sk); err != nil {
		return false, fmt.Errorf("kvstore: delete %q: %w", key, err)
	}
	s.forget(key)
	return true, nil
}

// Clear hides every record in the namespace by bumping its epoch.
func (s *Store) Clear(ctx context.Context) error {
	ep, err := s.epochs.Bump(ctx, s.ns)
	if err != nil {
		return fmt.Errorf("kvstore: bump epoch: %w", err)
	}
	s.mu.Lock()
	s.index = make(map[string]struct{})
	s.mu.Unlock()
	s.log.Debug("namespace cleared", log.Fields{"namespace": s.ns, "epoch": ep})
	return nil
}

func (s *Store) Dump(ctx context.Context) (map[string]map[string]*record.Record, error) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.index))
	for k := range s.index {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)

	recs, err := s.LoadRecords(ctx, keys, nil)
	if err != nil {
		return nil, err
	}
	layer := make(map[string]*record.Record, len(recs))
	for _, r := range recs {
		layer[r.Key] = r
	}
	return map[string]map[string]*record.Record{s.Layer(): layer}, nil
}

// Close closes the epoch store (best effort) and the provider.
func (s *Store) Close(ctx context.Context) error {
	if err := s.epochs.Close(ctx); err != nil {
		s.log.Warn("epoch store close failed", log.Fields{"err": err})
	}
	return s.p.Close(ctx)
}

func (s *Store) epoch(ctx context.Context) (uint64, error) {
	ep, err := s.epochs.Current(ctx, s.ns)
	if err != nil {
		return 0, fmt.Errorf("kvstore: read epoch: %w", err)
	}
	return ep, nil
}

func (s *Store) remember(key string) {
	s.mu.Lock()
	s.index[key] = struct{}{}
	s.mu.Unlock()
}

func (s *Store) forget(key string) {
	s.mu.Lock()
	delete(s.index, key)
	s.mu.Unlock()
}
