package kvstore

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/normcache/codec"
	"github.com/unkn0wn-root/normcache/epoch"
	"github.com/unkn0wn-root/normcache/hooks"
	"github.com/unkn0wn-root/normcache/internal/util"
	"github.com/unkn0wn-root/normcache/internal/wire"
	pr "github.com/unkn0wn-root/normcache/provider"
	"github.com/unkn0wn-root/normcache/record"
	"github.com/unkn0wn-root/normcache/store"
	"github.com/unkn0wn-root/normcache/store/memory"
)

type memEntry struct {
	v   []byte
	exp time.Time
}

type memProvider struct {
	mu     sync.Mutex
	m      map[string]memEntry
	gets   int
	reject bool
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gets++
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *memProvider) Close(context.Context) error { return nil }

func (p *memProvider) raw(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	return e.v, ok
}

func (p *memProvider) put(key string, v []byte) {
	p.mu.Lock()
	p.m[key] = memEntry{v: v}
	p.mu.Unlock()
}

// batchProvider counts GetMany calls.
type batchProvider struct {
	*memProvider
	batches int
}

var _ pr.BatchGetter = (*batchProvider)(nil)

func (p *batchProvider) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	p.batches++
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok, _ := p.Get(ctx, k); ok {
			out[k] = v
		}
	}
	return out, nil
}

type healLog struct {
	hooks.Nop
	mu       sync.Mutex
	reasons  []string
	rejected []string
}

func (h *healLog) RecordSelfHealed(_ string, reason string) {
	h.mu.Lock()
	h.reasons = append(h.reasons, reason)
	h.mu.Unlock()
}

func (h *healLog) ProviderSetRejected(sk string) { h.rejected = append(h.rejected, sk) }

func rec(key string, kv ...any) *record.Record {
	r := record.New(key)
	for i := 0; i+1 < len(kv); i += 2 {
		v, ok := kv[i+1].(record.FieldValue)
		if !ok {
			v = record.Scalar{V: kv[i+1]}
		}
		r.Set(kv[i].(string), v)
	}
	return r
}

func newTestStore(t *testing.T, p pr.Provider, mod func(*Options)) *Store {
	t.Helper()
	opts := Options{Provider: p, Namespace: "test"}
	if mod != nil {
		mod(&opts)
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func TestNewRequiresProvider(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNilProvider)
}

func TestMergeLoadThroughEveryCodec(t *testing.T) {
	codecs := map[string]codec.Codec[record.Wire]{
		"json":    codec.JSON[record.Wire]{},
		"msgpack": codec.Msgpack[record.Wire]{},
		"cbor":    codec.MustCBOR[record.Wire](true),
		"proto":   codec.Proto{},
	}
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, newMemProvider(), func(o *Options) { o.Codec = c })

			in := rec("1000",
				"__typename", "Human",
				"name", "Luke",
				"height", 1.72,
				"friends", record.List{record.Ref("1002"), record.Ref("1003")},
			)
			changed, err := s.Merge(ctx, in, nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"1000.__typename", "1000.friends", "1000.height", "1000.name"}, changed.Sorted())

			got, err := s.LoadRecord(ctx, "1000", nil)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, in.Equal(got), "got %v", got)

			changed, err = s.Merge(ctx, rec("1000", "name", "Luke", "mass", 77), nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"1000.mass"}, changed.Sorted())
		})
	}
}

func TestMergeOfEmptyRecordIsStored(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)

	_, err := s.Merge(ctx, record.New("empty"), nil)
	require.NoError(t, err)

	got, err := s.LoadRecord(ctx, "empty", nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Fields)
}

func TestClearBumpsEpochAndHealsStaleEntries(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hl := &healLog{}
	eps := epoch.NewLocal()
	s := newTestStore(t, mp, func(o *Options) { o.Hooks = hl; o.Epochs = eps })

	_, err := s.Merge(ctx, rec("1", "a", 1), nil)
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	e, _ := eps.Current(ctx, "test")
	assert.Equal(t, uint64(1), e)

	got, err := s.LoadRecord(ctx, "1", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []string{ReasonStaleEpoch}, hl.reasons)

	_, present := mp.raw(util.StorageKey("test", "1"))
	assert.False(t, present, "stale entry should be deleted on read")
}

func TestSharedEpochStoreHidesOtherWritersEntries(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	eps := epoch.NewLocal()
	a := newTestStore(t, mp, func(o *Options) { o.Epochs = eps })
	b := newTestStore(t, mp, func(o *Options) { o.Epochs = eps })

	_, err := a.Merge(ctx, rec("1", "a", 1), nil)
	require.NoError(t, err)

	got, err := b.LoadRecord(ctx, "1", nil)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, b.Clear(ctx))
	got, err = a.LoadRecord(ctx, "1", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCorruptAndForeignEntriesSelfHeal(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hl := &healLog{}
	s := newTestStore(t, mp, func(o *Options) { o.Hooks = hl })

	mp.put(util.StorageKey("test", "junk"), []byte("not a frame"))
	got, err := s.LoadRecord(ctx, "junk", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	// same bytes read back by a store configured with another codec id
	_, err = s.Merge(ctx, rec("1", "a", 1), nil)
	require.NoError(t, err)
	other := newTestStore(t, mp, func(o *Options) { o.Hooks = hl; o.CodecID = 9 })
	got, err = other.LoadRecord(ctx, "1", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Equal(t, []string{ReasonCorrupt, ReasonCodec}, hl.reasons)
}

func TestLoadRecordsFanOutAndBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("errgroup", func(t *testing.T) {
		mp := newMemProvider()
		s := newTestStore(t, mp, func(o *Options) { o.Concurrency = 2 })
		_, err := s.MergeRecords(ctx, []*record.Record{rec("a", "x", 1), rec("b", "x", 2), rec("c", "x", 3)}, nil)
		require.NoError(t, err)

		got, err := s.LoadRecords(ctx, []string{"a", "missing", "c", "a"}, nil)
		require.NoError(t, err)
		keys := make([]string, 0, len(got))
		for _, r := range got {
			keys = append(keys, r.Key)
		}
		assert.ElementsMatch(t, []string{"a", "c"}, keys)
	})

	t.Run("batch getter", func(t *testing.T) {
		bp := &batchProvider{memProvider: newMemProvider()}
		s := newTestStore(t, bp, nil)
		_, err := s.MergeRecords(ctx, []*record.Record{rec("a", "x", 1), rec("b", "x", 2)}, nil)
		require.NoError(t, err)

		got, err := s.LoadRecords(ctx, []string{"a", "b"}, nil)
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, 1, bp.batches)
	})
}

func TestHeaders(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)

	changed, err := s.Merge(ctx, rec("1", "a", 1), store.Flag(store.HeaderDoNotStore))
	require.NoError(t, err)
	assert.Empty(t, changed)
	got, _ := s.LoadRecord(ctx, "1", nil)
	assert.Nil(t, got)

	_, err = s.Merge(ctx, rec("1", "a", 1), nil)
	require.NoError(t, err)
	got, err = s.LoadRecord(ctx, "1", store.Flag(store.HeaderEvictAfterRead))
	require.NoError(t, err)
	require.NotNil(t, got)
	got, _ = s.LoadRecord(ctx, "1", nil)
	assert.Nil(t, got)
}

func TestRejectedWriteReportsNoChange(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	mp.reject = true
	hl := &healLog{}
	s := newTestStore(t, mp, func(o *Options) { o.Hooks = hl })

	changed, err := s.Merge(ctx, rec("1", "a", 1), nil)
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Equal(t, []string{util.StorageKey("test", "1")}, hl.rejected)
}

func TestHashedKeyCollisionKeepsOtherRecord(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hl := &healLog{}
	eps := epoch.NewLocal()
	s := newTestStore(t, mp, func(o *Options) { o.Hooks = hl; o.Epochs = eps })

	long := strings.Repeat("QUERY_ROOT.hero.", util.MaxRawKey/16+1)
	sk := util.StorageKey("test", long)
	payload, err := codec.JSON[record.Wire]{}.Encode(rec("other", "v", 1).ToWire())
	require.NoError(t, err)
	frame, err := wire.Encode(0, 0, "other", payload)
	require.NoError(t, err)
	mp.put(sk, frame)

	changed, err := s.Merge(ctx, rec(long, "a", 1), nil)
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Equal(t, []string{sk}, hl.rejected)

	raw, present := mp.raw(sk)
	require.True(t, present)
	assert.Equal(t, frame, raw, "the other record's frame must survive")
	got, err := s.LoadRecord(ctx, long, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, hl.reasons)

	// once its epoch is gone the slot can be reused
	require.NoError(t, s.Clear(ctx))
	changed, err = s.Merge(ctx, rec(long, "a", 1), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{long + ".a"}, changed.Sorted())
	got, err = s.LoadRecord(ctx, long, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, record.Equal(record.Scalar{V: 1}, got.Fields["a"]))
}

func TestRemoveCascadeAndCycles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)

	_, err := s.MergeRecords(ctx, []*record.Record{
		rec("root", "hero", record.Ref("1")),
		rec("1", "friend", record.Ref("2")),
		rec("2", "friend", record.Ref("1")),
		rec("other", "x", 1),
	}, nil)
	require.NoError(t, err)

	removed, err := s.Remove(ctx, "root", true)
	require.NoError(t, err)
	assert.True(t, removed)

	for _, k := range []string{"root", "1", "2"} {
		got, _ := s.LoadRecord(ctx, k, nil)
		assert.Nil(t, got, k)
	}
	got, _ := s.LoadRecord(ctx, "other", nil)
	assert.NotNil(t, got)

	removed, err = s.Remove(ctx, "root", false)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDumpReportsKnownRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)

	_, err := s.MergeRecords(ctx, []*record.Record{rec("a", "x", 1), rec("b", "x", 2)}, nil)
	require.NoError(t, err)
	_, err = s.Remove(ctx, "b", false)
	require.NoError(t, err)

	d, err := s.Dump(ctx)
	require.NoError(t, err)
	require.Contains(t, d, "kv:test")
	assert.Len(t, d["kv:test"], 1)
	assert.Contains(t, d["kv:test"], "a")

	require.NoError(t, s.Clear(ctx))
	d, err = s.Dump(ctx)
	require.NoError(t, err)
	assert.Empty(t, d["kv:test"])
}

func TestMemoryFrontReadsThrough(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	kv := newTestStore(t, mp, nil)
	_, err := kv.Merge(ctx, rec("1", "a", 1), nil)
	require.NoError(t, err)

	front := memory.New(memory.Options{Next: kv})
	got, err := front.LoadRecord(ctx, "1", nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, front.Len())

	before := mp.gets
	_, err = front.LoadRecord(ctx, "1", nil)
	require.NoError(t, err)
	assert.Equal(t, before, mp.gets, "second read should be served from memory")

	d, err := front.Dump(ctx)
	require.NoError(t, err)
	assert.Contains(t, d, memory.Layer)
	assert.Contains(t, d, "kv:test")
}
