package config

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"go.trai.ch/zerr"

	"github.com/unkn0wn-root/normcache"
	"github.com/unkn0wn-root/normcache/cachekey"
	"github.com/unkn0wn-root/normcache/codec"
	"github.com/unkn0wn-root/normcache/epoch"
	"github.com/unkn0wn-root/normcache/hooks"
	"github.com/unkn0wn-root/normcache/log"
	pr "github.com/unkn0wn-root/normcache/provider"
	"github.com/unkn0wn-root/normcache/provider/bigcache"
	"github.com/unkn0wn-root/normcache/provider/redis"
	"github.com/unkn0wn-root/normcache/provider/ristretto"
	"github.com/unkn0wn-root/normcache/reader"
	"github.com/unkn0wn-root/normcache/record"
	"github.com/unkn0wn-root/normcache/store"
	"github.com/unkn0wn-root/normcache/store/kvstore"
	"github.com/unkn0wn-root/normcache/store/memory"
)

// newRedisProvider is swapped by tests to fail after the client exists.
var newRedisProvider = func(cfg redis.Config) (pr.Provider, error) { return redis.New(cfg) }

// Build assembles the store described by cfg. The returned store owns
// every provider and client it created; Close releases them.
func Build(ctx context.Context, cfg Config, logger log.Logger, h hooks.Hooks) (normcache.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = log.OrNop(logger)
	h = hooks.OrNop(h)

	resolver := cfg.resolver()
	durable, err := cfg.durable(ctx, logger, h)
	if err != nil {
		return nil, err
	}

	s, err := normcache.New(normcache.Options{
		Cache:           durable,
		MaxSize:         cfg.Store.MaxSize,
		Resolver:        resolver,
		Reader:          cfg.reader(resolver),
		JournalCapacity: cfg.JournalCapacity,
		Logger:          logger,
		Hooks:           h,
		Disabled:        cfg.Disabled,
	})
	if err != nil {
		if c, ok := durable.(store.Closer); ok {
			_ = c.Close(ctx)
		}
		return nil, err
	}
	logger.Info("normcache configured", log.Fields{
		"store":     cfg.Store.Kind,
		"codec":     cfg.Codec,
		"namespace": cfg.Namespace,
		"reader":    cfg.Reader,
	})
	return s, nil
}

func (c Config) resolver() cachekey.Resolver {
	if c.Resolver.Kind == ResolverNone {
		return cachekey.NoKey{}
	}
	return cachekey.ByID{
		IDField:        c.Resolver.IDField,
		TypenameField:  c.Resolver.TypenameField,
		PrefixTypename: c.Resolver.PrefixTypename,
		ArgumentName:   c.Resolver.ArgumentName,
	}
}

func (c Config) reader(r cachekey.Resolver) reader.Reader {
	if c.Reader == ReaderBatch {
		return reader.NewBatch(r)
	}
	return reader.NewSequential(r)
}

// CodecFor returns the record codec registered under name together with
// the id kvstore stamps into its frames. maxPayload > 0 bounds Decode.
func CodecFor(name string, maxPayload int) (codec.Codec[record.Wire], byte, error) {
	id, ok := codecIDs[name]
	if !ok {
		return nil, 0, zerr.With(ErrUnknownCodec, "codec", name)
	}
	var cd codec.Codec[record.Wire]
	switch name {
	case CodecJSON:
		cd = codec.JSON[record.Wire]{}
	case CodecMsgpack:
		cd = codec.Msgpack[record.Wire]{}
	case CodecCBOR:
		cb, err := codec.NewCBOR[record.Wire](true)
		if err != nil {
			return nil, 0, zerr.Wrap(err, "failed to build cbor codec")
		}
		cd = cb
	case CodecProto:
		cd = codec.Proto{}
	}
	if maxPayload > 0 {
		cd = codec.Limit[record.Wire]{Inner: cd, MaxDecode: maxPayload}
	}
	return cd, id, nil
}

// CodecName maps a frame codec id back to its name.
func CodecName(id byte) (string, bool) {
	for name, v := range codecIDs {
		if v == id {
			return name, true
		}
	}
	return "", false
}

// durable returns nil for the memory kind; normcache.New builds that one.
func (c Config) durable(ctx context.Context, logger log.Logger, h hooks.Hooks) (store.NormalizedCache, error) {
	var (
		p      pr.Provider
		epochs epoch.Store
		err    error
	)
	switch c.Store.Kind {
	case StoreMemory:
		return nil, nil
	case StoreRistretto:
		rc := c.Store.Ristretto
		p, err = ristretto.New(ristretto.Config{
			NumCounters: rc.NumCounters,
			MaxCost:     rc.MaxCost,
			BufferItems: rc.BufferItems,
			Metrics:     rc.Metrics,
		})
	case StoreBigCache:
		bc := c.Store.BigCache
		p, err = bigcache.New(ctx, bigcache.Config{
			LifeWindow:         bc.LifeWindow,
			CleanWindow:        bc.CleanWindow,
			Shards:             bc.Shards,
			HardMaxCacheSizeMB: bc.HardMaxCacheSizeMB,
		})
	case StoreRedis:
		rc := c.Store.Redis
		client := goredis.NewClient(&goredis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		if epochs, err = epoch.NewRedis(client, rc.EpochPrefix, false); err != nil {
			_ = client.Close()
			return nil, zerr.Wrap(err, "failed to build redis epoch store")
		}
		if p, err = newRedisProvider(redis.Config{Client: client, CloseClient: true}); err != nil {
			_ = client.Close()
		}
	default:
		return nil, zerr.With(ErrUnknownStore, "kind", c.Store.Kind)
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to build provider"), "kind", c.Store.Kind)
	}

	cd, id, err := CodecFor(c.Codec, c.MaxPayload)
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}
	kv, err := kvstore.New(kvstore.Options{
		Provider:    p,
		Codec:       cd,
		CodecID:     id,
		Namespace:   c.Namespace,
		Epochs:      epochs,
		TTL:         c.TTL,
		Concurrency: c.Concurrency,
		Logger:      logger,
		Hooks:       h,
	})
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}
	if !c.Store.MemoryFront {
		return kv, nil
	}
	return memory.New(memory.Options{MaxSize: c.Store.MaxSize, Next: kv, Logger: logger, Hooks: h}), nil
}
