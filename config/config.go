// Package config loads a YAML description of a normalized cache and
// assembles the matching normcache.Store.
package config

import (
	"os"
	"time"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreMemory    = "memory"
	StoreRistretto = "ristretto"
	StoreBigCache  = "bigcache"
	StoreRedis     = "redis"
)

// Codec names and the ids kvstore stamps into frames.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
	CodecCBOR    = "cbor"
	CodecProto   = "proto"
)

var codecIDs = map[string]byte{
	CodecJSON:    1,
	CodecMsgpack: 2,
	CodecCBOR:    3,
	CodecProto:   4,
}

const (
	ReaderSequential = "sequential"
	ReaderBatch      = "batch"

	ResolverNone = "none"
	ResolverID   = "id"
)

var (
	ErrUnknownStore    = zerr.New("unknown store kind")
	ErrUnknownCodec    = zerr.New("unknown codec")
	ErrUnknownReader   = zerr.New("unknown reader")
	ErrUnknownResolver = zerr.New("unknown resolver")
	ErrMissingAddr     = zerr.New("redis store requires an address")
	ErrNegative        = zerr.New("value must not be negative")
)

// Config is the root of a normcache YAML file.
type Config struct {
	Disabled        bool           `yaml:"disabled"`
	Namespace       string         `yaml:"namespace"`
	Store           StoreConfig    `yaml:"store"`
	Codec           string         `yaml:"codec"`
	MaxPayload      int            `yaml:"maxPayload"`
	TTL             time.Duration  `yaml:"ttl"`
	Concurrency     int            `yaml:"concurrency"`
	Reader          string         `yaml:"reader"`
	Resolver        ResolverConfig `yaml:"resolver"`
	JournalCapacity int            `yaml:"journalCapacity"`
}

// StoreConfig selects the durable layer. MemoryFront puts an in-process
// memory store in front of a byte-backed kind.
type StoreConfig struct {
	Kind        string          `yaml:"kind"`
	MaxSize     int64           `yaml:"maxSize"`
	MemoryFront bool            `yaml:"memoryFront"`
	Ristretto   RistrettoConfig `yaml:"ristretto"`
	BigCache    BigCacheConfig  `yaml:"bigcache"`
	Redis       RedisConfig     `yaml:"redis"`
}

type RistrettoConfig struct {
	NumCounters int64 `yaml:"numCounters"`
	MaxCost     int64 `yaml:"maxCost"`
	BufferItems int64 `yaml:"bufferItems"`
	Metrics     bool  `yaml:"metrics"`
}

type BigCacheConfig struct {
	LifeWindow         time.Duration `yaml:"lifeWindow"`
	CleanWindow        time.Duration `yaml:"cleanWindow"`
	Shards             int           `yaml:"shards"`
	HardMaxCacheSizeMB int           `yaml:"hardMaxCacheSizeMB"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// EpochPrefix namespaces the epoch counters shared by every process
	// using the same server.
	EpochPrefix string `yaml:"epochPrefix"`
}

type ResolverConfig struct {
	Kind           string `yaml:"kind"`
	IDField        string `yaml:"idField"`
	TypenameField  string `yaml:"typenameField"`
	PrefixTypename bool   `yaml:"prefixTypename"`
	ArgumentName   string `yaml:"argumentName"`
}

// Default returns the configuration used for empty fields.
func Default() Config {
	return Config{
		Namespace: "default",
		Store: StoreConfig{
			Kind: StoreMemory,
			Ristretto: RistrettoConfig{
				NumCounters: 1e6,
				MaxCost:     64 << 20,
			},
			Redis: RedisConfig{EpochPrefix: "normcache:"},
		},
		Codec:    CodecJSON,
		Reader:   ReaderSequential,
		Resolver: ResolverConfig{Kind: ResolverID},
	}
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by the caller
	if err != nil {
		return Config{}, zerr.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, zerr.Wrap(err, "failed to parse config file")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store.Kind {
	case StoreMemory, StoreRistretto, StoreBigCache:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return ErrMissingAddr
		}
	default:
		return zerr.With(ErrUnknownStore, "kind", c.Store.Kind)
	}
	if _, ok := codecIDs[c.Codec]; !ok {
		return zerr.With(ErrUnknownCodec, "codec", c.Codec)
	}
	switch c.Reader {
	case ReaderSequential, ReaderBatch:
	default:
		return zerr.With(ErrUnknownReader, "reader", c.Reader)
	}
	switch c.Resolver.Kind {
	case ResolverNone, ResolverID:
	default:
		return zerr.With(ErrUnknownResolver, "resolver", c.Resolver.Kind)
	}

	for _, f := range []struct {
		name string
		v    int64
	}{
		{"store.maxSize", c.Store.MaxSize},
		{"maxPayload", int64(c.MaxPayload)},
		{"ttl", int64(c.TTL)},
		{"concurrency", int64(c.Concurrency)},
		{"journalCapacity", int64(c.JournalCapacity)},
	} {
		if f.v < 0 {
			return zerr.With(ErrNegative, "field", f.name)
		}
	}
	return nil
}
