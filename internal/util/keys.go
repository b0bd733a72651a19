package util

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// MaxRawKey is the longest record key stored verbatim. Longer keys (deep
// path keys, large argument objects) are hashed so provider keys stay small.
const MaxRawKey = 200

// StorageKey maps a record key into the namespace keyspace:
//
//	rec:<ns>:k:<key>         when len(key) <= MaxRawKey
//	rec:<ns>:x:<xxhash hex>  otherwise
//
// Hashed keys may collide; readers must compare the key carried in the
// stored frame.
func StorageKey(ns, key string) string {
	if len(key) <= MaxRawKey {
		return "rec:" + ns + ":k:" + key
	}
	return "rec:" + ns + ":x:" + strconv.FormatUint(xxhash.Sum64String(key), 16)
}

// Coalesce returns def when v is the zero value of T - otherwise v.
func Coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
