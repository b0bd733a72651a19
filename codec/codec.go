// Package codec serializes records for byte-level stores. kvstore encodes
// record.Wire values; every codec here is generic so it can also carry
// other payloads.
//
// Numbers inside opaque scalars come back in the codec's native numeric
// type (float64 for JSON, int64/uint64 for CBOR and msgpack); record
// equality folds numeric kinds, so merges stay stable across codecs.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
