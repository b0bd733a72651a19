package normcache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/normcache/normalize"
	"github.com/unkn0wn-root/normcache/reader"
)

var (
	ErrClosed = errors.New("normcache: store is closed")

	ErrCacheMiss          = reader.ErrCacheMiss
	ErrFieldMissing       = reader.ErrFieldMissing
	ErrInconsistentScalar = normalize.ErrInconsistentScalar
	ErrUnsupportedMerge   = normalize.ErrUnsupportedMerge
)

// OpError reports which Store operation failed and for which root or
// record key.
type OpError struct {
	Op  string
	Key string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("normcache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// IsMiss reports whether err means "not answerable from the cache": a
// missing record, a missing field, or a disabled store.
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrFieldMissing)
}
