package reader

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheMiss means a referenced record is absent from the store.
	ErrCacheMiss = errors.New("reader: cache miss")
	// ErrFieldMissing means a record exists but does not hold a requested
	// field, or holds it in a shape the field set does not expect.
	ErrFieldMissing = errors.New("reader: field missing")
)

type CacheMissError struct {
	Key string
}

func (e *CacheMissError) Error() string {
	return fmt.Sprintf("%v: record %q", ErrCacheMiss, e.Key)
}

func (e *CacheMissError) Unwrap() error { return ErrCacheMiss }

type FieldMissingError struct {
	Key      string
	FieldKey string
	// Reason is empty when the field is absent; otherwise it names the shape
	// mismatch.
	Reason string
}

func (e *FieldMissingError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v: record %q field %q: %s", ErrFieldMissing, e.Key, e.FieldKey, e.Reason)
	}
	return fmt.Sprintf("%v: record %q field %q", ErrFieldMissing, e.Key, e.FieldKey)
}

func (e *FieldMissingError) Unwrap() error { return ErrFieldMissing }
