package normalize

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/normcache/record"
)

var (
	// ErrInconsistentScalar means one pass saw two different values for the
	// same field of the same record.
	ErrInconsistentScalar = errors.New("normalize: inconsistent scalar merge")
	// ErrUnsupportedMerge means one pass saw two different lists, or values of
	// different shapes, for the same field of the same record.
	ErrUnsupportedMerge = errors.New("normalize: unsupported merge")
	// ErrUnexpectedShape means the tree does not match the field descriptors.
	ErrUnexpectedShape = errors.New("normalize: unexpected value shape")
)

// MergeError describes a conflicting revisit of one field. Kind is one of
// ErrInconsistentScalar or ErrUnsupportedMerge and is what errors.Is matches.
type MergeError struct {
	Kind     error
	Key      string
	FieldKey string
	Existing record.FieldValue
	Incoming record.FieldValue
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("%v: record %q field %q: %#v vs %#v", e.Kind, e.Key, e.FieldKey, e.Existing, e.Incoming)
}

func (e *MergeError) Unwrap() error { return e.Kind }
