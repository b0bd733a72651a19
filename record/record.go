// Package record defines the normalized representation of one entity: a
// Record is a key plus a flat map of field-key -> FieldValue. Records point
// at each other through key-based References only, never by embedding, so a
// single update to a record is visible from every path that reaches it.
package record

import (
	"fmt"
	"sort"
)

// Well-known root keys.
const (
	QueryRoot        = "QUERY_ROOT"
	MutationRoot     = "MUTATION_ROOT"
	SubscriptionRoot = "SUBSCRIPTION_ROOT"
)

// TypenameField is the field key holding an object's concrete type name.
const TypenameField = "__typename"

// Record is one normalized entity.
type Record struct {
	Key    string
	Fields map[string]FieldValue
}

// New returns an empty record for key.
func New(key string) *Record {
	return &Record{Key: key, Fields: make(map[string]FieldValue)}
}

// Field returns the value stored under fieldKey.
func (r *Record) Field(fieldKey string) (FieldValue, bool) {
	v, ok := r.Fields[fieldKey]
	return v, ok
}

// Set stores v under fieldKey.
func (r *Record) Set(fieldKey string, v FieldValue) {
	if r.Fields == nil {
		r.Fields = make(map[string]FieldValue)
	}
	r.Fields[fieldKey] = v
}

// Typename returns the record's __typename scalar when it is a string.
func (r *Record) Typename() string {
	v, ok := r.Fields[TypenameField]
	if !ok {
		return ""
	}
	s, ok := v.(Scalar)
	if !ok {
		return ""
	}
	name, _ := s.V.(string)
	return name
}

// FieldKeys returns the record's fields in "key.fieldKey" form, sorted.
func (r *Record) FieldKeys() []string {
	out := make([]string, 0, len(r.Fields))
	for fk := range r.Fields {
		out = append(out, r.Key+"."+fk)
	}
	sort.Strings(out)
	return out
}

// Clone returns a copy whose field map can be mutated independently.
// Field values are immutable by convention and are shared.
func (r *Record) Clone() *Record {
	out := &Record{Key: r.Key, Fields: make(map[string]FieldValue, len(r.Fields))}
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return out
}

// MergeWith copies every field of other into r, overwriting on conflict,
// and returns the changed fields in "key.fieldKey" form. other.Key is ignored.
func (r *Record) MergeWith(other *Record) KeySet {
	changed := KeySet{}
	if r.Fields == nil {
		r.Fields = make(map[string]FieldValue, len(other.Fields))
	}
	for fk, nv := range other.Fields {
		if ov, ok := r.Fields[fk]; ok && Equal(ov, nv) {
			continue
		}
		r.Fields[fk] = nv
		changed.Add(r.Key + "." + fk)
	}
	return changed
}

// References returns the keys of every record this record points at,
// in field-key order and without duplicates.
func (r *Record) References() []string {
	fks := make([]string, 0, len(r.Fields))
	for fk := range r.Fields {
		fks = append(fks, fk)
	}
	sort.Strings(fks)

	seen := make(map[string]struct{})
	var out []string
	for _, fk := range fks {
		Walk(r.Fields[fk], func(ref Reference) {
			if _, dup := seen[ref.Key]; dup {
				return
			}
			seen[ref.Key] = struct{}{}
			out = append(out, ref.Key)
		})
	}
	return out
}

// Equal reports whether both records have the same key and fields.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Key != other.Key || len(r.Fields) != len(other.Fields) {
		return false
	}
	for fk, v := range r.Fields {
		ov, ok := other.Fields[fk]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

func (r *Record) String() string {
	return fmt.Sprintf("Record(%s, %d fields)", r.Key, len(r.Fields))
}
