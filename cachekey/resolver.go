// Package cachekey decides the identity (record key) of response objects.
//
// A Resolver either names an object's key or returns None, in which case
// the object is identified by its path from the root (parentKey.fieldKey,
// with list indexes as extra segments). None is always correct but gives
// no deduplication across paths.
package cachekey

import (
	"fmt"

	"github.com/unkn0wn-root/normcache/field"
)

// CacheKey is a record key. The empty value means "no key".
type CacheKey string

// None is the "no key" sentinel.
const None CacheKey = ""

// IsNone reports whether k asks for the path-based fallback.
func (k CacheKey) IsNone() bool { return k == None }

func (k CacheKey) String() string { return string(k) }

// Resolver computes entity keys. Implementations must be pure.
type Resolver interface {
	// FromFieldArguments decides an object's key from the field's arguments
	// alone, without the object itself (used while reading).
	FromFieldArguments(f field.Field, vars field.Variables) CacheKey
	// FromFieldRecordSet decides an object's key from its scalar fields,
	// keyed by response name (used while normalizing).
	FromFieldRecordSet(f field.Field, scalars map[string]any) CacheKey
}

// NoKey is the default resolver: every object is identified by its path.
type NoKey struct{}

var _ Resolver = NoKey{}

func (NoKey) FromFieldArguments(field.Field, field.Variables) CacheKey { return None }
func (NoKey) FromFieldRecordSet(field.Field, map[string]any) CacheKey  { return None }

// ByID identifies objects by an id scalar, optionally qualified by type.
// The zero value reads "id" and "__typename" and does not prefix.
type ByID struct {
	IDField        string // default "id"
	TypenameField  string // default "__typename"
	PrefixTypename bool   // key as "<Typename>:<id>" when the typename is known
	// ArgumentName is the argument naming an object's id in FromFieldArguments.
	// Default is IDField.
	ArgumentName string
}

var _ Resolver = ByID{}

func (r ByID) idField() string { return coalesce(r.IDField, "id") }

func (r ByID) typenameField() string { return coalesce(r.TypenameField, "__typename") }

// FromFieldArguments returns the id argument when present. Type prefixing is
// not possible here because the concrete type is not known before reading.
func (r ByID) FromFieldArguments(f field.Field, vars field.Variables) CacheKey {
	if r.PrefixTypename {
		return None
	}
	args := field.ResolveArguments(f, vars)
	id, ok := args[coalesce(r.ArgumentName, r.idField())]
	if !ok {
		return None
	}
	return stringify(id)
}

func (r ByID) FromFieldRecordSet(_ field.Field, scalars map[string]any) CacheKey {
	id, ok := scalars[r.idField()]
	if !ok {
		return None
	}
	key := stringify(id)
	if key.IsNone() || !r.PrefixTypename {
		return key
	}
	if tn, ok := scalars[r.typenameField()].(string); ok && tn != "" {
		return CacheKey(tn + ":" + string(key))
	}
	return key
}

// Func adapts two plain functions to a Resolver. A nil function returns None.
type Func struct {
	Arguments func(f field.Field, vars field.Variables) CacheKey
	RecordSet func(f field.Field, scalars map[string]any) CacheKey
}

var _ Resolver = Func{}

func (r Func) FromFieldArguments(f field.Field, vars field.Variables) CacheKey {
	if r.Arguments == nil {
		return None
	}
	return r.Arguments(f, vars)
}

func (r Func) FromFieldRecordSet(f field.Field, scalars map[string]any) CacheKey {
	if r.RecordSet == nil {
		return None
	}
	return r.RecordSet(f, scalars)
}

func stringify(v any) CacheKey {
	switch tv := v.(type) {
	case nil:
		return None
	case string:
		return CacheKey(tv)
	case float64:
		// JSON numbers; keep integral ids free of exponent/decimal noise.
		if tv == float64(int64(tv)) {
			return CacheKey(fmt.Sprintf("%d", int64(tv)))
		}
	}
	return CacheKey(fmt.Sprint(v))
}

func coalesce(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
