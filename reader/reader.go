// Package reader rebuilds response trees from normalized records.
//
// Both strategies produce the same tree and fail the same way: a
// reference to an absent record is a *CacheMissError and a requested
// field absent from a present record is a *FieldMissingError. No partial
// tree is ever returned. When a read has several defects, both report the
// one a depth-first walk in field order reaches first. A store failure
// aborts the read at once.
package reader

import (
	"context"

	"github.com/unkn0wn-root/normcache/cachekey"
	"github.com/unkn0wn-root/normcache/field"
	"github.com/unkn0wn-root/normcache/record"
	"github.com/unkn0wn-root/normcache/store"
)

// Reader denormalizes the record stored under rootKey using sets.
type Reader interface {
	Read(ctx context.Context, s store.ReadOnlyStore, rootKey string, sets []field.FieldSet, vars field.Variables, h store.Headers) (map[string]any, error)
}

// follow resolves the object referenced by key and hands it to set, either
// immediately or once its record is loaded.
type follow func(key string, sets []field.FieldSet, set func(any)) error

// fields walks one record against sets and fills obj. References are
// passed to next.
func fields(rec *record.Record, sets []field.FieldSet, vars field.Variables, resolver cachekey.Resolver, obj map[string]any, next follow) error {
	for _, f := range field.Select(sets, rec.Typename()) {
		fk, err := field.BuildKey(f, vars)
		if err != nil {
			return err
		}
		name := f.ResponseName
		set := func(v any) { obj[name] = v }

		v, ok := rec.Fields[fk]
		if !ok {
			if f.IsObject() {
				if k := resolver.FromFieldArguments(f, vars); !k.IsNone() {
					if err := next(k.String(), f.FieldSets, set); err != nil {
						return err
					}
					continue
				}
			}
			return &FieldMissingError{Key: rec.Key, FieldKey: fk}
		}
		if err := value(rec.Key, fk, f, v, set, next); err != nil {
			return err
		}
	}
	return nil
}

// value converts one stored value back to its tree form.
func value(key, fk string, f field.Field, v record.FieldValue, set func(any), next follow) error {
	switch tv := v.(type) {
	case record.Scalar:
		if tv.V != nil && f.IsObject() {
			return &FieldMissingError{Key: key, FieldKey: fk, Reason: "scalar stored for an object field"}
		}
		set(tv.V)
	case record.List:
		out := make([]any, len(tv))
		set(out)
		for i, el := range tv {
			if err := value(key, fk, f, el, func(x any) { out[i] = x }, next); err != nil {
				return err
			}
		}
	case record.Reference:
		if !f.IsObject() {
			return &FieldMissingError{Key: key, FieldKey: fk, Reason: "reference stored for a scalar field"}
		}
		return next(tv.Key, f.FieldSets, set)
	default:
		set(nil)
	}
	return nil
}

func orNoKey(r cachekey.Resolver) cachekey.Resolver {
	if r == nil {
		return cachekey.NoKey{}
	}
	return r
}
