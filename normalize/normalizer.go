// Package normalize decomposes a materialized response tree into a flat set
// of records. Nested objects become References to their own records, keyed
// by the cache-key resolver or, when it has no opinion, by their path.
package normalize

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/unkn0wn-root/normcache/cachekey"
	"github.com/unkn0wn-root/normcache/field"
	"github.com/unkn0wn-root/normcache/record"
)

// Result is the output of one normalization pass.
type Result struct {
	Records map[string]*record.Record
	Root    record.Reference
}

// Keys returns the keys of every record touched by the pass, sorted.
func (r *Result) Keys() []string {
	out := make([]string, 0, len(r.Records))
	for k := range r.Records {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// List returns the records ordered by key.
func (r *Result) List() []*record.Record {
	keys := r.Keys()
	out := make([]*record.Record, len(keys))
	for i, k := range keys {
		out[i] = r.Records[k]
	}
	return out
}

// Normalizer turns response trees into records. It holds no per-pass state
// and can be reused, but a single instance is not meant for concurrent use
// with a non-pure resolver.
type Normalizer struct {
	resolver cachekey.Resolver
}

// New returns a Normalizer using resolver. Nil means cachekey.NoKey.
func New(resolver cachekey.Resolver) *Normalizer {
	if resolver == nil {
		resolver = cachekey.NoKey{}
	}
	return &Normalizer{resolver: resolver}
}

type pass struct {
	resolver cachekey.Resolver
	vars     field.Variables
	records  map[string]*record.Record
}

// Normalize walks tree, whose shape is described by sets, and returns the
// resulting records. The top-level object is always stored under rootKey.
//
// Fields requested by sets but absent from tree are skipped. Revisiting a
// record within the pass merges strictly: see MergeError.
func (n *Normalizer) Normalize(rootKey string, sets []field.FieldSet, tree map[string]any, vars field.Variables) (*Result, error) {
	p := &pass{
		resolver: n.resolver,
		vars:     vars,
		records:  make(map[string]*record.Record),
	}
	if err := p.object(rootKey, sets, tree); err != nil {
		return nil, err
	}
	return &Result{Records: p.records, Root: record.Ref(rootKey)}, nil
}

// object stores obj under key and merges it with earlier visits.
func (p *pass) object(key string, sets []field.FieldSet, obj map[string]any) error {
	fields := field.Select(sets, typename(obj))
	rec := record.New(key)

	for _, f := range fields {
		raw, present := obj[f.ResponseName]
		if !present {
			continue
		}
		fk, err := field.BuildKey(f, p.vars)
		if err != nil {
			return err
		}
		v, err := p.value(f, raw, key+"."+fk)
		if err != nil {
			return err
		}
		if prev, ok := rec.Fields[fk]; ok {
			// two aliases of one field in the same selection
			if _, err := mergeValue(key, fk, prev, v); err != nil {
				return err
			}
			continue
		}
		rec.Fields[fk] = v
	}

	existing, ok := p.records[key]
	if !ok {
		p.records[key] = rec
		return nil
	}
	return mergeRecord(existing, rec)
}

// value normalizes one field value found at path.
func (p *pass) value(f field.Field, raw any, path string) (record.FieldValue, error) {
	if raw == nil {
		return record.Scalar{V: nil}, nil
	}
	if !f.IsObject() {
		return scalarValue(raw), nil
	}
	switch tv := raw.(type) {
	case map[string]any:
		key := p.keyOf(f, tv, path)
		if err := p.object(key, f.FieldSets, tv); err != nil {
			return nil, err
		}
		return record.Ref(key), nil
	case []any:
		out := make(record.List, len(tv))
		for i, el := range tv {
			v, err := p.value(f, el, path+"."+strconv.Itoa(i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: field %q at %q: object expected, got %T", ErrUnexpectedShape, f.ResponseName, path, raw)
}

// keyOf asks the resolver using only the object's own scalar fields.
func (p *pass) keyOf(f field.Field, obj map[string]any, path string) string {
	fields := field.Select(f.FieldSets, typename(obj))
	scalars := make(map[string]any, len(fields)+1)
	if tn, ok := obj[record.TypenameField]; ok {
		scalars[record.TypenameField] = tn
	}
	for _, sf := range fields {
		if sf.IsObject() {
			continue
		}
		if v, ok := obj[sf.ResponseName]; ok {
			scalars[sf.ResponseName] = v
		}
	}
	if k := p.resolver.FromFieldRecordSet(f, scalars); !k.IsNone() {
		return k.String()
	}
	return path
}

// scalarValue keeps lists of leaves as Lists so elements stay addressable;
// anything else, structured custom scalars included, is opaque.
func scalarValue(raw any) record.FieldValue {
	if l, ok := raw.([]any); ok {
		out := make(record.List, len(l))
		for i, el := range l {
			out[i] = scalarValue(el)
		}
		return out
	}
	return record.Scalar{V: raw}
}

func typename(obj map[string]any) string {
	s, _ := obj[record.TypenameField].(string)
	return s
}

// mergeRecord folds src into dst field by field.
func mergeRecord(dst, src *record.Record) error {
	fks := make([]string, 0, len(src.Fields))
	for fk := range src.Fields {
		fks = append(fks, fk)
	}
	sort.Strings(fks)

	for _, fk := range fks {
		incoming := src.Fields[fk]
		existing, ok := dst.Fields[fk]
		if !ok {
			dst.Fields[fk] = incoming
			continue
		}
		merged, err := mergeValue(dst.Key, fk, existing, incoming)
		if err != nil {
			return err
		}
		dst.Fields[fk] = merged
	}
	return nil
}

// mergeValue accepts equal values only. Nested objects never reach here as
// values: they are References whose targets were already merged by key.
func mergeValue(key, fk string, existing, incoming record.FieldValue) (record.FieldValue, error) {
	if record.Equal(existing, incoming) {
		return existing, nil
	}
	kind := ErrUnsupportedMerge
	switch existing.(type) {
	case record.Scalar:
		if _, ok := incoming.(record.Scalar); ok {
			kind = ErrInconsistentScalar
		}
	case record.Reference:
		if _, ok := incoming.(record.Reference); ok {
			kind = ErrInconsistentScalar
		}
	}
	return nil, &MergeError{Kind: kind, Key: key, FieldKey: fk, Existing: existing, Incoming: incoming}
}
