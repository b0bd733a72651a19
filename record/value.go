package record

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
)

// FieldValue is the value of one record field: a Scalar, a List or a Reference.
// The set of implementations is closed.
type FieldValue interface {
	isFieldValue()
}

// Scalar is an opaque leaf: string, number, bool, nil, or a structured
// custom scalar (maps/slices) that is stored as-is.
type Scalar struct {
	V any
}

// List is an ordered sequence of values. Elements may be References or nested Lists.
type List []FieldValue

// Reference points at another record by key. It never owns the target.
type Reference struct {
	Key string
}

func (Scalar) isFieldValue()    {}
func (List) isFieldValue()      {}
func (Reference) isFieldValue() {}

// Ref is shorthand for Reference{Key: key}.
func Ref(key string) Reference { return Reference{Key: key} }

// Equal reports whether two field values are structurally equal.
func Equal(a, b FieldValue) bool {
	switch av := a.(type) {
	case Scalar:
		bv, ok := b.(Scalar)
		return ok && scalarEqual(av.V, bv.V)
	case Reference:
		bv, ok := b.(Reference)
		return ok && av.Key == bv.Key
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	}
	return false
}

func scalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, ok := number(a); ok {
		if bn, ok := number(b); ok {
			return an.equal(bn)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

type numKind uint8

const (
	numInt numKind = iota
	numUint
	numFloat
)

// num holds one Go numeric value without losing precision.
type num struct {
	kind numKind
	i    int64
	u    uint64
	f    float64
}

// number folds Go's numeric kinds so that values that went through
// different codecs (int64, uint64, float64) still compare by value.
func number(v any) (num, bool) {
	switch n := v.(type) {
	case int:
		return num{kind: numInt, i: int64(n)}, true
	case int8:
		return num{kind: numInt, i: int64(n)}, true
	case int16:
		return num{kind: numInt, i: int64(n)}, true
	case int32:
		return num{kind: numInt, i: int64(n)}, true
	case int64:
		return num{kind: numInt, i: n}, true
	case uint:
		return num{kind: numUint, u: uint64(n)}, true
	case uint8:
		return num{kind: numUint, u: uint64(n)}, true
	case uint16:
		return num{kind: numUint, u: uint64(n)}, true
	case uint32:
		return num{kind: numUint, u: uint64(n)}, true
	case uint64:
		return num{kind: numUint, u: n}, true
	case float32:
		return num{kind: numFloat, f: float64(n)}, true
	case float64:
		return num{kind: numFloat, f: n}, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return num{kind: numInt, i: i}, true
		}
		if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
			return num{kind: numUint, u: u}, true
		}
		if f, err := n.Float64(); err == nil {
			return num{kind: numFloat, f: f}, true
		}
	}
	return num{}, false
}

// equal compares integers exactly. An integer equals a float only when the
// float is integral, in range, and converts to exactly that integer.
func (a num) equal(b num) bool {
	if a.kind > b.kind {
		a, b = b, a
	}
	switch {
	case a.kind == numInt && b.kind == numInt:
		return a.i == b.i
	case a.kind == numUint && b.kind == numUint:
		return a.u == b.u
	case a.kind == numFloat:
		return a.f == b.f
	case a.kind == numInt && b.kind == numUint:
		return a.i >= 0 && uint64(a.i) == b.u
	case a.kind == numInt:
		i, ok := floatToInt(b.f)
		return ok && i == a.i
	default: // uint vs float
		u, ok := floatToUint(b.f)
		return ok && u == a.u
	}
}

const (
	two63 = 9223372036854775808.0  // 2^63
	two64 = 18446744073709551616.0 // 2^64
)

func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < -two63 || f >= two63 {
		return 0, false
	}
	return int64(f), true
}

func floatToUint(f float64) (uint64, bool) {
	if f != math.Trunc(f) || f < 0 || f >= two64 {
		return 0, false
	}
	return uint64(f), true
}

// Walk calls fn for every reference found in v, descending into lists.
func Walk(v FieldValue, fn func(Reference)) {
	switch tv := v.(type) {
	case Reference:
		fn(tv)
	case List:
		for _, el := range tv {
			Walk(el, fn)
		}
	}
}
