package record

import "fmt"

// Value kinds of the portable form.
const (
	KindScalar uint8 = iota
	KindList
	KindReference
)

// Wire is the codec-friendly form of a Record. Byte-level stores encode
// it with any codec.Codec[Wire].
type Wire struct {
	Key    string               `json:"key" msgpack:"key" cbor:"1,keyasint"`
	Fields map[string]WireValue `json:"fields" msgpack:"fields" cbor:"2,keyasint"`
}

// WireValue is the portable form of a FieldValue.
type WireValue struct {
	Kind   uint8       `json:"k" msgpack:"k" cbor:"1,keyasint"`
	Scalar any         `json:"s" msgpack:"s" cbor:"2,keyasint"`
	List   []WireValue `json:"l,omitempty" msgpack:"l,omitempty" cbor:"3,keyasint,omitempty"`
	Ref    string      `json:"r,omitempty" msgpack:"r,omitempty" cbor:"4,keyasint,omitempty"`
}

// ToWire converts r to its portable form.
func (r *Record) ToWire() Wire {
	w := Wire{Key: r.Key, Fields: make(map[string]WireValue, len(r.Fields))}
	for fk, v := range r.Fields {
		w.Fields[fk] = toWireValue(v)
	}
	return w
}

// FromWire converts a portable record back to a Record.
func FromWire(w Wire) (*Record, error) {
	r := &Record{Key: w.Key, Fields: make(map[string]FieldValue, len(w.Fields))}
	for fk, wv := range w.Fields {
		v, err := fromWireValue(wv)
		if err != nil {
			return nil, fmt.Errorf("record %q field %q: %w", w.Key, fk, err)
		}
		r.Fields[fk] = v
	}
	return r, nil
}

func toWireValue(v FieldValue) WireValue {
	switch tv := v.(type) {
	case Reference:
		return WireValue{Kind: KindReference, Ref: tv.Key}
	case List:
		out := make([]WireValue, len(tv))
		for i, el := range tv {
			out[i] = toWireValue(el)
		}
		return WireValue{Kind: KindList, List: out}
	case Scalar:
		return WireValue{Kind: KindScalar, Scalar: tv.V}
	}
	return WireValue{Kind: KindScalar}
}

func fromWireValue(w WireValue) (FieldValue, error) {
	switch w.Kind {
	case KindScalar:
		return Scalar{V: w.Scalar}, nil
	case KindReference:
		return Reference{Key: w.Ref}, nil
	case KindList:
		out := make(List, len(w.List))
		for i, el := range w.List {
			v, err := fromWireValue(el)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown value kind %d", w.Kind)
}
