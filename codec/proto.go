package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/normcache/record"
)

// Proto encodes records as a google.protobuf.Struct. It needs no generated
// code, so any store that already speaks protobuf can hold records.
// Scalars are limited to what structpb.NewValue accepts; numbers decode as
// float64.
type Proto struct{}

var _ Codec[record.Wire] = Proto{}

func (Proto) Encode(w record.Wire) ([]byte, error) {
	fields := make(map[string]any, len(w.Fields))
	for fk, v := range w.Fields {
		fields[fk] = protoValue(v)
	}
	s, err := structpb.NewStruct(map[string]any{"key": w.Key, "fields": fields})
	if err != nil {
		return nil, fmt.Errorf("proto codec: %w", err)
	}
	return proto.Marshal(s)
}

func (Proto) Decode(b []byte) (record.Wire, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return record.Wire{}, err
	}
	m := s.AsMap()
	key, _ := m["key"].(string)
	raw, _ := m["fields"].(map[string]any)
	w := record.Wire{Key: key, Fields: make(map[string]record.WireValue, len(raw))}
	for fk, v := range raw {
		wv, err := wireValue(v)
		if err != nil {
			return record.Wire{}, fmt.Errorf("proto codec: field %q: %w", fk, err)
		}
		w.Fields[fk] = wv
	}
	return w, nil
}

func protoValue(v record.WireValue) map[string]any {
	out := map[string]any{"k": float64(v.Kind)}
	switch v.Kind {
	case record.KindReference:
		out["r"] = v.Ref
	case record.KindList:
		l := make([]any, len(v.List))
		for i, el := range v.List {
			l[i] = protoValue(el)
		}
		out["l"] = l
	default:
		out["s"] = v.Scalar
	}
	return out
}

func wireValue(v any) (record.WireValue, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return record.WireValue{}, fmt.Errorf("value is %T, want object", v)
	}
	kind, _ := m["k"].(float64)
	out := record.WireValue{Kind: uint8(kind)}
	switch out.Kind {
	case record.KindReference:
		out.Ref, _ = m["r"].(string)
	case record.KindList:
		l, _ := m["l"].([]any)
		out.List = make([]record.WireValue, len(l))
		for i, el := range l {
			wv, err := wireValue(el)
			if err != nil {
				return record.WireValue{}, err
			}
			out.List[i] = wv
		}
	case record.KindScalar:
		out.Scalar = m["s"]
	default:
		return record.WireValue{}, fmt.Errorf("unknown value kind %d", out.Kind)
	}
	return out, nil
}
