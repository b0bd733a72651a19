package codec

import (
	"bytes"
	"encoding/json"
)

// JSON encodes with encoding/json. Decode keeps numbers as float64 unless
// UseNumber is set, in which case they decode as json.Number.
type JSON[V any] struct {
	UseNumber bool
}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (c JSON[V]) Decode(b []byte) (V, error) {
	var v V
	if !c.UseNumber {
		err := json.Unmarshal(b, &v)
		return v, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	err := dec.Decode(&v)
	return v, err
}
