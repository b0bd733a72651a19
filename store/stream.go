package store

import (
	"context"
	"sort"

	"github.com/unkn0wn-root/normcache/record"
)

// RecordStream iterates one record's fields in field-key order.
//
//	s, err := store.Stream(ctx, cache, "1000", nil)
//	for s != nil && s.Next() {
//	    fmt.Println(s.FieldKey(), s.Value())
//	}
type RecordStream struct {
	rec  *record.Record
	keys []string
	pos  int
}

// Stream loads key and returns a reader over its fields. It returns
// (nil, nil) when key is absent.
func Stream(ctx context.Context, s ReadOnlyStore, key string, h Headers) (*RecordStream, error) {
	rec, err := s.LoadRecord(ctx, key, h)
	if err != nil || rec == nil {
		return nil, err
	}
	return NewRecordStream(rec), nil
}

// NewRecordStream returns a stream over rec.
func NewRecordStream(rec *record.Record) *RecordStream {
	keys := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &RecordStream{rec: rec, keys: keys, pos: -1}
}

// Key returns the record key.
func (s *RecordStream) Key() string { return s.rec.Key }

// Next advances to the next field.
func (s *RecordStream) Next() bool {
	if s.pos+1 >= len(s.keys) {
		s.pos = len(s.keys)
		return false
	}
	s.pos++
	return true
}

// FieldKey returns the current field key.
func (s *RecordStream) FieldKey() string { return s.keys[s.pos] }

// Value returns the current field value.
func (s *RecordStream) Value() record.FieldValue { return s.rec.Fields[s.keys[s.pos]] }
