package record

// Rough per-item overheads used by SizeEstimate. They only need to be
// consistent, not exact.
const (
	recordOverhead = 16
	fieldOverhead  = 16
	wordSize       = 8
)

// SizeEstimate approximates the memory footprint of r in bytes.
func (r *Record) SizeEstimate() int64 {
	size := int64(recordOverhead + len(r.Key))
	for fk, v := range r.Fields {
		size += fieldOverhead + int64(len(fk)) + valueSize(v)
	}
	return size
}

func valueSize(v FieldValue) int64 {
	switch tv := v.(type) {
	case Reference:
		return int64(len(tv.Key))
	case List:
		n := int64(wordSize)
		for _, el := range tv {
			n += valueSize(el)
		}
		return n
	case Scalar:
		return scalarSize(tv.V)
	}
	return 0
}

func scalarSize(v any) int64 {
	switch tv := v.(type) {
	case nil:
		return 0
	case string:
		return int64(len(tv))
	case bool:
		return 1
	case []any:
		n := int64(wordSize)
		for _, el := range tv {
			n += scalarSize(el)
		}
		return n
	case map[string]any:
		n := int64(wordSize)
		for k, el := range tv {
			n += int64(len(k)) + scalarSize(el)
		}
		return n
	}
	return wordSize
}
