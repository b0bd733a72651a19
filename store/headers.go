package store

// Headers is an opaque per-call bag threaded through every store call.
// The engine never interprets it; concrete stores may.
type Headers map[string]string

// Well-known header names.
const (
	// HeaderDoNotStore asks stores to skip persisting a write.
	HeaderDoNotStore = "do-not-store"
	// HeaderEvictAfterRead asks stores to drop a record once it was read.
	HeaderEvictAfterRead = "evict-after-read"
	// HeaderMemoryCacheOnly asks chained stores to stay in memory.
	HeaderMemoryCacheOnly = "memory-cache-only"
)

// Has reports whether name is set to "true".
func (h Headers) Has(name string) bool {
	return h != nil && h[name] == "true"
}

// With returns a copy of h with name set to value.
func (h Headers) With(name, value string) Headers {
	out := make(Headers, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	out[name] = value
	return out
}

// Flag is shorthand for Headers{}.With(name, "true").
func Flag(names ...string) Headers {
	out := make(Headers, len(names))
	for _, n := range names {
		out[n] = "true"
	}
	return out
}
