// Package hooks defines lightweight callbacks for high-signal cache events.
// Implementations MUST be cheap and non-blocking: they run on hot paths.
// Wrap a slow sink with hooks/async.
package hooks

// Hooks receives cache events.
type Hooks interface {
	// A stored entry was dropped on read.
	// reason ∈ {"corrupt", "stale_epoch", "codec", "decode"}
	RecordSelfHealed(storageKey, reason string)

	// The durable layer failed under an optimistic read; the read went on
	// as if the record were absent there.
	StoreReadFailed(key string, err error)

	// Records were evicted from a bounded store.
	RecordsEvicted(layer string, keys []string)

	// Optimistic updates of one mutation were reverted, touching n records.
	OptimisticReverted(mutationID string, records int)

	// Provider returned ok=false on Set (backpressure/admission), or the
	// storage key is held by another record's live frame.
	ProviderSetRejected(storageKey string)
}

// Nop is the default no-op.
type Nop struct{}

var _ Hooks = Nop{}

func (Nop) RecordSelfHealed(string, string) {}
func (Nop) StoreReadFailed(string, error)   {}
func (Nop) RecordsEvicted(string, []string) {}
func (Nop) OptimisticReverted(string, int)  {}
func (Nop) ProviderSetRejected(string)      {}

// OrNop returns h, or Nop when h is nil.
func OrNop(h Hooks) Hooks {
	if h == nil {
		return Nop{}
	}
	return h
}
