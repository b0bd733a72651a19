// Package async decorates a hooks.Hooks with a bounded queue drained by
// background workers. Events are dropped when the queue is full.
//
//	raw := sloghook.New(slog.Default(), sloghook.Options{SelfHealEvery: 10})
//	h := async.New(raw, 1, 1000)
//	defer h.Close()
package async

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/normcache/hooks"
)

type Hooks struct {
	inner hooks.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	dropped atomic.Uint64
}

var _ hooks.Hooks = (*Hooks)(nil)

func New(inner hooks.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: hooks.OrNop(inner), q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close stops accepting events and waits for queued ones to run.
// Events sent after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue after Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) RecordSelfHealed(k, r string) { h.try(func() { h.inner.RecordSelfHealed(k, r) }) }
func (h *Hooks) StoreReadFailed(k string, err error) {
	h.try(func() { h.inner.StoreReadFailed(k, err) })
}
func (h *Hooks) RecordsEvicted(layer string, keys []string) {
	h.try(func() { h.inner.RecordsEvicted(layer, keys) })
}
func (h *Hooks) OptimisticReverted(id string, n int) {
	h.try(func() { h.inner.OptimisticReverted(id, n) })
}
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }
