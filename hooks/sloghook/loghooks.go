// Package sloghook logs hook events to a *slog.Logger with optional
// sampling and key redaction.
package sloghook

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/normcache/hooks"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	EvictEvery    uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	evictCtr    atomic.Uint64
}

var _ hooks.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) RecordSelfHealed(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("normcache.record_self_healed",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) StoreReadFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("normcache.store_read_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) RecordsEvicted(layer string, keys []string) {
	if h.l == nil || !sample(h.opts.EvictEvery, &h.evictCtr) {
		return
	}
	h.l.Debug("normcache.records_evicted",
		"layer", layer,
		"count", len(keys))
}

func (h *Hooks) OptimisticReverted(mutationID string, records int) {
	if h.l == nil {
		return
	}
	h.l.Info("normcache.optimistic_reverted",
		"mutation", mutationID,
		"records", records)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("normcache.provider_set_rejected",
		"key", h.redact(storageKey))
}
