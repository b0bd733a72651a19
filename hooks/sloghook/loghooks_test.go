package sloghook

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRedactsKeysByDefault(t *testing.T) {
	var buf bytes.Buffer
	h := New(newLogger(&buf), Options{})

	h.StoreReadFailed("rec:default:k:1000", errors.New("down"))
	out := buf.String()
	assert.Contains(t, out, "normcache.store_read_failed")
	assert.NotContains(t, out, "rec:default:k:1000")
	assert.Contains(t, out, "key="+h.redact("rec:default:k:1000"))
}

func TestCustomRedactorAndSampling(t *testing.T) {
	var buf bytes.Buffer
	h := New(newLogger(&buf), Options{
		SelfHealEvery: 3,
		Redact:        func(string) string { return "***" },
	})

	for i := 0; i < 6; i++ {
		h.RecordSelfHealed("k", "stale_epoch")
	}
	assert.Equal(t, 2, strings.Count(buf.String(), "normcache.record_self_healed"))
	assert.Contains(t, buf.String(), "key=***")
}

func TestNilLoggerIsSilent(t *testing.T) {
	h := New(nil, Options{})
	h.RecordSelfHealed("k", "corrupt")
	h.StoreReadFailed("k", errors.New("x"))
	h.RecordsEvicted("memory", []string{"k"})
	h.OptimisticReverted("id", 1)
	h.ProviderSetRejected("k")
}
