// Package slog adapts a *slog.Logger to normcache's log.Logger.
package slog

import (
	"context"
	stdslog "log/slog"
	"sort"

	"github.com/unkn0wn-root/normcache/log"
)

var _ log.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

func (s Logger) Debug(msg string, f log.Fields) { s.emit(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f log.Fields)  { s.emit(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f log.Fields)  { s.emit(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f log.Fields) { s.emit(stdslog.LevelError, msg, f) }

func (s Logger) emit(level stdslog.Level, msg string, f log.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, level) {
		return
	}
	s.L.LogAttrs(ctx, level, msg, attrs(f)...)
}

func attrs(f log.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]stdslog.Attr, 0, len(f))
	for _, k := range keys {
		out = append(out, stdslog.Any(k, f[k]))
	}
	return out
}
