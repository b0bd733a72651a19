// Package zap adapts a *zap.Logger to normcache's log.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/normcache/log"
)

var _ log.Logger = Logger{}

// Logger forwards to L. Fields are emitted in key order.
type Logger struct{ L *zap.Logger }

// New wraps l, naming the logger "normcache".
func New(l *zap.Logger) Logger { return Logger{L: l.Named("normcache")} }

func (z Logger) Debug(msg string, f log.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f log.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f log.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f log.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f log.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
