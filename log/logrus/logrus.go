// Package logrus adapts a logrus entry to normcache's log.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/normcache/log"
)

var _ log.Logger = Logger{}

// Logger forwards to E with component=normcache.
type Logger struct{ E *logrus.Entry }

// New wraps l.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "normcache")}
}

func (l Logger) Debug(msg string, f log.Fields) { l.E.WithFields(logrus.Fields(f)).Debug(msg) }
func (l Logger) Info(msg string, f log.Fields)  { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l Logger) Warn(msg string, f log.Fields)  { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l Logger) Error(msg string, f log.Fields) { l.E.WithFields(logrus.Fields(f)).Error(msg) }
