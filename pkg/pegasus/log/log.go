// Package log defines the narrow logging contract the client core depends
// on. The core never reaches for a global logger; every long-lived
// component (pool, session, resolver, executor) takes a Logger explicitly.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the sink the core writes diagnostics to. Implementations must
// be safe for concurrent use.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// NewDefault returns a Logger backed by logrus, writing to stderr with a
// text formatter. Most embedders will bring their own Logger instead.
func NewDefault() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

type logrusLogger struct {
	entry *logrus.Entry
}

func (l *logrusLogger) Debugf(format string, args ...interface{})   { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})    { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warningf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{})   { l.entry.Errorf(format, args...) }

// Nop is a Logger that discards everything, useful in tests.
var Nop Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{})   {}
func (nopLogger) Infof(string, ...interface{})    {}
func (nopLogger) Warningf(string, ...interface{}) {}
func (nopLogger) Errorf(string, ...interface{})   {}
