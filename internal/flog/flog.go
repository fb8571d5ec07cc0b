// Package flog is a thin, explicitly-threaded wrapper around logrus.
//
// Nothing in flux reaches for a package-level logger; every constructor
// that needs to log takes a *Logger argument (or derives one with With),
// mirroring the way the teacher's log.Logger is passed down through Ctx
// rather than used as a global.
package flog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Entry, giving callers structured fields without
// exposing the rest of logrus's surface.
type Logger struct {
	entry *logrus.Entry
}

// New returns a Logger writing to w at the given level.
func New(w io.Writer, level logrus.Level) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
	})
	return &Logger{entry: logrus.NewEntry(l)}
}

// Discard returns a Logger that drops everything. Useful as a zero-cost
// default in constructors that accept an optional *Logger.
func Discard() *Logger {
	return New(io.Discard, logrus.PanicLevel)
}

// Stderr returns a Logger writing to os.Stderr at the given level.
func Stderr(level logrus.Level) *Logger {
	return New(os.Stderr, level)
}

// With returns a child Logger with the given structured field attached.
// Use it to scope a logger to a package, fingerprint, or decision level
// without threading extra parameters everywhere.
func (l *Logger) With(key string, val interface{}) *Logger {
	if l == nil {
		return Discard()
	}
	return &Logger{entry: l.entry.WithField(key, val)}
}

// WithFields returns a child Logger with several structured fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	if l == nil {
		return Discard()
	}
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry.Errorf(format, args...)
}
