// Package logrus adapts a logrus logger to logging.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/catalogcache/logging"
)

var _ logging.Logger = Logger{}

type Logger struct{ e *logrus.Entry }

// New tags every entry with the component name.
func New(l *logrus.Logger, component string) Logger {
	return Logger{e: l.WithField("component", component)}
}

func (l Logger) Debug(msg string, f logging.Fields) { l.entry(f).Debug(msg) }
func (l Logger) Info(msg string, f logging.Fields)  { l.entry(f).Info(msg) }
func (l Logger) Warn(msg string, f logging.Fields)  { l.entry(f).Warn(msg) }
func (l Logger) Error(msg string, f logging.Fields) { l.entry(f).Error(msg) }

// entry routes an "err" field through WithError so logrus formatters
// render it under their configured error key.
func (l Logger) entry(f logging.Fields) *logrus.Entry {
	f = logging.Sanitize(f)
	e := l.e
	if err, ok := f["err"].(error); ok {
		e = e.WithError(err)
	}
	if len(f) == 0 {
		return e
	}
	fields := make(logrus.Fields, len(f))
	for k, v := range f {
		if k == "err" {
			if _, ok := v.(error); ok {
				continue
			}
		}
		fields[k] = v
	}
	return e.WithFields(fields)
}
