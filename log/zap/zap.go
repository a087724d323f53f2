// Package zap adapts a zap logger to logging.Logger.
package zap

import (
	"time"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/catalogcache/logging"
)

var _ logging.Logger = Logger{}

type Logger struct{ l *zap.Logger }

// New names the logger after component.
func New(l *zap.Logger, component string) Logger {
	return Logger{l: l.Named(component)}
}

func (z Logger) Debug(msg string, f logging.Fields) { z.l.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f logging.Fields)  { z.l.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f logging.Fields)  { z.l.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f logging.Fields) { z.l.Error(msg, fields(f)...) }

func fields(f logging.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	f = logging.Sanitize(f)
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		switch v := v.(type) {
		case error:
			out = append(out, zap.NamedError(k, v))
		case time.Duration:
			out = append(out, zap.Duration(k, v))
		case string:
			out = append(out, zap.String(k, v))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
