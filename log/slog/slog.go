// Package slog adapts a log/slog logger to logging.Logger.
package slog

import (
	"context"
	stdslog "log/slog"
	"slices"

	"github.com/unkn0wn-root/catalogcache/logging"
)

var _ logging.Logger = Logger{}

type Logger struct{ l *stdslog.Logger }

// New tags every record with the component name.
func New(l *stdslog.Logger, component string) Logger {
	return Logger{l: l.With("component", component)}
}

func (s Logger) Debug(msg string, f logging.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f logging.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f logging.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f logging.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(lvl stdslog.Level, msg string, f logging.Fields) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, lvl) {
		return
	}
	s.l.LogAttrs(ctx, lvl, msg, attrs(f)...)
}

// attrs sorts keys so text output is stable between runs.
func attrs(f logging.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	f = logging.Sanitize(f)
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]stdslog.Attr, 0, len(keys))
	for _, k := range keys {
		out = append(out, stdslog.Any(k, f[k]))
	}
	return out
}
