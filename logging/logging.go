// Package logging defines the small leveled logger every catalogcache
// component accepts. Adapters for common stacks live under log/.
package logging

import "strings"

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger. Provide an adapter around your logging stack.
// Components substitute NopLogger when none is given.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// OrNop returns l, or NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// With returns a Logger that merges base into every call's fields.
// Call-site fields win on key collision.
func With(l Logger, base Fields) Logger {
	if len(base) == 0 {
		return OrNop(l)
	}
	return withLogger{l: OrNop(l), base: base}
}

type withLogger struct {
	l    Logger
	base Fields
}

func (w withLogger) merge(f Fields) Fields {
	out := make(Fields, len(w.base)+len(f))
	for k, v := range w.base {
		out[k] = v
	}
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (w withLogger) Debug(msg string, f Fields) { w.l.Debug(msg, w.merge(f)) }
func (w withLogger) Info(msg string, f Fields)  { w.l.Info(msg, w.merge(f)) }
func (w withLogger) Warn(msg string, f Fields)  { w.l.Warn(msg, w.merge(f)) }
func (w withLogger) Error(msg string, f Fields) { w.l.Error(msg, w.merge(f)) }

// sensitive field names whose values never reach a log sink. Upstream
// credentials and the metadata API key travel through settings structs that
// are sometimes logged whole.
var sensitive = []string{"password", "api_key", "apikey", "token", "secret"}

const redacted = "[redacted]"

// Sanitize returns f with sensitive values masked. f itself is not modified;
// it is returned as is when nothing needs masking.
func Sanitize(f Fields) Fields {
	var out Fields
	for k := range f {
		if !isSensitive(k) {
			continue
		}
		if out == nil {
			out = make(Fields, len(f))
			for k2, v := range f {
				out[k2] = v
			}
		}
		out[k] = redacted
	}
	if out == nil {
		return f
	}
	return out
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitive {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
