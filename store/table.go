package store

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/catalogcache/codec"
	"github.com/unkn0wn-root/catalogcache/logging"
)

// Table is a typed view over a Store: values of V under keys of one kind.
type Table[V any] struct {
	s     *Store
	codec c.Codec[V]
	scope *Scope // nil => writes go to the current namespace
}

func NewTable[V any](s *Store, codec c.Codec[V]) *Table[V] {
	return &Table[V]{s: s, codec: codec}
}

// Bind returns a view of t whose writes go through sc. Reads are unchanged.
func (t *Table[V]) Bind(sc Scope) *Table[V] {
	return &Table[V]{s: t.s, codec: t.codec, scope: &sc}
}

// Get decodes the value under key. A value that no longer decodes (codec
// switched, foreign write) is dropped and reported as a miss.
func (t *Table[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, storageKey, ok, err := t.s.get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := t.codec.Decode(raw)
	if err != nil {
		t.s.heal(ctx, storageKey, "value_decode")
		t.s.log.Debug("cached value failed to decode", logging.Fields{"key": key, "err": err})
		return zero, false, nil
	}
	return v, true, nil
}

func (t *Table[V]) Set(ctx context.Context, key string, v V, ttl time.Duration) error {
	if !t.s.enabled {
		return nil
	}
	b, err := t.codec.Encode(v)
	if err != nil {
		return err
	}
	if t.scope != nil {
		return t.scope.Set(ctx, key, b, ttl)
	}
	return t.s.Set(ctx, key, b, ttl)
}
