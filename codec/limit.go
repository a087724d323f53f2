package codec

import "fmt"

// LimitCodec wraps another codec to enforce a maximum payload size at Decode
// time. A shared Redis backend can hold values written by other processes,
// so the store never decodes more than MaxDecode bytes.
// If MaxDecode <= 0, size limiting is disabled.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
