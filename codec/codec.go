// Package codec converts cached values to and from bytes.
// Catalog entities use a codec chosen by name (see Named); artwork records
// use the protobuf codec over wrapperspb.StringValue.
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names accepted by Named.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
	NameCBOR    = "cbor"
)

// Named returns the codec registered under name. An empty name selects msgpack.
// maxDecode > 0 wraps the codec in a LimitCodec.
func Named[V any](name string, maxDecode int) (Codec[V], error) {
	var inner Codec[V]
	switch name {
	case "", NameMsgpack:
		inner = Msgpack[V]{}
	case NameJSON:
		inner = JSON[V]{}
	case NameCBOR:
		c, err := NewCBOR[V]()
		if err != nil {
			return nil, err
		}
		inner = c
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
	if maxDecode > 0 {
		return LimitCodec[V]{Inner: inner, MaxDecode: maxDecode}, nil
	}
	return inner, nil
}
