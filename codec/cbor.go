package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR serializes entities with fxamacker/cbor using Core Deterministic
// encoding (RFC 8949), so an unchanged catalog re-encodes to identical bytes
// on every refresh. Construct with NewCBOR.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// maxEpisodes bounds array and map lengths on decode. The largest real
// entity is a season's episode list.
const maxEpisodes = 65536

func NewCBOR[V any]() (CBOR[V], error) {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{
		MaxArrayElements: maxEpisodes,
		MaxMapPairs:      maxEpisodes,
		// fields unknown to this build are ignored, so an older process can
		// read entries a newer one wrote to a shared redis
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
