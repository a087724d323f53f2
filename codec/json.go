package codec

import "encoding/json"

// JSON uses encoding/json. Entities keep their upstream json tags, so the
// cached form is readable with redis-cli when debugging.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
