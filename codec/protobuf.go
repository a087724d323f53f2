package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Protobuf encodes a proto message type. newMsg allocates the message a
// Decode fills, since a typed nil T cannot be unmarshalled into.
type Protobuf[T proto.Message] struct {
	newMsg func() T
}

var protoOpts = proto.MarshalOptions{Deterministic: true}

func NewProtobuf[T proto.Message](newMsg func() T) Protobuf[T] {
	return Protobuf[T]{newMsg: newMsg}
}

// StringValue is the artwork record codec: one image URL per series. An
// empty wrapper is a valid record and decodes to "".
func StringValue() Protobuf[*wrapperspb.StringValue] {
	return NewProtobuf(func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) })
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) { return protoOpts.Marshal(v) }

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.newMsg()
	if err := proto.Unmarshal(b, m); err != nil {
		var zero T
		return zero, err
	}
	return m, nil
}
