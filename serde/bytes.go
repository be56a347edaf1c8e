package serde

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Bytes is a Serde to and from byte slices, using a pair of
// marshal and unmarshal functions of some encoding format.
//
// Use NewJSON, NewProto or NewProtoJSON to create one.
type Bytes[T any] struct {
	format    string
	factory   func() T
	marshal   func(T) ([]byte, error)
	unmarshal func([]byte, *T) error
}

// Serialize implements the Serializer interface.
func (b Bytes[T]) Serialize(value T) ([]byte, error) {
	data, err := b.marshal(value)
	if err != nil {
		return nil, fmt.Errorf("serde.%s: failed to serialize %T: %w", b.format, value, err)
	}

	return data, nil
}

// Deserialize implements the Deserializer interface.
func (b Bytes[T]) Deserialize(data []byte) (T, error) {
	value := b.factory()

	if err := b.unmarshal(data, &value); err != nil {
		var zero T
		return zero, fmt.Errorf("serde.%s: failed to deserialize %T: %w", b.format, value, err)
	}

	return value, nil
}

// NewJSON returns a Serde of T values to and from JSON.
//
// The factory creates the value to deserialize into, which is required
// to allocate pointer types.
func NewJSON[T any](factory func() T) Bytes[T] {
	return Bytes[T]{
		format:    "JSON",
		factory:   factory,
		marshal:   func(value T) ([]byte, error) { return json.Marshal(value) },
		unmarshal: func(data []byte, value *T) error { return json.Unmarshal(data, value) },
	}
}

// NewProto returns a Serde of Protobuf messages to and from their binary encoding.
func NewProto[T proto.Message](factory func() T) Bytes[T] {
	return Bytes[T]{
		format:    "Proto",
		factory:   factory,
		marshal:   func(msg T) ([]byte, error) { return proto.Marshal(msg) },
		unmarshal: func(data []byte, msg *T) error { return proto.Unmarshal(data, *msg) },
	}
}

// NewProtoJSON returns a Serde of Protobuf messages to and from their
// canonical JSON encoding.
func NewProtoJSON[T proto.Message](factory func() T) Bytes[T] {
	return Bytes[T]{
		format:    "ProtoJSON",
		factory:   factory,
		marshal:   func(msg T) ([]byte, error) { return protojson.Marshal(msg) },
		unmarshal: func(data []byte, msg *T) error { return protojson.Unmarshal(data, *msg) },
	}
}
