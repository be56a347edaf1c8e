package serde

import "fmt"

// Serializer maps a Src value into its Dst representation.
type Serializer[Src, Dst any] interface {
	Serialize(src Src) (Dst, error)
}

// Deserializer maps a Dst representation back into a Src value.
type Deserializer[Src, Dst any] interface {
	Deserialize(dst Dst) (Src, error)
}

// Serde can both serialize and deserialize between Src and Dst.
type Serde[Src, Dst any] interface {
	Serializer[Src, Dst]
	Deserializer[Src, Dst]
}

// SerializerFunc is a functional implementation of the Serializer interface.
type SerializerFunc[Src, Dst any] func(src Src) (Dst, error)

// Serialize implements the Serializer interface.
func (fn SerializerFunc[Src, Dst]) Serialize(src Src) (Dst, error) { return fn(src) }

// DeserializerFunc is a functional implementation of the Deserializer interface.
type DeserializerFunc[Src, Dst any] func(dst Dst) (Src, error)

// Deserialize implements the Deserializer interface.
func (fn DeserializerFunc[Src, Dst]) Deserialize(dst Dst) (Src, error) { return fn(dst) }

// Fused is a Serde made of independent Serializer and Deserializer implementations.
type Fused[Src, Dst any] struct {
	Serializer[Src, Dst]
	Deserializer[Src, Dst]
}

// Fuse returns a Serde using the provided Serializer and Deserializer.
func Fuse[Src, Dst any](serializer Serializer[Src, Dst], deserializer Deserializer[Src, Dst]) Fused[Src, Dst] {
	return Fused[Src, Dst]{Serializer: serializer, Deserializer: deserializer}
}

// Chained is a Serde going from Src to Dst through an intermediate Mid
// representation, like a domain type mapped to a DTO and then to JSON.
type Chained[Src, Mid, Dst any] struct {
	inner Serde[Src, Mid]
	outer Serde[Mid, Dst]
}

// Chain returns a Serde applying inner first when serializing,
// and outer first when deserializing.
func Chain[Src, Mid, Dst any](inner Serde[Src, Mid], outer Serde[Mid, Dst]) Chained[Src, Mid, Dst] {
	return Chained[Src, Mid, Dst]{inner: inner, outer: outer}
}

// Serialize implements the Serializer interface.
func (c Chained[Src, Mid, Dst]) Serialize(src Src) (Dst, error) {
	var zero Dst

	mid, err := c.inner.Serialize(src)
	if err != nil {
		return zero, fmt.Errorf("serde.Chained: failed to serialize to intermediate type: %w", err)
	}

	dst, err := c.outer.Serialize(mid)
	if err != nil {
		return zero, fmt.Errorf("serde.Chained: failed to serialize intermediate type: %w", err)
	}

	return dst, nil
}

// Deserialize implements the Deserializer interface.
func (c Chained[Src, Mid, Dst]) Deserialize(dst Dst) (Src, error) {
	var zero Src

	mid, err := c.outer.Deserialize(dst)
	if err != nil {
		return zero, fmt.Errorf("serde.Chained: failed to deserialize intermediate type: %w", err)
	}

	src, err := c.inner.Deserialize(mid)
	if err != nil {
		return zero, fmt.Errorf("serde.Chained: failed to deserialize from intermediate type: %w", err)
	}

	return src, nil
}
