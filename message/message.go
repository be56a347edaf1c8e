// Package message holds the payload and envelope types shared by the
// event streams, serdes and consumers of a catch-up subscription.
package message

import "maps"

// Message is a payload carried by a stream.
//
// The name identifies the payload type, and serdes use it to
// pick the right decoder when reading a stream back.
type Message interface {
	Name() string
}

// Metadata is a set of string attributes travelling next to a Message,
// such as correlation identifiers or transport headers.
type Metadata map[string]string

// With sets key to value, allocating the map if m is nil,
// and returns the resulting Metadata.
func (m Metadata) With(key, value string) Metadata {
	if m == nil {
		return Metadata{key: value}
	}

	m[key] = value

	return m
}

// Merge copies every entry of other into m, overriding existing keys.
// A nil m yields other itself.
func (m Metadata) Merge(other Metadata) Metadata {
	if m == nil {
		return other
	}

	maps.Copy(m, other)

	return m
}

// Envelope pairs a typed Message with its Metadata.
type Envelope[T Message] struct {
	Message  T
	Metadata Metadata
}

// GenericEnvelope is an Envelope whose payload type is erased,
// used by stores and streams that handle any Message.
type GenericEnvelope Envelope[Message]

// ToGenericEnvelope erases the payload type of the Envelope.
func (e Envelope[T]) ToGenericEnvelope() GenericEnvelope {
	return GenericEnvelope{Message: e.Message, Metadata: e.Metadata}
}
