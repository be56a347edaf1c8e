package serde

import (
	"errors"
	"fmt"
	"sync"

	"github.com/get-eventually/go-catchup/message"
)

// ErrUnknownMessage is returned by a Registry when trying to serialize or deserialize
// a Message with a name that has not been registered.
var ErrUnknownMessage = errors.New("serde.Registry: unknown message name")

// Registry serializes Messages of different types to the same destination type,
// using the Serde registered for the Message name.
//
// Since the destination type does not carry the Message name, the name must be
// stored alongside the serialized data, and provided back to Deserialize.
//
// Registry is thread-safe.
type Registry[Dst any] struct {
	mx     sync.RWMutex
	serdes map[string]Serde[message.Message, Dst]
}

// NewRegistry returns a new, empty Registry.
func NewRegistry[Dst any]() *Registry[Dst] {
	return &Registry[Dst]{
		serdes: make(map[string]Serde[message.Message, Dst]),
	}
}

// Register binds the typed Serde to the specified Message names in the Registry.
//
// Registering the same name twice replaces the previous Serde.
func Register[T message.Message, Dst any](registry *Registry[Dst], serde Serde[T, Dst], names ...string) {
	untyped := Fuse[message.Message, Dst](
		SerializerFunc[message.Message, Dst](func(msg message.Message) (Dst, error) {
			var zeroValue Dst

			typed, ok := msg.(T)
			if !ok {
				return zeroValue, fmt.Errorf("serde.Registry: unexpected message type %T for '%s'", msg, msg.Name())
			}

			return serde.Serialize(typed)
		}),
		DeserializerFunc[message.Message, Dst](func(dst Dst) (message.Message, error) {
			return serde.Deserialize(dst)
		}),
	)

	registry.mx.Lock()
	defer registry.mx.Unlock()

	for _, name := range names {
		registry.serdes[name] = untyped
	}
}

func (r *Registry[Dst]) lookup(name string) (Serde[message.Message, Dst], error) {
	r.mx.RLock()
	defer r.mx.RUnlock()

	serde, ok := r.serdes[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownMessage, name)
	}

	return serde, nil
}

// Serialize serializes the Message using the Serde registered for its name.
func (r *Registry[Dst]) Serialize(msg message.Message) (Dst, error) {
	var zeroValue Dst

	serde, err := r.lookup(msg.Name())
	if err != nil {
		return zeroValue, err
	}

	dst, err := serde.Serialize(msg)
	if err != nil {
		return zeroValue, fmt.Errorf("serde.Registry: failed to serialize '%s': %w", msg.Name(), err)
	}

	return dst, nil
}

// Deserialize deserializes the data into a Message, using the Serde registered
// for the provided name.
func (r *Registry[Dst]) Deserialize(name string, dst Dst) (message.Message, error) {
	serde, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	msg, err := serde.Deserialize(dst)
	if err != nil {
		return nil, fmt.Errorf("serde.Registry: failed to deserialize '%s': %w", name, err)
	}

	return msg, nil
}
