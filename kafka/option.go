package kafka

import "github.com/get-eventually/go-catchup/logger"

// Option can be used to change the configuration of an object.
type Option[T any] interface {
	apply(T)
}

type option[T any] func(T)

func newOption[T any](f func(T)) option[T] { return option[T](f) }

func (apply option[T]) apply(val T) { apply(val) }

// WithLogger sets the logger used by the Stream subscriptions.
func WithLogger(l logger.Logger) Option[*Stream] {
	return newOption(func(s *Stream) { s.logger = l })
}
