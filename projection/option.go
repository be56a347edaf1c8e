package projection

import (
	"github.com/get-eventually/go-catchup/logger"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/subscription/checkpoint"
)

// Option can be used to change the configuration of an object.
type Option[T any] interface {
	apply(T)
}

type option[T any] func(T)

func newOption[T any](f func(T)) option[T] { return option[T](f) }

func (apply option[T]) apply(val T) { apply(val) }

// WithCheckpointer sets the Checkpointer used by the Consumer to resume
// and save its progress. By default, checkpoint.NopCheckpointer is used.
func WithCheckpointer(checkpointer checkpoint.Checkpointer) Option[*Consumer] {
	return newOption(func(c *Consumer) { c.checkpointer = checkpointer })
}

// WithCatchUpCheckpointFrequency sets the checkpoint frequency used while catching up.
func WithCatchUpCheckpointFrequency(frequency subscription.CheckpointFrequency) Option[*Consumer] {
	return newOption(func(c *Consumer) { c.catchUp = frequency })
}

// WithLiveCheckpointFrequency sets the checkpoint frequency used once live.
func WithLiveCheckpointFrequency(frequency subscription.CheckpointFrequency) Option[*Consumer] {
	return newOption(func(c *Consumer) { c.live = frequency })
}

// WithErrorPolicy sets the ErrorPolicy used to resolve event processing failures.
// By default, AbortOnError is used.
func WithErrorPolicy(policy ErrorPolicy) Option[*Consumer] {
	return newOption(func(c *Consumer) { c.errorPolicy = policy })
}

// WithLogger sets the logger used by the Consumer.
func WithLogger(l logger.Logger) Option[*Consumer] {
	return newOption(func(c *Consumer) { c.logger = l })
}
