package postgres

import (
	"time"

	"github.com/juju/clock"

	"github.com/get-eventually/go-catchup/logger"
)

// Option can be used to change the configuration of an object.
type Option[T any] interface {
	apply(T)
}

type option[T any] func(T)

func newOption[T any](f func(T)) option[T] { return option[T](f) }

func (apply option[T]) apply(val T) { apply(val) }

const (
	// DefaultBatchSize is the default number of Domain Events fetched
	// by a subscription with a single query.
	DefaultBatchSize = 256
	// DefaultMinPollInterval is the default interval between queries
	// of a live subscription, right after receiving new Domain Events.
	DefaultMinPollInterval = 50 * time.Millisecond
	// DefaultMaxPollInterval is the maximum interval between queries
	// of a live subscription, when no new Domain Events are committed.
	DefaultMaxPollInterval = time.Second
)

// WithBatchSize sets the number of Domain Events fetched by a subscription
// with a single query.
func WithBatchSize(size int) Option[*EventStore] {
	return newOption(func(es *EventStore) { es.batchSize = max(size, 1) })
}

// WithPollInterval sets the bounds of the exponential backoff used by live
// subscriptions to poll for new Domain Events.
func WithPollInterval(minInterval, maxInterval time.Duration) Option[*EventStore] {
	return newOption(func(es *EventStore) {
		es.minPollInterval = minInterval
		es.maxPollInterval = max(minInterval, maxInterval)
	})
}

// WithLogger sets the logger used by the EventStore subscriptions.
func WithLogger(l logger.Logger) Option[*EventStore] {
	return newOption(func(es *EventStore) { es.logger = l })
}

// WithClock sets the clock used by subscriptions to wait between queries.
func WithClock(clk clock.Clock) Option[*EventStore] {
	return newOption(func(es *EventStore) { es.clock = clk })
}
