package subscription

import (
	"github.com/juju/clock"

	"github.com/get-eventually/go-catchup/logger"
)

// DefaultQueueCapacity is the default number of notifications that can be
// buffered by an Orchestrator before suspending the upstream delivery.
const DefaultQueueCapacity = 32

type config struct {
	name          string
	queueCapacity int
	logger        logger.Logger
	clock         clock.Clock
}

func newConfig(options ...Option) config {
	c := config{
		name:          "subscription",
		queueCapacity: DefaultQueueCapacity,
		clock:         clock.WallClock,
	}

	for _, opt := range options {
		opt.apply(&c)
	}

	return c
}

// Option can be used to change the configuration of an Orchestrator.
type Option interface {
	apply(*config)
}

type option func(*config)

func (apply option) apply(c *config) { apply(c) }

// WithName sets the name of the Subscription, used in logs and errors.
func WithName(name string) Option {
	return option(func(c *config) { c.name = name })
}

// WithQueueCapacity sets the number of notifications buffered by the
// Orchestrator. Values lower than 1 are treated as 1, which turns the
// queue into a strict hand-off between the upstream and the event loop.
func WithQueueCapacity(capacity int) Option {
	return option(func(c *config) { c.queueCapacity = max(capacity, 1) })
}

// WithLogger sets the logger used by the Orchestrator and its sessions.
func WithLogger(l logger.Logger) Option {
	return option(func(c *config) { c.logger = l })
}

// WithClock sets the clock used by the checkpoint timers.
// By default, the wall clock is used.
func WithClock(clk clock.Clock) Option {
	return option(func(c *config) { c.clock = clk })
}
