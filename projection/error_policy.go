package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/juju/clock"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/version"
)

// ErrorPolicy decides how a Consumer should move forward when processing an event fails.
type ErrorPolicy interface {
	Resolve(ctx context.Context, evt event.Persisted, err error) (subscription.Resolution, error)
}

// ErrorPolicyFunc is a functional implementation of the ErrorPolicy interface.
type ErrorPolicyFunc func(ctx context.Context, evt event.Persisted, err error) (subscription.Resolution, error)

// Resolve implements the ErrorPolicy interface.
func (fn ErrorPolicyFunc) Resolve(
	ctx context.Context,
	evt event.Persisted,
	err error,
) (subscription.Resolution, error) {
	return fn(ctx, evt, err)
}

// Always returns an ErrorPolicy always resolving failures the same way.
func Always(resolution subscription.Resolution) ErrorPolicy {
	return ErrorPolicyFunc(func(context.Context, event.Persisted, error) (subscription.Resolution, error) {
		return resolution, nil
	})
}

// Common ErrorPolicy values.
var (
	AbortOnError = Always(subscription.Abort)
	SkipOnError  = Always(subscription.Skip)
)

// Default values used by a RetryPolicy, if not specified.
const (
	DefaultMaxRetries      = 5
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
)

var _ ErrorPolicy = new(RetryPolicy)

// RetryPolicy is an ErrorPolicy that retries failed events with an exponential backoff,
// up to a maximum number of retries per event, after which the Fallback resolution is used.
//
// RetryPolicy keeps track of the retries of the last failed event, and must not
// be shared between different Consumers.
type RetryPolicy struct {
	maxRetries uint64
	fallback   subscription.Resolution
	newBackOff func() backoff.BackOff
	clock      clock.Clock

	current version.SequenceNumber
	backOff backoff.BackOff
}

// NewRetryPolicy returns a new RetryPolicy, using DefaultMaxRetries and an
// exponential backoff between DefaultInitialInterval and DefaultMaxInterval.
func NewRetryPolicy(options ...Option[*RetryPolicy]) *RetryPolicy {
	p := &RetryPolicy{
		maxRetries: DefaultMaxRetries,
		fallback:   subscription.Abort,
		clock:      clock.WallClock,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = DefaultInitialInterval
			b.MaxInterval = DefaultMaxInterval
			b.MaxElapsedTime = 0

			return b
		},
	}

	for _, opt := range options {
		opt.apply(p)
	}

	return p
}

// WithMaxRetries sets the maximum number of retries per event.
func WithMaxRetries(n uint64) Option[*RetryPolicy] {
	return newOption(func(p *RetryPolicy) { p.maxRetries = n })
}

// WithFallback sets the resolution used once the retries are exhausted,
// either subscription.Skip or subscription.Abort.
func WithFallback(resolution subscription.Resolution) Option[*RetryPolicy] {
	return newOption(func(p *RetryPolicy) { p.fallback = resolution })
}

// WithBackOff sets the factory of the backoff strategy used between retries.
func WithBackOff(factory func() backoff.BackOff) Option[*RetryPolicy] {
	return newOption(func(p *RetryPolicy) { p.newBackOff = factory })
}

// WithRetryClock sets the clock used to wait between retries.
func WithRetryClock(clk clock.Clock) Option[*RetryPolicy] {
	return newOption(func(p *RetryPolicy) { p.clock = clk })
}

// Resolve waits for the next backoff interval and returns subscription.Retry,
// or returns the fallback resolution if the event has exhausted its retries.
func (p *RetryPolicy) Resolve(
	ctx context.Context,
	evt event.Persisted,
	_ error,
) (subscription.Resolution, error) {
	if p.backOff == nil || p.current != evt.SequenceNumber {
		p.current = evt.SequenceNumber
		p.backOff = backoff.WithMaxRetries(p.newBackOff(), p.maxRetries)
	}

	next := p.backOff.NextBackOff()
	if next == backoff.Stop {
		p.backOff = nil
		return p.fallback, nil
	}

	select {
	case <-ctx.Done():
		return subscription.Abort, fmt.Errorf("projection.RetryPolicy: failed to wait before retrying: %w", ctx.Err())
	case <-p.clock.After(next):
		return subscription.Retry, nil
	}
}
