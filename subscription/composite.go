package subscription

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

var _ Consumer[any, int] = &Composite[any, int]{}

// errMemberSkipped carries a member's Skip resolution up to the session
// wrapping the Composite, which resolves it with Skip in turn.
var errMemberSkipped = errors.New("subscription.Composite: event skipped by a member")

type compositeMember[E, P any] struct {
	name     string
	consumer Consumer[E, P]
	start    Position[P]
}

// Composite combines multiple Consumers behind a single Consumer,
// so that they can share the same session of an Orchestrator.
//
// Members are called concurrently, and must not share mutable state.
// Each member resolves its own event processing errors: a failure reaching
// the Composite itself is resolved with Abort. An event no member processed
// and at least one member skipped is skipped by the Composite too.
type Composite[E, P any] struct {
	compare Comparator[P]
	members []*compositeMember[E, P]
}

// NewComposite returns a new Composite Consumer of the provided members.
func NewComposite[E, P any](compare Comparator[P], members ...Consumer[E, P]) *Composite[E, P] {
	c := &Composite[E, P]{
		compare: compare,
		members: make([]*compositeMember[E, P], 0, len(members)),
	}

	for i, member := range members {
		c.members = append(c.members, &compositeMember[E, P]{
			name:     fmt.Sprintf("composite[%d]", i),
			consumer: member,
		})
	}

	return c
}

func (c *Composite[E, P]) each(f func(i int, m *compositeMember[E, P]) error) error {
	var group errgroup.Group

	for i, m := range c.members {
		group.Go(func() error { return f(i, m) })
	}

	return group.Wait()
}

// CatchUpCheckpointFrequency returns the most frequent of the members' catch-up policies.
func (c *Composite[E, P]) CatchUpCheckpointFrequency() CheckpointFrequency {
	return c.tightest(Consumer[E, P].CatchUpCheckpointFrequency)
}

// LiveCheckpointFrequency returns the most frequent of the members' live policies.
func (c *Composite[E, P]) LiveCheckpointFrequency() CheckpointFrequency {
	return c.tightest(Consumer[E, P].LiveCheckpointFrequency)
}

func (c *Composite[E, P]) tightest(frequency func(Consumer[E, P]) CheckpointFrequency) CheckpointFrequency {
	var result CheckpointFrequency

	for _, m := range c.members {
		f := frequency(m.consumer)

		if f.events > 0 && (result.events == 0 || f.events < result.events) {
			result.events = f.events
		}

		if f.interval > 0 && (result.interval == 0 || f.interval < result.interval) {
			result.interval = f.interval
		}
	}

	return result
}

// OnStarting starts all the members, and returns the earliest of their positions.
func (c *Composite[E, P]) OnStarting(ctx context.Context) (Position[P], error) {
	group, ctx := errgroup.WithContext(ctx)

	for _, m := range c.members {
		group.Go(func() (err error) {
			m.start, err = m.consumer.OnStarting(ctx)
			return err
		})
	}

	if err := group.Wait(); err != nil {
		return Position[P]{}, fmt.Errorf("subscription.Composite: failed to start member: %w", err)
	}

	positions := make([]Position[P], 0, len(c.members))
	for _, m := range c.members {
		positions = append(positions, m.start)
	}

	return c.compare.Earliest(positions...), nil
}

// OnCatchingUp implements the Consumer interface.
func (c *Composite[E, P]) OnCatchingUp(ctx context.Context) error {
	return c.each(func(_ int, m *compositeMember[E, P]) error { return m.consumer.OnCatchingUp(ctx) })
}

// OnEvent offers the event to all the members that started before it.
// The event is Processed if at least one member has processed it.
// Otherwise, if a member skipped it, OnEvent fails with an error
// that OnEventError resolves with Skip.
func (c *Composite[E, P]) OnEvent(ctx context.Context, event E, position P) (Result, error) {
	outcomes := make([]outcome, len(c.members))

	err := c.each(func(i int, m *compositeMember[E, P]) (err error) {
		if !c.compare.IsAfter(position, m.start) {
			return nil
		}

		outcomes[i], err = deliver(ctx, m.name, m.consumer, event, position)

		return err
	})
	if err != nil {
		return Ignored, err
	}

	skipped := false

	for _, o := range outcomes {
		switch o {
		case outcomeProcessed:
			return Processed, nil
		case outcomeSkipped:
			skipped = true
		case outcomeIgnored:
		}
	}

	if skipped {
		return Ignored, errMemberSkipped
	}

	return Ignored, nil
}

// OnCheckpoint checkpoints all the members that started before the position.
func (c *Composite[E, P]) OnCheckpoint(ctx context.Context, position P) error {
	return c.each(func(_ int, m *compositeMember[E, P]) error {
		if !c.compare.IsAfter(position, m.start) {
			return nil
		}

		return m.consumer.OnCheckpoint(ctx, position)
	})
}

// OnLive implements the Consumer interface.
func (c *Composite[E, P]) OnLive(ctx context.Context) error {
	return c.each(func(_ int, m *compositeMember[E, P]) error { return m.consumer.OnLive(ctx) })
}

// OnEventError returns Skip for events skipped by a member, and Abort
// otherwise, as members have already resolved their own errors.
func (c *Composite[E, P]) OnEventError(_ context.Context, _ E, _ P, err error) (Resolution, error) {
	if errors.Is(err, errMemberSkipped) {
		return Skip, nil
	}

	return Abort, nil
}

// OnSubscriptionDropped implements the Consumer interface.
func (c *Composite[E, P]) OnSubscriptionDropped(ctx context.Context, reason DropReason, err error) error {
	return c.each(func(_ int, m *compositeMember[E, P]) error {
		return m.consumer.OnSubscriptionDropped(ctx, reason, err)
	})
}
