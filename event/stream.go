package event

import (
	"context"
	"fmt"

	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/version"
)

// StreamToSlice synchronously subscribes to the Stream from the specified Position,
// and collects all the Domain Events delivered until the subscription
// has caught up with the Event Store.
func StreamToSlice(ctx context.Context, stream Stream, from Position) ([]Persisted, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collector := &sliceCollector{
		live:    make(chan struct{}),
		dropped: make(chan error, 1),
	}

	handle, err := stream.Subscribe(ctx, collector, from)
	if err != nil {
		return nil, fmt.Errorf("event.StreamToSlice: failed to subscribe: %w", err)
	}

	defer handle.Close()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("event.StreamToSlice: failed to collect events: %w", ctx.Err())
	case err := <-collector.dropped:
		return nil, fmt.Errorf("event.StreamToSlice: subscription dropped: %w", err)
	case <-collector.live:
		return collector.events, nil
	}
}

type sliceCollector struct {
	events  []Persisted
	live    chan struct{}
	dropped chan error
}

func (sc *sliceCollector) OnCatchingUp(context.Context) error { return nil }

func (sc *sliceCollector) OnEvent(_ context.Context, event Persisted, _ version.SequenceNumber) error {
	select {
	case <-sc.live:
		return subscription.ErrClosed
	default:
		sc.events = append(sc.events, event)
		return nil
	}
}

func (sc *sliceCollector) OnLive(context.Context) error {
	close(sc.live)
	return nil
}

func (sc *sliceCollector) OnSubscriptionDropped(_ context.Context, reason subscription.DropReason, err error) error {
	if err == nil {
		err = subscription.ErrClosed
	}

	select {
	case sc.dropped <- fmt.Errorf("%s: %w", reason, err):
	default:
	}

	return nil
}
