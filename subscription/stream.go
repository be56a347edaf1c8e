package subscription

import "context"

// Subscriber receives the notifications of an upstream subscription.
//
// Stream implementations call these methods sequentially, in the order
// the events have been committed upstream. A non-nil error returned by
// any of them means the Subscriber is not accepting notifications anymore,
// and the Stream should stop delivering them.
type Subscriber[E, P any] interface {
	OnCatchingUp(ctx context.Context) error
	OnEvent(ctx context.Context, event E, position P) error
	OnLive(ctx context.Context) error
	OnSubscriptionDropped(ctx context.Context, reason DropReason, err error) error
}

// Handle is the handle of an open upstream subscription.
type Handle interface {
	Close() error
}

// HandleFunc is a functional implementation of the Handle interface.
type HandleFunc func() error

// Close implements the Handle interface.
func (fn HandleFunc) Close() error { return fn() }

// Stream is an upstream source of ordered events, like an Event Store.
//
// Subscribe opens a subscription delivering all events strictly after
// the provided position to the Subscriber, first catching up with the
// historical events, then delivering new events as they are committed.
//
// Subscribe should not block while delivering events: the returned Handle
// is used to stop the subscription and release its resources.
type Stream[E, P any] interface {
	Subscribe(ctx context.Context, subscriber Subscriber[E, P], from Position[P]) (Handle, error)
}

// StreamFunc is a functional implementation of the Stream interface.
type StreamFunc[E, P any] func(ctx context.Context, subscriber Subscriber[E, P], from Position[P]) (Handle, error)

// Subscribe implements the Stream interface.
func (fn StreamFunc[E, P]) Subscribe(
	ctx context.Context,
	subscriber Subscriber[E, P],
	from Position[P],
) (Handle, error) {
	return fn(ctx, subscriber, from)
}
