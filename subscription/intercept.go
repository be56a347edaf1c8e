package subscription

import "context"

// Interceptor runs cross-cutting logic around the Consumer lifecycle calls.
//
// Every method receives the continuation to call in order to move on with
// the next Interceptor in the chain, or the target Consumer. Interceptors
// can run logic before and after the continuation, change its arguments
// and results, or not call it at all.
//
// Embed NopInterceptor to only implement the methods of interest.
type Interceptor[E, P any] interface {
	InterceptStarting(
		ctx context.Context,
		next func(ctx context.Context) (Position[P], error),
	) (Position[P], error)

	InterceptCatchingUp(ctx context.Context, next func(ctx context.Context) error) error

	InterceptEvent(
		ctx context.Context,
		event E,
		position P,
		next func(ctx context.Context, event E, position P) (Result, error),
	) (Result, error)

	InterceptCheckpoint(ctx context.Context, position P, next func(ctx context.Context, position P) error) error

	InterceptLive(ctx context.Context, next func(ctx context.Context) error) error

	InterceptEventError(
		ctx context.Context,
		event E,
		position P,
		err error,
		next func(ctx context.Context, event E, position P, err error) (Resolution, error),
	) (Resolution, error)

	InterceptSubscriptionDropped(
		ctx context.Context,
		reason DropReason,
		err error,
		next func(ctx context.Context, reason DropReason, err error) error,
	) error
}

// NopInterceptor calls the continuation for every lifecycle call.
type NopInterceptor[E, P any] struct{}

// InterceptStarting calls the continuation.
func (NopInterceptor[E, P]) InterceptStarting(
	ctx context.Context,
	next func(ctx context.Context) (Position[P], error),
) (Position[P], error) {
	return next(ctx)
}

// InterceptCatchingUp calls the continuation.
func (NopInterceptor[E, P]) InterceptCatchingUp(ctx context.Context, next func(ctx context.Context) error) error {
	return next(ctx)
}

// InterceptEvent calls the continuation.
func (NopInterceptor[E, P]) InterceptEvent(
	ctx context.Context,
	event E,
	position P,
	next func(ctx context.Context, event E, position P) (Result, error),
) (Result, error) {
	return next(ctx, event, position)
}

// InterceptCheckpoint calls the continuation.
func (NopInterceptor[E, P]) InterceptCheckpoint(
	ctx context.Context,
	position P,
	next func(ctx context.Context, position P) error,
) error {
	return next(ctx, position)
}

// InterceptLive calls the continuation.
func (NopInterceptor[E, P]) InterceptLive(ctx context.Context, next func(ctx context.Context) error) error {
	return next(ctx)
}

// InterceptEventError calls the continuation.
func (NopInterceptor[E, P]) InterceptEventError(
	ctx context.Context,
	event E,
	position P,
	err error,
	next func(ctx context.Context, event E, position P, err error) (Resolution, error),
) (Resolution, error) {
	return next(ctx, event, position, err)
}

// InterceptSubscriptionDropped calls the continuation.
func (NopInterceptor[E, P]) InterceptSubscriptionDropped(
	ctx context.Context,
	reason DropReason,
	err error,
	next func(ctx context.Context, reason DropReason, err error) error,
) error {
	return next(ctx, reason, err)
}

// Intercept wraps the target Consumer with the provided Interceptors.
//
// Interceptors are chained in order: the first one is the outermost,
// and calls the second one as its continuation, and so on until the target.
func Intercept[E, P any](target Consumer[E, P], interceptors ...Interceptor[E, P]) Consumer[E, P] {
	consumer := target

	for i := len(interceptors) - 1; i >= 0; i-- {
		consumer = &intercepted[E, P]{
			interceptor: interceptors[i],
			next:        consumer,
		}
	}

	return consumer
}

type intercepted[E, P any] struct {
	interceptor Interceptor[E, P]
	next        Consumer[E, P]
}

func (ic *intercepted[E, P]) CatchUpCheckpointFrequency() CheckpointFrequency {
	return ic.next.CatchUpCheckpointFrequency()
}

func (ic *intercepted[E, P]) LiveCheckpointFrequency() CheckpointFrequency {
	return ic.next.LiveCheckpointFrequency()
}

func (ic *intercepted[E, P]) OnStarting(ctx context.Context) (Position[P], error) {
	return ic.interceptor.InterceptStarting(ctx, ic.next.OnStarting)
}

func (ic *intercepted[E, P]) OnCatchingUp(ctx context.Context) error {
	return ic.interceptor.InterceptCatchingUp(ctx, ic.next.OnCatchingUp)
}

func (ic *intercepted[E, P]) OnEvent(ctx context.Context, event E, position P) (Result, error) {
	return ic.interceptor.InterceptEvent(ctx, event, position, ic.next.OnEvent)
}

func (ic *intercepted[E, P]) OnCheckpoint(ctx context.Context, position P) error {
	return ic.interceptor.InterceptCheckpoint(ctx, position, ic.next.OnCheckpoint)
}

func (ic *intercepted[E, P]) OnLive(ctx context.Context) error {
	return ic.interceptor.InterceptLive(ctx, ic.next.OnLive)
}

func (ic *intercepted[E, P]) OnEventError(ctx context.Context, event E, position P, err error) (Resolution, error) {
	return ic.interceptor.InterceptEventError(ctx, event, position, err, ic.next.OnEventError)
}

func (ic *intercepted[E, P]) OnSubscriptionDropped(ctx context.Context, reason DropReason, err error) error {
	return ic.interceptor.InterceptSubscriptionDropped(ctx, reason, err, ic.next.OnSubscriptionDropped)
}
