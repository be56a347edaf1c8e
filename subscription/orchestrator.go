package subscription

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/get-eventually/go-catchup/logger"
)

type state uint8

const (
	stateNotStarted state = iota
	stateStarting
	stateRunning
	stateClosed
)

var _ Subscriber[any, int] = &Orchestrator[any, int]{}

// Orchestrator runs a catch-up Subscription on an upstream Stream on behalf
// of one or more Consumers.
//
// The Orchestrator subscribes to the upstream Stream only once, from the
// earliest position requested by its Consumers, and registers itself as the
// upstream Subscriber: every notification received is enqueued on a bounded
// queue, and processed by a single event loop that fans it out to all Consumers.
//
// Notifications are processed one at a time, in arrival order: the upstream
// delivery is suspended while the queue is full, and the Orchestrator waits
// for all Consumers to handle a notification before moving to the next one.
//
// Use New to create a new Orchestrator, Register to add Consumers, Start to
// open the Subscription and Close to release all its resources.
type Orchestrator[E, P any] struct {
	config

	stream  Stream[E, P]
	compare Comparator[P]
	queue   *queue[E, P]

	mx       sync.Mutex
	state    state
	sessions map[SessionID]*session[E, P]
	order    []*session[E, P]
	ctx      context.Context //nolint:containedctx // The event loop context is shared with upstream writers.
	cancel   context.CancelCauseFunc
	done     chan struct{}
	handle   Handle
	err      error
}

// New returns a new Orchestrator for the provided upstream Stream,
// using the Comparator to order positions.
func New[E, P any](stream Stream[E, P], compare Comparator[P], options ...Option) *Orchestrator[E, P] {
	cfg := newConfig(options...)

	return &Orchestrator[E, P]{
		config:   cfg,
		stream:   stream,
		compare:  compare,
		queue:    newQueue[E, P](cfg.queueCapacity),
		sessions: make(map[SessionID]*session[E, P]),
	}
}

// NewOrdered returns a new Orchestrator for upstream Streams using
// positions that support the ordering operators, like sequence numbers or offsets.
func NewOrdered[E any, P cmp.Ordered](stream Stream[E, P], options ...Option) *Orchestrator[E, P] {
	return New(stream, Ordered[P](), options...)
}

// Register binds a new Consumer to the Orchestrator.
//
// Consumers can only be registered before the Orchestrator is started.
// The name is used to identify the Consumer in logs and errors.
func (o *Orchestrator[E, P]) Register(name string, consumer Consumer[E, P]) (SessionID, error) {
	o.mx.Lock()
	defer o.mx.Unlock()

	if o.state != stateNotStarted {
		return uuid.Nil, fmt.Errorf("subscription.Orchestrator: failed to register consumer '%s': %w", name, ErrAlreadyStarted)
	}

	id := uuid.New()
	s := &session[E, P]{
		id:       id,
		name:     name,
		consumer: consumer,
		compare:  o.compare,
		logger: logger.WithFields(o.logger,
			logger.With("subscription", o.name),
			logger.With("consumer", name),
			logger.With("session", id.String()),
		),
	}

	s.timer = newCheckpointTimer(o.clock, func(ctx context.Context) error {
		return o.enqueue(ctx, func(n *notification[E, P]) {
			n.setCheckpointTimerElapsed(id)
		})
	})

	o.sessions[id] = s
	o.order = append(o.order, s)

	return id, nil
}

// Start opens the Subscription.
//
// All the registered Consumers are asked for their starting position
// concurrently, and the upstream subscription is opened after the earliest one.
//
// The provided context is the cancellation signal of the whole Subscription:
// canceling it stops the event loop. Use Wait to wait for the Subscription to complete.
func (o *Orchestrator[E, P]) Start(ctx context.Context) error {
	o.mx.Lock()

	switch {
	case o.state == stateClosed:
		o.mx.Unlock()
		return fmt.Errorf("subscription.Orchestrator: failed to start: %w", ErrClosed)
	case o.state != stateNotStarted:
		o.mx.Unlock()
		return fmt.Errorf("subscription.Orchestrator: failed to start: %w", ErrAlreadyStarted)
	case len(o.order) == 0:
		o.mx.Unlock()
		return fmt.Errorf("subscription.Orchestrator: failed to start: %w", ErrNoConsumers)
	}

	loopCtx, cancel := context.WithCancelCause(ctx)
	o.state = stateStarting
	o.ctx, o.cancel = loopCtx, cancel
	o.done = make(chan struct{})
	o.mx.Unlock()

	// The event loop runs before subscribing upstream, so that notifications
	// sent during the Subscribe call always find a reader.
	go o.run(loopCtx)

	from, err := o.starting(loopCtx)
	if err != nil {
		return o.abort(fmt.Errorf("subscription.Orchestrator: failed to start consumers: %w", err))
	}

	logger.Info(o.logger, "subscription starting",
		logger.With("subscription", o.name),
		logger.With("from", from.String()),
		logger.With("consumers", len(o.order)),
	)

	handle, err := o.stream.Subscribe(loopCtx, o, from)
	if err != nil {
		return o.abort(fmt.Errorf("subscription.Orchestrator: failed to subscribe upstream: %w", err))
	}

	o.mx.Lock()
	o.handle = handle
	closed := o.state == stateClosed

	if !closed {
		o.state = stateRunning
	}
	o.mx.Unlock()

	if closed {
		// Close has been called while subscribing, and could not close the handle.
		if err := handle.Close(); err != nil {
			return fmt.Errorf("subscription.Orchestrator: failed to close upstream subscription: %w", err)
		}

		return fmt.Errorf("subscription.Orchestrator: failed to start: %w", ErrClosed)
	}

	return nil
}

func (o *Orchestrator[E, P]) starting(ctx context.Context) (Position[P], error) {
	positions := make([]Position[P], len(o.order))
	group, ctx := errgroup.WithContext(ctx)

	for i, s := range o.order {
		group.Go(func() (err error) {
			positions[i], err = s.notifyStarting(ctx)
			return err
		})
	}

	if err := group.Wait(); err != nil {
		return Position[P]{}, err
	}

	return o.compare.Earliest(positions...), nil
}

func (o *Orchestrator[E, P]) abort(err error) error {
	o.cancel(err)
	<-o.done

	return err
}

// Wait blocks until the Subscription completes, which happens either when
// the Subscription gets canceled or closed, or when a fatal error occurs,
// like a Consumer aborting the processing of an event.
//
// The returned error wraps either context.Canceled, or the fatal error.
func (o *Orchestrator[E, P]) Wait(ctx context.Context) error {
	o.mx.Lock()
	done := o.done
	o.mx.Unlock()

	if done == nil {
		return fmt.Errorf("subscription.Orchestrator: failed to wait: %w", ErrNotStarted)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("subscription.Orchestrator: failed to wait: %w", ctx.Err())
	case <-done:
	}

	o.mx.Lock()
	defer o.mx.Unlock()

	return fmt.Errorf("subscription.Orchestrator: subscription '%s' completed: %w", o.name, o.err)
}

// Close stops the event loop, releases all the Consumer sessions and closes
// the upstream subscription. Close is idempotent.
//
// Events processed after the last checkpoint are not checkpointed on Close,
// and will be delivered again on the next Start.
func (o *Orchestrator[E, P]) Close() error {
	o.mx.Lock()

	if o.state == stateClosed {
		o.mx.Unlock()
		return nil
	}

	o.state = stateClosed
	cancel, done, handle := o.cancel, o.done, o.handle
	o.mx.Unlock()

	if cancel != nil {
		cancel(context.Canceled)
		<-done
	}

	for _, s := range o.order {
		s.close()
	}

	if handle != nil {
		if err := handle.Close(); err != nil {
			return fmt.Errorf("subscription.Orchestrator: failed to close upstream subscription: %w", err)
		}
	}

	logger.Info(o.logger, "subscription closed", logger.With("subscription", o.name))

	return nil
}

func (o *Orchestrator[E, P]) run(ctx context.Context) {
	defer close(o.done)

	for {
		n, err := o.queue.read(ctx)
		if err != nil {
			o.complete(context.Cause(ctx))
			return
		}

		err = o.dispatch(ctx, n)
		o.queue.release(n)

		if err != nil {
			logger.Error(o.logger, "subscription failed",
				logger.With("subscription", o.name),
				logger.Err(err),
			)

			o.cancel(err)
			o.complete(err)

			return
		}
	}
}

func (o *Orchestrator[E, P]) complete(err error) {
	o.mx.Lock()
	defer o.mx.Unlock()

	o.err = err
}

func (o *Orchestrator[E, P]) dispatch(ctx context.Context, n *notification[E, P]) error {
	switch n.kind {
	case kindCatchingUp:
		if err := o.fanOut(func(s *session[E, P]) error { return s.notifyCatchingUp(ctx) }); err != nil {
			return err
		}

		o.resetCheckpointTimers(ctx)

	case kindEventReceived:
		return o.fanOut(func(s *session[E, P]) error { return s.notifyEvent(ctx, n.event, n.position) })

	case kindLive:
		// Flush the progress made while catching up, before switching
		// to the live checkpoint frequency.
		if err := o.fanOut(func(s *session[E, P]) error { return s.notifyCheckpoint(ctx) }); err != nil {
			return err
		}

		if err := o.fanOut(func(s *session[E, P]) error { return s.notifyLive(ctx) }); err != nil {
			return err
		}

		o.resetCheckpointTimers(ctx)

	case kindSubscriptionDropped:
		return o.fanOut(func(s *session[E, P]) error {
			return s.notifySubscriptionDropped(ctx, n.reason, n.err)
		})

	case kindCheckpointTimerElapsed:
		s, ok := o.sessions[n.session]
		if !ok {
			return fmt.Errorf("%w: checkpoint timer elapsed for unknown session %s", ErrUnknownNotification, n.session)
		}

		if err := s.notifyCheckpoint(ctx); err != nil {
			return err
		}

		s.resetCheckpointTimer(ctx)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownNotification, n.kind)
	}

	return nil
}

// fanOut runs the function on all sessions concurrently, and waits for all
// of them to complete: a failing session does not interrupt the others.
func (o *Orchestrator[E, P]) fanOut(f func(s *session[E, P]) error) error {
	if len(o.order) == 1 {
		return f(o.order[0])
	}

	var group errgroup.Group

	for _, s := range o.order {
		group.Go(func() error { return f(s) })
	}

	return group.Wait()
}

func (o *Orchestrator[E, P]) resetCheckpointTimers(ctx context.Context) {
	for _, s := range o.order {
		s.resetCheckpointTimer(ctx)
	}
}

// enqueue writes a new notification for the event loop, waiting for room in the queue.
// The write is interrupted when either the provided context or the event loop is canceled.
func (o *Orchestrator[E, P]) enqueue(ctx context.Context, mutate func(n *notification[E, P])) error {
	o.mx.Lock()
	loopCtx := o.ctx
	o.mx.Unlock()

	if loopCtx == nil {
		return fmt.Errorf("subscription.Orchestrator: failed to enqueue notification: %w", ErrNotStarted)
	}

	if loopCtx.Err() != nil {
		return fmt.Errorf("subscription.Orchestrator: failed to enqueue notification: %w", context.Cause(loopCtx))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(loopCtx, cancel)
	defer stop()

	if err := o.queue.write(ctx, mutate); err != nil {
		if cause := context.Cause(loopCtx); cause != nil {
			err = errors.Join(err, cause)
		}

		return fmt.Errorf("subscription.Orchestrator: failed to enqueue notification: %w", err)
	}

	return nil
}

// OnCatchingUp implements the Subscriber interface.
func (o *Orchestrator[E, P]) OnCatchingUp(ctx context.Context) error {
	return o.enqueue(ctx, func(n *notification[E, P]) { n.setCatchingUp() })
}

// OnEvent implements the Subscriber interface.
func (o *Orchestrator[E, P]) OnEvent(ctx context.Context, event E, position P) error {
	return o.enqueue(ctx, func(n *notification[E, P]) { n.setEventReceived(event, position) })
}

// OnLive implements the Subscriber interface.
func (o *Orchestrator[E, P]) OnLive(ctx context.Context) error {
	return o.enqueue(ctx, func(n *notification[E, P]) { n.setLive() })
}

// OnSubscriptionDropped implements the Subscriber interface.
func (o *Orchestrator[E, P]) OnSubscriptionDropped(ctx context.Context, reason DropReason, err error) error {
	return o.enqueue(ctx, func(n *notification[E, P]) { n.setSubscriptionDropped(reason, err) })
}
