package subscription_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-catchup/logger"
	"github.com/get-eventually/go-catchup/subscription"
)

func startOrchestrator(
	t *testing.T,
	stream *manualStream,
	consumers map[string]subscription.Consumer[string, int],
	options ...subscription.Option,
) *subscription.Orchestrator[string, int] {
	t.Helper()

	options = append([]subscription.Option{
		subscription.WithName(t.Name()),
		subscription.WithLogger(logger.NewTest(t)),
	}, options...)

	orchestrator := subscription.NewOrdered[string, int](stream, options...)

	for name, consumer := range consumers {
		_, err := orchestrator.Register(name, consumer)
		require.NoError(t, err)
	}

	require.NoError(t, orchestrator.Start(context.Background()))
	t.Cleanup(func() { assert.NoError(t, orchestrator.Close()) })

	return orchestrator
}

func called(r *recorder, call string) func() bool {
	return func() bool { return slices.Contains(r.Calls(), call) }
}

func TestOrchestrator_CheckpointsEveryEvents(t *testing.T) {
	ctx := context.Background()
	stream := newManualStream()
	consumer := &recorder{catchUp: subscription.EveryEvents(2)}

	startOrchestrator(t, stream, map[string]subscription.Consumer[string, int]{
		"consumer": consumer,
	}, subscription.WithQueueCapacity(1))

	upstream, from := stream.upstream(t)
	assert.True(t, from.IsBeginning())

	require.NoError(t, upstream.OnCatchingUp(ctx))
	send(ctx, t, upstream, 1, 2, 3, 4)
	require.NoError(t, upstream.OnLive(ctx))

	require.Eventually(t, called(consumer, "live"), waitFor, time.Millisecond)

	assert.Equal(t, []string{
		"starting",
		"catching-up",
		"event:1",
		"event:2",
		"checkpoint:2",
		"event:3",
		"event:4",
		"checkpoint:4",
		"live",
	}, consumer.Calls())
}

func TestOrchestrator_LiveFlushesPendingCheckpoint(t *testing.T) {
	ctx := context.Background()
	stream := newManualStream()
	consumer := &recorder{
		catchUp: subscription.EveryEvents(10),
		live:    subscription.EveryEvents(1),
	}

	startOrchestrator(t, stream, map[string]subscription.Consumer[string, int]{
		"consumer": consumer,
	})

	upstream, _ := stream.upstream(t)

	require.NoError(t, upstream.OnCatchingUp(ctx))
	send(ctx, t, upstream, 1, 2, 3)
	require.NoError(t, upstream.OnLive(ctx))
	send(ctx, t, upstream, 4)

	require.Eventually(t, called(consumer, "checkpoint:4"), waitFor, time.Millisecond)

	assert.Equal(t, []string{
		"starting",
		"catching-up",
		"event:1",
		"event:2",
		"event:3",
		"checkpoint:3",
		"live",
		"event:4",
		"checkpoint:4",
	}, consumer.Calls())
}

func TestOrchestrator_SubscribesFromEarliestPosition(t *testing.T) {
	ctx := context.Background()
	stream := newManualStream()
	first := &recorder{start: subscription.At(5)}
	second := &recorder{start: subscription.At(10)}

	startOrchestrator(t, stream, map[string]subscription.Consumer[string, int]{
		"first":  first,
		"second": second,
	})

	upstream, from := stream.upstream(t)
	assert.Equal(t, subscription.At(5), from)

	require.NoError(t, upstream.OnCatchingUp(ctx))
	// The upstream might deliver the boundary event again.
	send(ctx, t, upstream, 5, 7, 10, 11)
	require.NoError(t, upstream.OnLive(ctx))

	require.Eventually(t, called(first, "live"), waitFor, time.Millisecond)
	require.Eventually(t, called(second, "live"), waitFor, time.Millisecond)

	assert.Equal(t, []int{7, 10, 11}, first.Events())
	assert.Equal(t, []int{11}, second.Events())
}

func TestOrchestrator_SessionsCheckpointIndependently(t *testing.T) {
	ctx := context.Background()
	stream := newManualStream()
	eager := &recorder{catchUp: subscription.EveryEvents(1)}
	lazy := &recorder{catchUp: subscription.EveryEvents(3)}

	startOrchestrator(t, stream, map[string]subscription.Consumer[string, int]{
		"eager": eager,
		"lazy":  lazy,
	}, subscription.WithQueueCapacity(1))

	upstream, _ := stream.upstream(t)

	require.NoError(t, upstream.OnCatchingUp(ctx))
	send(ctx, t, upstream, 1, 2, 3)

	require.Eventually(t, called(eager, "checkpoint:3"), waitFor, time.Millisecond)
	require.Eventually(t, called(lazy, "checkpoint:3"), waitFor, time.Millisecond)

	assert.Equal(t, []int{1, 2, 3}, eager.Checkpoints())
	assert.Equal(t, []int{3}, lazy.Checkpoints())
}

func TestOrchestrator_ErrorResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("retried events are delivered again until processed", func(t *testing.T) {
		stream := newManualStream()
		attempts := 0
		consumer := &recorder{
			onEvent: func(_ string, position int) (subscription.Result, error) {
				if position != 2 {
					return subscription.Processed, nil
				}

				if attempts++; attempts < 3 {
					return subscription.Ignored, assert.AnError
				}

				return subscription.Processed, nil
			},
			onError: func(error) subscription.Resolution { return subscription.Retry },
		}

		startOrchestrator(t, stream, map[string]subscription.Consumer[string, int]{
			"consumer": consumer,
		})

		upstream, _ := stream.upstream(t)
		send(ctx, t, upstream, 1, 2, 3)

		require.Eventually(t, called(consumer, "event:3"), waitFor, time.Millisecond)

		assert.Equal(t, []int{1, 2, 3}, consumer.Events())
		assert.Equal(t, []string{
			"starting",
			"event:1",
			"event:2",
			"error:2",
			"event:2",
			"error:2",
			"event:2",
			"event:3",
		}, consumer.Calls())
	})

	t.Run("skipped events are not counted for checkpoints", func(t *testing.T) {
		stream := newManualStream()
		consumer := &recorder{
			catchUp: subscription.EveryEvents(2),
			onEvent: func(_ string, position int) (subscription.Result, error) {
				if position == 1 {
					return subscription.Ignored, assert.AnError
				}

				return subscription.Processed, nil
			},
			onError: func(error) subscription.Resolution { return subscription.Skip },
		}

		startOrchestrator(t, stream, map[string]subscription.Consumer[string, int]{
			"consumer": consumer,
		})

		upstream, _ := stream.upstream(t)

		require.NoError(t, upstream.OnCatchingUp(ctx))
		send(ctx, t, upstream, 1, 2, 3)
		require.NoError(t, upstream.OnLive(ctx))

		require.Eventually(t, called(consumer, "live"), waitFor, time.Millisecond)

		assert.Equal(t, []int{2, 3}, consumer.Events())
		assert.Equal(t, []int{3}, consumer.Checkpoints())
	})

	t.Run("skipped events move the checkpointed position forward", func(t *testing.T) {
		stream := newManualStream()
		consumer := &recorder{
			catchUp: subscription.EveryEvents(10),
			onEvent: func(_ string, position int) (subscription.Result, error) {
				if position == 3 {
					return subscription.Ignored, assert.AnError
				}

				return subscription.Processed, nil
			},
			onError: func(error) subscription.Resolution { return subscription.Skip },
		}

		startOrchestrator(t, stream, map[string]subscription.Consumer[string, int]{
			"consumer": consumer,
		})

		upstream, _ := stream.upstream(t)

		require.NoError(t, upstream.OnCatchingUp(ctx))
		send(ctx, t, upstream, 1, 2, 3)
		require.NoError(t, upstream.OnLive(ctx))

		require.Eventually(t, called(consumer, "live"), waitFor, time.Millisecond)
		assert.Equal(t, []int{3}, consumer.Checkpoints())
	})

	t.Run("aborted events fail the whole subscription", func(t *testing.T) {
		stream := newManualStream()
		consumer := &recorder{
			catchUp: subscription.EveryEvents(1),
			onEvent: func(_ string, position int) (subscription.Result, error) {
				if position == 2 {
					return subscription.Ignored, assert.AnError
				}

				return subscription.Processed, nil
			},
		}

		orchestrator := startOrchestrator(t, stream, map[string]subscription.Consumer[string, int]{
			"consumer": consumer,
		})

		upstream, _ := stream.upstream(t)

		require.NoError(t, upstream.OnCatchingUp(ctx))
		send(ctx, t, upstream, 1, 2)

		waitCtx, cancel := context.WithTimeout(ctx, waitFor)
		defer cancel()

		err := orchestrator.Wait(waitCtx)
		assert.ErrorIs(t, err, subscription.ErrAborted)
		assert.ErrorIs(t, err, assert.AnError)

		var abortErr *subscription.AbortError
		require.ErrorAs(t, err, &abortErr)
		assert.Equal(t, "consumer", abortErr.Consumer)
		assert.Equal(t, 2, abortErr.Position)

		// The aborted event never becomes part of a checkpoint.
		assert.Equal(t, []int{1}, consumer.Checkpoints())
		assert.NotContains(t, consumer.Calls(), "checkpoint:2")

		// The upstream is not accepting notifications anymore.
		assert.Error(t, upstream.OnEvent(ctx, "event-3", 3))
	})

	t.Run("events skipped inside a composite move its checkpointed position forward", func(t *testing.T) {
		stream := newManualStream()
		member := &recorder{
			catchUp: subscription.EveryEvents(10),
			onEvent: func(_ string, position int) (subscription.Result, error) {
				if position == 3 {
					return subscription.Ignored, assert.AnError
				}

				return subscription.Processed, nil
			},
			onError: func(error) subscription.Resolution { return subscription.Skip },
		}

		startOrchestrator(t, stream, map[string]subscription.Consumer[string, int]{
			"composite": subscription.NewComposite[string, int](subscription.Ordered[int](), member),
		})

		upstream, _ := stream.upstream(t)

		require.NoError(t, upstream.OnCatchingUp(ctx))
		send(ctx, t, upstream, 1, 2, 3)
		require.NoError(t, upstream.OnLive(ctx))

		require.Eventually(t, called(member, "live"), waitFor, time.Millisecond)
		assert.Equal(t, []int{3}, member.Checkpoints())
	})
}

func TestOrchestrator_CheckpointTimer(t *testing.T) {
	ctx := context.Background()
	clk := testclock.NewClock(time.Now())
	stream := newManualStream()
	consumer := &recorder{catchUp: subscription.EveryInterval(time.Minute)}

	startOrchestrator(t, stream, map[string]subscription.Consumer[string, int]{
		"consumer": consumer,
	}, subscription.WithClock(clk))

	upstream, _ := stream.upstream(t)

	require.NoError(t, upstream.OnCatchingUp(ctx))
	send(ctx, t, upstream, 1, 2)

	require.Eventually(t, called(consumer, "event:2"), waitFor, time.Millisecond)
	assert.Empty(t, consumer.Checkpoints())

	require.NoError(t, clk.WaitAdvance(time.Minute, waitFor, 1))
	require.Eventually(t, called(consumer, "checkpoint:2"), waitFor, time.Millisecond)

	// Without new events, the rearmed timer does not checkpoint again.
	require.NoError(t, clk.WaitAdvance(time.Minute, waitFor, 1))
	require.NoError(t, clk.WaitAdvance(0, waitFor, 1))
	send(ctx, t, upstream, 3)

	require.Eventually(t, called(consumer, "event:3"), waitFor, time.Millisecond)
	assert.Equal(t, []int{2}, consumer.Checkpoints())
}

func TestOrchestrator_SubscriptionDropped(t *testing.T) {
	ctx := context.Background()
	stream := newManualStream()
	first, second := &recorder{}, &recorder{}

	startOrchestrator(t, stream, map[string]subscription.Consumer[string, int]{
		"first":  first,
		"second": second,
	})

	upstream, _ := stream.upstream(t)
	require.NoError(t, upstream.OnSubscriptionDropped(ctx, subscription.DropReasonServerError, assert.AnError))

	for _, consumer := range []*recorder{first, second} {
		require.Eventually(t, called(consumer, "dropped:server-error"), waitFor, time.Millisecond)
		assert.Equal(t, []error{assert.AnError}, consumer.Dropped())
	}
}

func TestOrchestrator_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("start fails without consumers", func(t *testing.T) {
		orchestrator := subscription.NewOrdered[string, int](newManualStream())
		assert.ErrorIs(t, orchestrator.Start(ctx), subscription.ErrNoConsumers)
	})

	t.Run("wait fails if not started", func(t *testing.T) {
		orchestrator := subscription.NewOrdered[string, int](newManualStream())
		assert.ErrorIs(t, orchestrator.Wait(ctx), subscription.ErrNotStarted)
	})

	t.Run("start and register fail once started", func(t *testing.T) {
		orchestrator := startOrchestrator(t, newManualStream(), map[string]subscription.Consumer[string, int]{
			"consumer": &recorder{},
		})

		assert.ErrorIs(t, orchestrator.Start(ctx), subscription.ErrAlreadyStarted)

		_, err := orchestrator.Register("late", &recorder{})
		assert.ErrorIs(t, err, subscription.ErrAlreadyStarted)
	})

	t.Run("start fails when a consumer fails to start", func(t *testing.T) {
		stream := newManualStream()
		orchestrator := subscription.NewOrdered[string, int](stream)

		_, err := orchestrator.Register("consumer", &recorder{startErr: assert.AnError})
		require.NoError(t, err)

		assert.ErrorIs(t, orchestrator.Start(ctx), assert.AnError)
		assert.Empty(t, stream.subscriber)
		assert.NoError(t, orchestrator.Close())
	})

	t.Run("start fails when the upstream subscription fails", func(t *testing.T) {
		stream := newManualStream()
		stream.err = assert.AnError
		orchestrator := subscription.NewOrdered[string, int](stream)

		_, err := orchestrator.Register("consumer", &recorder{})
		require.NoError(t, err)

		assert.ErrorIs(t, orchestrator.Start(ctx), assert.AnError)
		assert.NoError(t, orchestrator.Close())
	})

	t.Run("close releases the upstream subscription", func(t *testing.T) {
		stream := newManualStream()
		orchestrator := subscription.NewOrdered[string, int](stream)

		_, err := orchestrator.Register("consumer", &recorder{})
		require.NoError(t, err)
		require.NoError(t, orchestrator.Start(ctx))

		upstream, _ := stream.upstream(t)

		require.NoError(t, orchestrator.Close())
		require.NoError(t, orchestrator.Close())
		assert.True(t, stream.closed.Load())

		assert.ErrorIs(t, orchestrator.Wait(ctx), context.Canceled)
		assert.ErrorIs(t, orchestrator.Start(ctx), subscription.ErrClosed)
		assert.Error(t, upstream.OnEvent(ctx, "event-1", 1))
	})

	t.Run("canceling the start context stops the subscription", func(t *testing.T) {
		stream := newManualStream()
		orchestrator := subscription.NewOrdered[string, int](stream)

		_, err := orchestrator.Register("consumer", &recorder{})
		require.NoError(t, err)

		startCtx, cancel := context.WithCancel(ctx)
		require.NoError(t, orchestrator.Start(startCtx))
		t.Cleanup(func() { assert.NoError(t, orchestrator.Close()) })

		cancel()

		err = orchestrator.Wait(ctx)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
