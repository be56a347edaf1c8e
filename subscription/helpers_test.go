package subscription_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-catchup/subscription"
)

const waitFor = 2 * time.Second

// recorder is a Consumer keeping track of all the calls it receives.
type recorder struct {
	start    subscription.Position[int]
	catchUp  subscription.CheckpointFrequency
	live     subscription.CheckpointFrequency
	onEvent  func(event string, position int) (subscription.Result, error)
	onError  func(err error) subscription.Resolution
	startErr error

	mx          sync.Mutex
	calls       []string
	events      []int
	checkpoints []int
	dropped     []error
}

var _ subscription.Consumer[string, int] = &recorder{}

func (r *recorder) record(call string) {
	r.mx.Lock()
	defer r.mx.Unlock()

	r.calls = append(r.calls, call)
}

func (r *recorder) Calls() []string {
	r.mx.Lock()
	defer r.mx.Unlock()

	return append([]string(nil), r.calls...)
}

func (r *recorder) Events() []int {
	r.mx.Lock()
	defer r.mx.Unlock()

	return append([]int(nil), r.events...)
}

func (r *recorder) Checkpoints() []int {
	r.mx.Lock()
	defer r.mx.Unlock()

	return append([]int(nil), r.checkpoints...)
}

func (r *recorder) Dropped() []error {
	r.mx.Lock()
	defer r.mx.Unlock()

	return append([]error(nil), r.dropped...)
}

func (r *recorder) CatchUpCheckpointFrequency() subscription.CheckpointFrequency { return r.catchUp }

func (r *recorder) LiveCheckpointFrequency() subscription.CheckpointFrequency { return r.live }

func (r *recorder) OnStarting(context.Context) (subscription.Position[int], error) {
	r.record("starting")
	return r.start, r.startErr
}

func (r *recorder) OnCatchingUp(context.Context) error {
	r.record("catching-up")
	return nil
}

func (r *recorder) OnEvent(_ context.Context, event string, position int) (subscription.Result, error) {
	r.record(fmt.Sprintf("event:%d", position))

	if r.onEvent != nil {
		result, err := r.onEvent(event, position)
		if err != nil || result != subscription.Processed {
			return result, err
		}
	}

	r.mx.Lock()
	r.events = append(r.events, position)
	r.mx.Unlock()

	return subscription.Processed, nil
}

func (r *recorder) OnCheckpoint(_ context.Context, position int) error {
	r.record(fmt.Sprintf("checkpoint:%d", position))

	r.mx.Lock()
	r.checkpoints = append(r.checkpoints, position)
	r.mx.Unlock()

	return nil
}

func (r *recorder) OnLive(context.Context) error {
	r.record("live")
	return nil
}

func (r *recorder) OnEventError(_ context.Context, _ string, position int, err error) (subscription.Resolution, error) {
	r.record(fmt.Sprintf("error:%d", position))

	if r.onError == nil {
		return subscription.Abort, nil
	}

	return r.onError(err), nil
}

func (r *recorder) OnSubscriptionDropped(_ context.Context, reason subscription.DropReason, err error) error {
	r.record("dropped:" + reason.String())

	r.mx.Lock()
	r.dropped = append(r.dropped, err)
	r.mx.Unlock()

	return nil
}

// manualStream is an upstream Stream driven by the test itself,
// through the Subscriber received on Subscribe.
type manualStream struct {
	err        error
	subscriber chan subscription.Subscriber[string, int]
	from       chan subscription.Position[int]
	closed     atomic.Bool
}

func newManualStream() *manualStream {
	return &manualStream{
		subscriber: make(chan subscription.Subscriber[string, int], 1),
		from:       make(chan subscription.Position[int], 1),
	}
}

func (s *manualStream) Subscribe(
	_ context.Context,
	subscriber subscription.Subscriber[string, int],
	from subscription.Position[int],
) (subscription.Handle, error) {
	if s.err != nil {
		return nil, s.err
	}

	s.subscriber <- subscriber
	s.from <- from

	return subscription.HandleFunc(func() error {
		s.closed.Store(true)
		return nil
	}), nil
}

// upstream returns the Subscriber registered by the Orchestrator,
// and the position it subscribed from.
func (s *manualStream) upstream(t *testing.T) (subscription.Subscriber[string, int], subscription.Position[int]) {
	t.Helper()

	select {
	case subscriber := <-s.subscriber:
		return subscriber, <-s.from
	case <-time.After(waitFor):
		t.Fatal("orchestrator did not subscribe to the upstream stream")
		return nil, subscription.Position[int]{}
	}
}

// send delivers events with the specified positions to the Subscriber.
func send(ctx context.Context, t *testing.T, subscriber subscription.Subscriber[string, int], positions ...int) {
	t.Helper()

	for _, position := range positions {
		require.NoError(t, subscriber.OnEvent(ctx, fmt.Sprintf("event-%d", position), position))
	}
}
