package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
)

// checkpointTimer is a resettable delay owned by a session.
//
// When the delay elapses, the timer does not checkpoint directly: it calls
// the elapsed callback, which enqueues a notification to be handled by the
// event loop, like any other notification.
type checkpointTimer struct {
	clock   clock.Clock
	elapsed func(ctx context.Context) error

	mx       sync.Mutex
	wg       sync.WaitGroup
	duration time.Duration
	pending  clock.Timer
	cancel   context.CancelFunc
	closed   bool
}

func newCheckpointTimer(clk clock.Clock, elapsed func(ctx context.Context) error) *checkpointTimer {
	return &checkpointTimer{
		clock:   clk,
		elapsed: elapsed,
	}
}

// reset cancels the pending delay, if any, and starts a new one.
// A non-positive duration disables the timer until the next reset.
func (t *checkpointTimer) reset(ctx context.Context, duration time.Duration) {
	t.mx.Lock()
	defer t.mx.Unlock()

	t.stop()
	t.duration = duration

	if duration <= 0 || t.closed {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	timer := t.clock.NewTimer(duration)
	t.pending = timer

	t.wg.Add(1)

	go func() {
		defer t.wg.Done()

		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
		}

		if ctx.Err() != nil {
			return
		}

		// The write fails only when the timer has been reset or closed
		// while waiting for room in the queue, so the elapse is stale anyway.
		_ = t.elapsed(ctx)
	}()
}

func (t *checkpointTimer) stop() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// close cancels the pending delay and waits for the timer to be released.
func (t *checkpointTimer) close() {
	t.mx.Lock()
	t.closed = true
	t.stop()
	t.mx.Unlock()

	t.wg.Wait()
}
