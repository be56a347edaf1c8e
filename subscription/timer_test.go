package subscription

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointTimer(t *testing.T) {
	const waitFor = time.Second

	t.Run("elapsed callback is called once the duration has passed", func(t *testing.T) {
		clk := testclock.NewClock(time.Now())

		var elapsed atomic.Int32

		timer := newCheckpointTimer(clk, func(context.Context) error {
			elapsed.Add(1)
			return nil
		})
		defer timer.close()

		timer.reset(context.Background(), time.Minute)

		require.NoError(t, clk.WaitAdvance(time.Minute, waitFor, 1))
		assert.Eventually(t, func() bool { return elapsed.Load() == 1 }, waitFor, time.Millisecond)
	})

	t.Run("reset cancels the pending delay", func(t *testing.T) {
		clk := testclock.NewClock(time.Now())

		var elapsed atomic.Int32

		timer := newCheckpointTimer(clk, func(context.Context) error {
			elapsed.Add(1)
			return nil
		})

		timer.reset(context.Background(), time.Minute)
		require.NoError(t, clk.WaitAdvance(30*time.Second, waitFor, 1))

		timer.reset(context.Background(), 0)
		clk.Advance(time.Hour)

		timer.close()
		assert.Zero(t, elapsed.Load())
	})

	t.Run("closed timers cannot be rearmed", func(t *testing.T) {
		clk := testclock.NewClock(time.Now())

		timer := newCheckpointTimer(clk, func(context.Context) error {
			t.Error("elapsed callback should not be called")
			return nil
		})

		timer.close()
		timer.reset(context.Background(), time.Minute)
		clk.Advance(time.Hour)
	})

	t.Run("canceling the context stops the timer", func(t *testing.T) {
		clk := testclock.NewClock(time.Now())
		ctx, cancel := context.WithCancel(context.Background())

		var elapsed atomic.Int32

		timer := newCheckpointTimer(clk, func(context.Context) error {
			elapsed.Add(1)
			return nil
		})

		timer.reset(ctx, time.Minute)
		cancel()

		timer.close()
		clk.Advance(time.Hour)
		assert.Zero(t, elapsed.Load())
	})
}
