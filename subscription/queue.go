package subscription

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// queue is a bounded, multi-producer single-consumer queue of notifications.
//
// Notifications are stored in a fixed set of slots that are reused in place:
// a writer fills the next free slot, which is then owned by the reader
// until it gets released back to the queue.
//
// Writers are serialized, and suspended while the queue is full.
type queue[E, P any] struct {
	slots   []notification[E, P]
	writers *semaphore.Weighted
	free    chan int
	ready   chan int
}

func newQueue[E, P any](capacity int) *queue[E, P] {
	capacity = max(capacity, 1)

	q := &queue[E, P]{
		slots:   make([]notification[E, P], capacity),
		writers: semaphore.NewWeighted(1),
		free:    make(chan int, capacity),
		ready:   make(chan int, capacity),
	}

	for i := range q.slots {
		q.slots[i].slot = i
		q.free <- i
	}

	return q
}

// write applies the mutation on the next free slot, and makes it available to the reader.
//
// The call blocks while the queue is full, until either a slot is released
// or the context is canceled.
func (q *queue[E, P]) write(ctx context.Context, mutate func(*notification[E, P])) error {
	if err := q.writers.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("subscription.queue: failed to acquire write access: %w", err)
	}

	defer q.writers.Release(1)

	select {
	case <-ctx.Done():
		return fmt.Errorf("subscription.queue: failed to write notification: %w", ctx.Err())

	case i := <-q.free:
		mutate(&q.slots[i])
		// NOTE: ready has the same capacity as the number of slots,
		// so this never blocks.
		q.ready <- i

		return nil
	}
}

// read returns the next notification in write order.
// The notification must be released once processed.
func (q *queue[E, P]) read(ctx context.Context) (*notification[E, P], error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("subscription.queue: failed to read notification: %w", ctx.Err())

	case i := <-q.ready:
		return &q.slots[i], nil
	}
}

// release clears the notification and returns its slot to the writers.
func (q *queue[E, P]) release(n *notification[E, P]) {
	n.reset()
	q.free <- n.slot
}
