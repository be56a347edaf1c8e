package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/version"
)

// Interface implementation assertion.
var _ event.Store = new(EventStore)

// EventStore is a thread-safe, in-memory event.Store implementation.
//
// All Domain Events are kept in a single log, ordered by their
// global sequence number, and can be subscribed to from any position.
type EventStore struct {
	mx       sync.RWMutex
	log      []event.Persisted
	versions map[event.StreamID]version.Version
	changed  chan struct{}
}

// NewEventStore creates a new, empty EventStore instance.
func NewEventStore() *EventStore {
	return &EventStore{
		versions: make(map[event.StreamID]version.Version),
		changed:  make(chan struct{}),
	}
}

// Append inserts the specified Domain Events into the Event Stream with the provided id,
// returning the new version of the Event Stream.
//
// `version.CheckExact` can be specified to enable an Optimistic Concurrency check
// on append, by using the expected version of the Event Stream prior
// to appending the new Events. Alternatively, `version.Any` can be used
// if no Optimistic Concurrency check should be carried out.
//
// An instance of `version.ConflictError` will be returned if the optimistic locking
// version check fails against the current version of the Event Stream.
func (es *EventStore) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Envelope,
) (version.Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("inmemory.EventStore: failed to append events: %w", err)
	}

	es.mx.Lock()
	defer es.mx.Unlock()

	current := es.versions[id]

	if exact, ok := expected.(version.CheckExact); ok && version.Version(exact) != current {
		return 0, fmt.Errorf("inmemory.EventStore: failed to append events: %w", version.ConflictError{
			Expected: version.Version(exact),
			Actual:   current,
		})
	}

	if len(events) == 0 {
		return current, nil
	}

	for _, evt := range events {
		current++

		es.log = append(es.log, event.Persisted{
			StreamID:       id,
			Version:        current,
			Envelope:       evt,
			SequenceNumber: version.SequenceNumber(len(es.log) + 1),
		})
	}

	es.versions[id] = current

	// Wake up all the live subscriptions waiting for new events.
	close(es.changed)
	es.changed = make(chan struct{})

	return current, nil
}

// since returns all the Domain Events committed after the provided sequence number,
// and a channel that is closed when new events are appended.
func (es *EventStore) since(sequenceNumber version.SequenceNumber) ([]event.Persisted, <-chan struct{}) {
	es.mx.RLock()
	defer es.mx.RUnlock()

	if int(sequenceNumber) >= len(es.log) {
		return nil, es.changed
	}

	return es.log[sequenceNumber:], es.changed
}

// Subscribe opens a catch-up subscription delivering all the Domain Events
// committed after the specified position to the Subscriber.
//
// All historical events are delivered first, then the Subscriber is notified
// the subscription is live, and new events are delivered as they get appended.
func (es *EventStore) Subscribe(
	ctx context.Context,
	subscriber event.Subscriber,
	from event.Position,
) (subscription.Handle, error) {
	next, _ := from.Value()
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		if err := subscriber.OnCatchingUp(ctx); err != nil {
			return
		}

		live := false

		for {
			events, changed := es.since(next)

			for _, evt := range events {
				if err := subscriber.OnEvent(ctx, evt, evt.SequenceNumber); err != nil {
					return
				}

				next = evt.SequenceNumber
			}

			if !live {
				if err := subscriber.OnLive(ctx); err != nil {
					return
				}

				live = true
			}

			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
		}
	}()

	return subscription.HandleFunc(func() error {
		cancel()
		<-done

		return nil
	}), nil
}
