package projection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/inmemory"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/version"
)

// ScenarioTimeout is the maximum time a scenario waits for the projection
// to catch up with the Given events.
const ScenarioTimeout = 5 * time.Second

type givenStream struct {
	id     event.StreamID
	events []event.Envelope
}

// ScenarioInit is the entrypoint of the projection scenario API.
type ScenarioInit struct{}

// Scenario is a scenario type to test the effects of Domain Events on
// an event.Processor, run as a projection with a catch-up Subscription
// over an in-memory Event Store.
func Scenario() ScenarioInit { return ScenarioInit{} }

// Given sets the Domain Events committed to the specified Event Stream
// before the projection starts.
func (ScenarioInit) Given(id event.StreamID, events ...event.Envelope) ScenarioGiven {
	return ScenarioGiven{given: []givenStream{{id: id, events: events}}}
}

// ScenarioGiven is the state of the scenario once the precondition
// Domain Events have been set.
type ScenarioGiven struct {
	given []givenStream
}

// And adds the Domain Events of another Event Stream to the precondition.
func (sc ScenarioGiven) And(id event.StreamID, events ...event.Envelope) ScenarioGiven {
	given := append(append([]givenStream(nil), sc.given...), givenStream{id: id, events: events})
	return ScenarioGiven{given: given}
}

// Then sets an assertion on the projection, once it has processed
// all the Given events.
func (sc ScenarioGiven) Then(assertion func(t *testing.T)) ScenarioThen {
	return ScenarioThen{ScenarioGiven: sc, then: assertion}
}

// ThenError specifies the projection is expected to fail with an error
// matching the one specified.
func (sc ScenarioGiven) ThenError(err error) ScenarioThen {
	return ScenarioThen{ScenarioGiven: sc, thenError: err, wantError: true}
}

// ThenFails specifies the projection is expected to fail with an error.
func (sc ScenarioGiven) ThenFails() ScenarioThen {
	return ScenarioThen{ScenarioGiven: sc, wantError: true}
}

// ScenarioThen is the state of the scenario once the expectations
// have been set.
type ScenarioThen struct {
	ScenarioGiven

	then      func(t *testing.T)
	thenError error
	wantError bool
}

type liveSignal struct {
	subscription.NopInterceptor[event.Persisted, version.SequenceNumber]

	live chan struct{}
}

func (ls liveSignal) InterceptLive(ctx context.Context, next func(ctx context.Context) error) error {
	if err := next(ctx); err != nil {
		return err
	}

	close(ls.live)

	return nil
}

// Using runs the scenario with the specified event.Processor.
func (sc ScenarioThen) Using(t *testing.T, processor event.Processor) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), ScenarioTimeout)
	defer cancel()

	store := inmemory.NewEventStore()

	for _, stream := range sc.given {
		_, err := store.Append(ctx, stream.id, version.Any, stream.events...)
		require.NoError(t, err)
	}

	live := make(chan struct{})
	consumer := subscription.Intercept[event.Persisted, version.SequenceNumber](
		NewConsumer("scenario", processor),
		liveSignal{live: live},
	)

	orchestrator := subscription.NewOrdered[event.Persisted](store)

	_, err := orchestrator.Register("scenario", consumer)
	require.NoError(t, err)
	require.NoError(t, orchestrator.Start(ctx))

	defer func() { assert.NoError(t, orchestrator.Close()) }()

	completed := make(chan error, 1)

	go func() { completed <- orchestrator.Wait(ctx) }()

	select {
	case <-live:
		if sc.wantError {
			t.Error("projection was expected to fail, but it caught up")
			return
		}

		if sc.then != nil {
			sc.then(t)
		}

	case err := <-completed:
		if !sc.wantError || errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("projection stopped before catching up: %v", err)
			return
		}

		if sc.thenError != nil {
			assert.ErrorIs(t, err, sc.thenError)
		}
	}
}
