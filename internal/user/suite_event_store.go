package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/logger"
	"github.com/get-eventually/go-catchup/projection"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/subscription/checkpoint"
	"github.com/get-eventually/go-catchup/version"
)

// EventStoreSuite returns an executable testing suite running on the event.Store
// value provided in input.
//
// The suite can run on an Event Store that already contains Domain Events.
func EventStoreSuite(eventStore event.Store, checkpointer checkpoint.Checkpointer) func(t *testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		birthDate := time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

		tail := func(t *testing.T) event.Position {
			t.Helper()

			events, err := event.StreamToSlice(ctx, eventStore, subscription.Beginning[version.SequenceNumber]())
			require.NoError(t, err)

			if len(events) == 0 {
				return subscription.Beginning[version.SequenceNumber]()
			}

			return subscription.At(events[len(events)-1].SequenceNumber)
		}

		t.Run("append works when used with version.Any", func(t *testing.T) {
			id := uuid.New()
			streamID := event.StreamID(id.String())

			newVersion, err := eventStore.Append(ctx, streamID, version.Any,
				Created(id, "Dani", "Ross", "dani@ross.com", birthDate),
				EmailUpdated(id, "dani.ross@mail.com"),
			)
			require.NoError(t, err)
			assert.Equal(t, version.Version(2), newVersion)

			newVersion, err = eventStore.Append(ctx, streamID, version.Any,
				EmailUpdated(id, "daniross123@gmail.com"),
			)
			require.NoError(t, err)
			assert.Equal(t, version.Version(3), newVersion)
		})

		t.Run("append fails on version conflicts", func(t *testing.T) {
			id := uuid.New()
			streamID := event.StreamID(id.String())

			_, err := eventStore.Append(ctx, streamID, version.CheckExact(0),
				Created(id, "John", "Doe", "john@doe.com", birthDate),
			)
			require.NoError(t, err)

			_, err = eventStore.Append(ctx, streamID, version.CheckExact(0),
				EmailUpdated(id, "john.doe@mail.com"),
			)

			var conflictErr version.ConflictError
			require.ErrorAs(t, err, &conflictErr)
			assert.Equal(t, version.ConflictError{Expected: 0, Actual: 1}, conflictErr)
		})

		t.Run("subscriptions deliver events after the provided position, in order", func(t *testing.T) {
			from := tail(t)
			id := uuid.New()

			_, err := eventStore.Append(ctx, event.StreamID(id.String()), version.Any,
				Created(id, "Jane", "Doe", "jane@doe.com", birthDate),
				EmailUpdated(id, "jane.doe@mail.com"),
				EmailUpdated(id, "jane@doe.org"),
			)
			require.NoError(t, err)

			events, err := event.StreamToSlice(ctx, eventStore, from)
			require.NoError(t, err)
			require.Len(t, events, 3)

			for i, evt := range events {
				assert.Equal(t, event.StreamID(id.String()), evt.StreamID)
				assert.Equal(t, version.Version(i+1), evt.Version)
				assert.True(t, subscription.Ordered[version.SequenceNumber]().IsAfter(evt.SequenceNumber, from))

				if i > 0 {
					assert.Greater(t, evt.SequenceNumber, events[i-1].SequenceNumber)
				}
			}

			created, ok := events[0].Message.(*Event)
			require.True(t, ok)
			assert.Equal(t, id, created.ID)
			assert.Equal(t, &WasCreated{
				FirstName: "Jane",
				LastName:  "Doe",
				BirthDate: birthDate,
				Email:     "jane@doe.com",
			}, created.Kind)
		})

		t.Run("projections catch up and receive live events", func(t *testing.T) {
			readModel := NewByEmail()
			consumer := projection.NewConsumer("users-by-email-"+uuid.NewString(), readModel,
				projection.WithCheckpointer(checkpointer),
				projection.WithLiveCheckpointFrequency(subscription.EveryEvents(1)),
			)

			orchestrator := subscription.NewOrdered[event.Persisted, version.SequenceNumber](eventStore,
				subscription.WithName(t.Name()),
				subscription.WithLogger(logger.NewTest(t)),
			)

			_, err := orchestrator.Register(consumer.Name(), consumer)
			require.NoError(t, err)
			require.NoError(t, orchestrator.Start(ctx))

			defer func() { assert.NoError(t, orchestrator.Close()) }()

			id := uuid.New()

			_, err = eventStore.Append(ctx, event.StreamID(id.String()), version.Any,
				Created(id, "Live", "User", "live@user.com", birthDate),
			)
			require.NoError(t, err)

			require.Eventually(t, func() bool {
				view, err := readModel.Get("live@user.com")
				return err == nil && view.ID == id
			}, 5*time.Second, 10*time.Millisecond)

			require.Eventually(t, func() bool {
				seqNum, err := checkpointer.Read(ctx, consumer.Name())
				return err == nil && seqNum > 0
			}, 5*time.Second, 10*time.Millisecond)
		})
	}
}
