package projection_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/inmemory"
	"github.com/get-eventually/go-catchup/internal/user"
	"github.com/get-eventually/go-catchup/logger"
	"github.com/get-eventually/go-catchup/projection"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/version"
)

const waitFor = 2 * time.Second

func runProjection(t *testing.T, store event.Stream, consumer *projection.Consumer) {
	t.Helper()

	orchestrator := subscription.NewOrdered[event.Persisted, version.SequenceNumber](store,
		subscription.WithName(t.Name()),
		subscription.WithLogger(logger.NewTest(t)),
	)

	_, err := orchestrator.Register(consumer.Name(), consumer)
	require.NoError(t, err)
	require.NoError(t, orchestrator.Start(context.Background()))

	t.Cleanup(func() { assert.NoError(t, orchestrator.Close()) })
}

func TestConsumer(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewEventStore()
	checkpointer := inmemory.NewCheckpointer()

	johnID, janeID := uuid.New(), uuid.New()
	birthDate := time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, event.StreamID(johnID.String()), version.CheckExact(0),
		user.Created(johnID, "John", "Doe", "john@doe.com", birthDate),
		user.EmailUpdated(johnID, "john.doe@mail.com"),
	)
	require.NoError(t, err)

	t.Run("processed events are checkpointed", func(t *testing.T) {
		readModel := user.NewByEmail()

		runProjection(t, store, projection.NewConsumer("users-by-email", readModel,
			projection.WithCheckpointer(checkpointer),
			projection.WithCatchUpCheckpointFrequency(subscription.EveryEvents(10)),
			projection.WithLiveCheckpointFrequency(subscription.EveryEvents(1)),
			projection.WithLogger(logger.NewTest(t)),
		))

		require.Eventually(t, func() bool {
			seqNum, err := checkpointer.Read(ctx, "users-by-email")
			return err == nil && seqNum == 2
		}, waitFor, time.Millisecond)

		view, err := readModel.Get("john.doe@mail.com")
		require.NoError(t, err)
		assert.Equal(t, johnID, view.ID)
		assert.Equal(t, version.Version(2), view.Version)

		_, err = readModel.Get("john@doe.com")
		assert.ErrorIs(t, err, user.ErrNotFound)

		_, err = store.Append(ctx, event.StreamID(janeID.String()), version.Any,
			user.Created(janeID, "Jane", "Doe", "jane@doe.com", birthDate),
		)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			seqNum, err := checkpointer.Read(ctx, "users-by-email")
			return err == nil && seqNum == 3
		}, waitFor, time.Millisecond)

		assert.Equal(t, 2, readModel.Len())
	})

	t.Run("projections resume after the last checkpoint", func(t *testing.T) {
		readModel := user.NewByEmail()

		runProjection(t, store, projection.NewConsumer("users-by-email", readModel,
			projection.WithCheckpointer(checkpointer),
			projection.WithLogger(logger.NewTest(t)),
		))

		aliceID := uuid.New()

		_, err := store.Append(ctx, event.StreamID(aliceID.String()), version.Any,
			user.Created(aliceID, "Alice", "Liddell", "alice@wonderland.com", birthDate),
		)
		require.NoError(t, err)

		require.Eventually(t, func() bool { return readModel.Len() == 1 }, waitFor, time.Millisecond)

		_, err = readModel.Get("alice@wonderland.com")
		assert.NoError(t, err)
	})
}

func TestConsumer_DoNotCheckpoint(t *testing.T) {
	ctx := context.Background()

	var calls []string

	router := projection.NewRouter().
		Handle(event.ProcessorFunc(func(context.Context, event.Persisted) error {
			calls = append(calls, "created")
			return nil
		}), user.WasCreatedName)

	consumer := projection.NewConsumer("router", router)
	id := uuid.New()

	result, err := consumer.OnEvent(ctx, event.Persisted{
		Envelope:       user.Created(id, "John", "Doe", "john@doe.com", time.Now()),
		SequenceNumber: 1,
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, subscription.Processed, result)

	result, err = consumer.OnEvent(ctx, event.Persisted{
		Envelope:       user.EmailUpdated(id, "john.doe@mail.com"),
		SequenceNumber: 2,
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, subscription.Ignored, result)

	assert.Equal(t, []string{"created"}, calls)
}

func TestConsumer_Failures(t *testing.T) {
	ctx := context.Background()
	evt := event.Persisted{
		Envelope:       user.Created(uuid.New(), "John", "Doe", "john@doe.com", time.Now()),
		SequenceNumber: 1,
	}

	failing := event.ProcessorFunc(func(context.Context, event.Persisted) error { return assert.AnError })

	t.Run("failures are aborted by default", func(t *testing.T) {
		consumer := projection.NewConsumer("failing", failing)

		_, err := consumer.OnEvent(ctx, evt, 1)
		require.ErrorIs(t, err, assert.AnError)

		resolution, err := consumer.OnEventError(ctx, evt, 1, err)
		require.NoError(t, err)
		assert.Equal(t, subscription.Abort, resolution)
	})

	t.Run("checkpointer failures are reported", func(t *testing.T) {
		consumer := projection.NewConsumer("failing", failing,
			projection.WithCheckpointer(failingCheckpointer{}),
		)

		_, err := consumer.OnStarting(ctx)
		assert.ErrorIs(t, err, assert.AnError)
		assert.ErrorIs(t, consumer.OnCheckpoint(ctx, 1), assert.AnError)
	})
}

type failingCheckpointer struct{}

func (failingCheckpointer) Read(context.Context, string) (version.SequenceNumber, error) {
	return 0, assert.AnError
}

func (failingCheckpointer) Write(context.Context, string, version.SequenceNumber) error {
	return assert.AnError
}
