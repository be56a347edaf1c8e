package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/internal/user"
	"github.com/get-eventually/go-catchup/logger"
	"github.com/get-eventually/go-catchup/postgres"
	"github.com/get-eventually/go-catchup/serde"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/version"
)

func setupDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("catchup"),
		tcpostgres.WithUsername("catchup"),
		tcpostgres.WithPassword("notasecret"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.RunMigrations(dsn))

	conn, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	t.Cleanup(conn.Close)

	return conn
}

func newRegistry() *serde.Registry[[]byte] {
	registry := serde.NewRegistry[[]byte]()
	user.RegisterSerdes(registry)

	return registry
}

func TestEventStore(t *testing.T) {
	conn := setupDatabase(t)

	eventStore := postgres.NewEventStore(conn, newRegistry(),
		postgres.WithBatchSize(2),
		postgres.WithPollInterval(10*time.Millisecond, 100*time.Millisecond),
		postgres.WithLogger(logger.NewTest(t)),
	)

	user.EventStoreSuite(eventStore, postgres.Checkpointer{Conn: conn})(t)

	t.Run("appended events carry the recording metadata", func(t *testing.T) {
		ctx := context.Background()
		id := uuid.New()

		events, err := event.StreamToSlice(ctx, eventStore, subscription.Beginning[version.SequenceNumber]())
		require.NoError(t, err)

		from := subscription.Beginning[version.SequenceNumber]()
		if len(events) > 0 {
			from = subscription.At(events[len(events)-1].SequenceNumber)
		}

		envelope := user.Created(id, "Meta", "Data", "meta@data.com", time.Now())
		envelope.Metadata = envelope.Metadata.With("Correlation-Id", "test")

		_, err = eventStore.Append(ctx, event.StreamID(id.String()), version.Any, envelope)
		require.NoError(t, err)

		events, err = event.StreamToSlice(ctx, eventStore, from)
		require.NoError(t, err)
		require.Len(t, events, 1)

		assert.Equal(t, "test", events[0].Metadata["Correlation-Id"])
		assert.Equal(t, "1", events[0].Metadata[postgres.StreamVersionMetadataKey])
		assert.NotEmpty(t, events[0].Metadata[postgres.RecordedAtMetadataKey])
	})
}

type droppedRecorder struct {
	dropped chan subscription.DropReason
}

func (dr droppedRecorder) OnCatchingUp(context.Context) error { return nil }

func (dr droppedRecorder) OnEvent(context.Context, event.Persisted, version.SequenceNumber) error {
	return nil
}

func (dr droppedRecorder) OnLive(context.Context) error { return nil }

func (dr droppedRecorder) OnSubscriptionDropped(_ context.Context, reason subscription.DropReason, _ error) error {
	dr.dropped <- reason
	return nil
}

func TestEventStore_SubscriptionDropped(t *testing.T) {
	conn := setupDatabase(t)
	ctx := context.Background()

	id := uuid.New()
	registry := newRegistry()
	eventStore := postgres.NewEventStore(conn, registry)

	_, err := eventStore.Append(ctx, event.StreamID(id.String()), version.Any,
		user.Created(id, "John", "Doe", "john@doe.com", time.Now()),
	)
	require.NoError(t, err)

	// Events that cannot be deserialized drop the subscription.
	brokenStore := postgres.NewEventStore(conn, serde.NewRegistry[[]byte]())
	recorder := droppedRecorder{dropped: make(chan subscription.DropReason, 1)}

	handle, err := brokenStore.Subscribe(ctx, recorder, subscription.Beginning[version.SequenceNumber]())
	require.NoError(t, err)

	defer func() { assert.NoError(t, handle.Close()) }()

	select {
	case reason := <-recorder.dropped:
		assert.Equal(t, subscription.DropReasonServerError, reason)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription was not dropped")
	}
}

func TestCheckpointer(t *testing.T) {
	conn := setupDatabase(t)
	ctx := context.Background()
	checkpointer := postgres.Checkpointer{Conn: conn}

	seqNum, err := checkpointer.Read(ctx, "projection")
	require.NoError(t, err)
	assert.Zero(t, seqNum)

	require.NoError(t, checkpointer.Write(ctx, "projection", 10))
	require.NoError(t, checkpointer.Write(ctx, "projection", 42))

	seqNum, err = checkpointer.Read(ctx, "projection")
	require.NoError(t, err)
	assert.Equal(t, version.SequenceNumber(42), seqNum)
}
