package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/clock"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/logger"
	"github.com/get-eventually/go-catchup/message"
	"github.com/get-eventually/go-catchup/version"
)

var _ event.Store = new(EventStore)

// MessageSerde is used by the EventStore to serialize Domain Events,
// and deserialize them back using their stored name.
//
// serde.Registry is a MessageSerde implementation.
type MessageSerde interface {
	Serialize(msg message.Message) ([]byte, error)
	Deserialize(name string, data []byte) (message.Message, error)
}

// appendLockID is the key of the transaction-level advisory lock used to
// serialize appends, so that sequence numbers are committed in order
// and never skipped by subscriptions.
const appendLockID = 7_358_204_419

// EventStore is an event.Store implementation targeted to PostgreSQL databases.
//
// The implementation uses "event_streams" and "events" as their
// operational tables, created by RunMigrations. Updates to these tables are transactional.
//
// Subscriptions poll the "events" table for new Domain Events.
type EventStore struct {
	conn  *pgxpool.Pool
	serde MessageSerde

	batchSize       int
	minPollInterval time.Duration
	maxPollInterval time.Duration
	logger          logger.Logger
	clock           clock.Clock
}

// NewEventStore returns a new EventStore instance.
func NewEventStore(conn *pgxpool.Pool, serde MessageSerde, options ...Option[*EventStore]) *EventStore {
	es := &EventStore{
		conn:            conn,
		serde:           serde,
		batchSize:       DefaultBatchSize,
		minPollInterval: DefaultMinPollInterval,
		maxPollInterval: DefaultMaxPollInterval,
		clock:           clock.WallClock,
	}

	for _, opt := range options {
		opt.apply(es)
	}

	return es
}

// Append implements event.Store.
func (es *EventStore) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Envelope,
) (newVersion version.Version, err error) {
	txOpts := pgx.TxOptions{
		IsoLevel:       pgx.ReadCommitted,
		AccessMode:     pgx.ReadWrite,
		DeferrableMode: pgx.NotDeferrable,
		BeginQuery:     "",
		CommitQuery:    "",
	}

	err = pgx.BeginTxFunc(ctx, es.conn, txOpts, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", appendLockID); err != nil {
			return fmt.Errorf("failed to acquire append lock: %w", err)
		}

		newVersion, err = appendDomainEvents(ctx, tx, es.serde, id, expected, events...)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("postgres.EventStore: failed to append domain events: %w", err)
	}

	return newVersion, nil
}
