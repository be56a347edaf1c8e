package postgres

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/logger"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/version"
)

// Subscribe opens a catch-up subscription on all the Domain Events committed
// after the specified position.
//
// Historical events are read in batches, until a batch smaller than the configured
// batch size is returned: at that point the Subscriber is notified the subscription
// is live, and the "events" table is polled for new Domain Events, backing off
// exponentially while none gets committed.
//
// Query failures drop the subscription with subscription.DropReasonServerError.
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

		if err := es.subscribe(ctx, subscriber, next); err != nil && ctx.Err() == nil {
			logger.Error(es.logger, "postgres subscription stopped",
				logger.With("from", next),
				logger.Err(err),
			)
		}
	}()

	return subscription.HandleFunc(func() error {
		cancel()
		<-done

		return nil
	}), nil
}

func (es *EventStore) newPollBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = es.minPollInterval
	b.MaxInterval = es.maxPollInterval
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

func (es *EventStore) subscribe(
	ctx context.Context,
	subscriber event.Subscriber,
	next version.SequenceNumber,
) error {
	if err := subscriber.OnCatchingUp(ctx); err != nil {
		return err
	}

	poll := es.newPollBackOff()
	live := false

	for {
		events, err := es.fetch(ctx, next)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return subscriber.OnSubscriptionDropped(ctx, subscription.DropReasonServerError, err)
		}

		for _, evt := range events {
			if err := subscriber.OnEvent(ctx, evt, evt.SequenceNumber); err != nil {
				return err
			}

			next = evt.SequenceNumber
		}

		if len(events) == es.batchSize {
			continue
		}

		if !live {
			if err := subscriber.OnLive(ctx); err != nil {
				return err
			}

			live = true
		}

		if len(events) > 0 {
			poll.Reset()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-es.clock.After(poll.NextBackOff()):
		}
	}
}

func (es *EventStore) fetch(ctx context.Context, after version.SequenceNumber) ([]event.Persisted, error) {
	rows, err := es.conn.Query(
		ctx,
		`SELECT sequence_number, event_stream_id, "type", "version", event, metadata
		FROM events
		WHERE sequence_number > $1
		ORDER BY sequence_number
		LIMIT $2`,
		int64(after), es.batchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.EventStore: failed to query events table: %w", err)
	}

	defer rows.Close()

	events := make([]event.Persisted, 0, es.batchSize)

	for rows.Next() {
		var (
			sequenceNumber int64
			eventType      string
			rawEvent       []byte
			rawMetadata    []byte
			evt            event.Persisted
		)

		if err := rows.Scan(&sequenceNumber, &evt.StreamID, &eventType, &evt.Version, &rawEvent, &rawMetadata); err != nil {
			return nil, fmt.Errorf("postgres.EventStore: failed to scan next row: %w", err)
		}

		msg, err := es.serde.Deserialize(eventType, rawEvent)
		if err != nil {
			return nil, fmt.Errorf("postgres.EventStore: failed to deserialize event %d: %w", sequenceNumber, err)
		}

		metadata, err := deserializeMetadata(rawMetadata)
		if err != nil {
			return nil, fmt.Errorf("postgres.EventStore: failed to deserialize event %d metadata: %w", sequenceNumber, err)
		}

		evt.SequenceNumber = version.SequenceNumber(sequenceNumber)
		evt.Message = msg
		evt.Metadata = metadata

		events = append(events, evt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres.EventStore: failed to read events: %w", err)
	}

	return events, nil
}
