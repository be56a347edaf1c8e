package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/message"
	"github.com/get-eventually/go-catchup/version"
)

// Metadata keys added to every Domain Event appended to the EventStore.
const (
	RecordedAtMetadataKey    = "Recorded-At"
	StreamVersionMetadataKey = "Recorded-With-New-Overall-Version"
)

func appendDomainEvents(
	ctx context.Context,
	tx pgx.Tx,
	messageSerializer MessageSerde,
	id event.StreamID,
	expected version.Check,
	events ...event.Envelope,
) (version.Version, error) {
	row := tx.QueryRow(
		ctx,
		`SELECT "version" FROM event_streams WHERE event_stream_id = $1 FOR UPDATE`,
		id,
	)

	var oldVersion version.Version
	if err := row.Scan(&oldVersion); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("postgres.appendDomainEvents: failed to scan old event stream version: %w", err)
	}

	if v, ok := expected.(version.CheckExact); ok && oldVersion != version.Version(v) {
		return 0, fmt.Errorf(
			"postgres.appendDomainEvents: event stream version check failed: %w",
			version.ConflictError{
				Expected: version.Version(v),
				Actual:   oldVersion,
			},
		)
	}

	if len(events) == 0 {
		return oldVersion, nil
	}

	newVersion := oldVersion + version.Version(len(events))

	if _, err := tx.Exec(
		ctx,
		`INSERT INTO event_streams (event_stream_id, "version")
		VALUES ($1, $2)
		ON CONFLICT (event_stream_id) DO
		UPDATE SET "version" = $2`,
		id, newVersion,
	); err != nil {
		return 0, fmt.Errorf("postgres.appendDomainEvents: failed to update event stream: %w", err)
	}

	for i, evt := range events {
		eventVersion := oldVersion + version.Version(i) + 1

		if err := appendDomainEvent(ctx, tx, messageSerializer, id, eventVersion, newVersion, evt); err != nil {
			return 0, err
		}
	}

	return newVersion, nil
}

func appendDomainEvent(
	ctx context.Context,
	tx pgx.Tx,
	messageSerializer MessageSerde,
	id event.StreamID,
	eventVersion, newVersion version.Version,
	evt event.Envelope,
) error {
	msg := evt.Message

	data, err := messageSerializer.Serialize(msg)
	if err != nil {
		return fmt.Errorf("postgres.appendDomainEvent: failed to serialize domain event: %w", err)
	}

	enrichedMetadata := evt.Metadata.
		With(RecordedAtMetadataKey, time.Now().Format(time.RFC3339Nano)).
		With(StreamVersionMetadataKey, strconv.Itoa(int(newVersion)))

	metadata, err := json.Marshal(enrichedMetadata)
	if err != nil {
		return fmt.Errorf("postgres.appendDomainEvent: failed to serialize metadata: %w", err)
	}

	if _, err = tx.Exec(
		ctx,
		`INSERT INTO events (event_stream_id, "type", "version", event, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		id, msg.Name(), eventVersion, data, metadata,
	); err != nil {
		return fmt.Errorf("postgres.appendDomainEvent: failed to append new domain event to event store: %w", err)
	}

	return nil
}

func deserializeMetadata(data []byte) (message.Metadata, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var metadata message.Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("postgres.deserializeMetadata: failed to unmarshal from json: %w", err)
	}

	return metadata, nil
}
