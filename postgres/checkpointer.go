package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/get-eventually/go-catchup/subscription/checkpoint"
	"github.com/get-eventually/go-catchup/version"
)

var _ checkpoint.Checkpointer = Checkpointer{}

// Checkpointer is a checkpoint.Checkpointer implementation storing
// checkpoints in the "subscription_checkpoints" table, created by RunMigrations.
type Checkpointer struct {
	Conn *pgxpool.Pool
}

// Read implements checkpoint.Checkpointer.
func (c Checkpointer) Read(ctx context.Context, name string) (version.SequenceNumber, error) {
	var sequenceNumber int64

	err := c.Conn.QueryRow(
		ctx,
		`SELECT last_sequence_number FROM subscription_checkpoints WHERE subscription_name = $1`,
		name,
	).Scan(&sequenceNumber)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("postgres.Checkpointer: failed to read checkpoint of '%s': %w", name, err)
	}

	return version.SequenceNumber(sequenceNumber), nil
}

// Write implements checkpoint.Checkpointer.
func (c Checkpointer) Write(ctx context.Context, name string, sequenceNumber version.SequenceNumber) error {
	if _, err := c.Conn.Exec(
		ctx,
		`INSERT INTO subscription_checkpoints (subscription_name, last_sequence_number)
		VALUES ($1, $2)
		ON CONFLICT (subscription_name) DO
		UPDATE SET last_sequence_number = EXCLUDED.last_sequence_number, updated_at = NOW()`,
		name, int64(sequenceNumber),
	); err != nil {
		return fmt.Errorf("postgres.Checkpointer: failed to write checkpoint of '%s': %w", name, err)
	}

	return nil
}
