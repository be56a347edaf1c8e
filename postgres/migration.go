package postgres

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // Registers the "postgres" migrate driver.
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationsTableName is the table golang-migrate uses to track the schema
// version of the Event Store, kept apart from the application own migrations.
const MigrationsTableName = "catchup_schema_migrations"

func migrationsURL(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid dsn: %w", err)
	}

	query := u.Query()
	query.Set("x-migrations-table", MigrationsTableName)
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// RunMigrations creates or upgrades the "event_streams", "events" and
// "subscription_checkpoints" tables on the database addressed by the dsn.
//
// Run it before using an EventStore or a Checkpointer on a new database.
func RunMigrations(dsn string) error {
	databaseURL, err := migrationsURL(dsn)
	if err != nil {
		return fmt.Errorf("postgres.RunMigrations: %w", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("postgres.RunMigrations: failed to read embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("postgres.RunMigrations: failed to connect to the database: %w", err)
	}

	defer m.Close()

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		return nil
	case err != nil:
		return fmt.Errorf("postgres.RunMigrations: failed to apply migrations: %w", err)
	default:
		return nil
	}
}
