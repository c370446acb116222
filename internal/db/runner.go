package db

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migration directions accepted by Run.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// ErrNoChange is returned when there is nothing to apply.
var ErrNoChange = migrate.ErrNoChange

// Run applies the embedded migrations in direction against dsn.
// Already being at the target version is not an error.
func Run(dsn, direction string) error {
	if dsn == "" {
		return errors.New("database DSN is empty; set DATABASE_URL")
	}
	if direction != DirectionUp && direction != DirectionDown {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case DirectionUp:
		err = m.Up()
	case DirectionDown:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return nil
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(MigrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}
