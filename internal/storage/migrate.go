package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationFS embed.FS

// migrateUp applies the embedded migrations for d. The migrator is not closed
// because closing it would also close db.
func migrateUp(db *sql.DB, d dialect) error {
	src, err := iofs.New(migrationFS, "migrations/"+d.name)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	var drv database.Driver
	switch d.name {
	case dialectPostgres.name:
		drv, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		drv, err = sqlite.WithInstance(db, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, d.name, drv)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
