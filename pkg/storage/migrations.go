package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const defaultPingTimeout = 5 * time.Second

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embeddedMigrations embed.FS

// runMigrations applies pending schema migrations for the given dialect.
func runMigrations(db *sql.DB, dialect string) error {
	sub, err := fs.Sub(embeddedMigrations, "migrations/"+dialect)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	var (
		driver     database.Driver
		driverName string
	)
	switch dialect {
	case DriverSQLite:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
		driverName = "sqlite"
	case DriverPostgres:
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
		driverName = "pgx5"
	default:
		return fmt.Errorf("no migrations for dialect %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, driverName, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	// migrator.Close would close the shared *sql.DB.
	return nil
}
