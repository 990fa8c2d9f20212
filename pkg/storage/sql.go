package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/ogulcanaydogan/finalert/pkg/model"

	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var _ Storage = (*SQL)(nil)

// SQL implements the Storage interface on SQLite or PostgreSQL.
type SQL struct {
	db      *sqlx.DB
	dialect string
}

// Open connects to the database selected by driver and applies pending migrations.
// For SQLite, dsn is a file path; for PostgreSQL, a connection URL.
func Open(driver, dsn string) (*SQL, error) {
	switch driver {
	case "", DriverSQLite:
		return NewSQLite(dsn)
	case DriverPostgres:
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQL, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db.DB, DriverSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQL{db: db, dialect: DriverSQLite}, nil
}

// NewPostgres connects to PostgreSQL through the pgx stdlib driver.
func NewPostgres(dsn string) (*SQL, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db.DB, DriverPostgres); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQL{db: db, dialect: DriverPostgres}, nil
}

// DB exposes the underlying connection pool.
func (s *SQL) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the driver the store was opened with.
func (s *SQL) Dialect() string {
	return s.dialect
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) rebind(query string) string {
	return s.db.Rebind(query)
}

func storageErr(op string, err error) error {
	return &model.StorageError{Op: op, Err: err}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
