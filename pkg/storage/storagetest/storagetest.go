// Package storagetest provides SQLite-backed fixtures for tests.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/finalert/pkg/storage"
)

// NewStore opens a migrated SQLite store in a temp directory and closes it on cleanup.
func NewStore(t *testing.T) *storage.SQL {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// InsertInvoice adds a row to the invoices table and returns its ID.
func InsertInvoice(t *testing.T, store *storage.SQL, number, status string, due time.Time, total float64, currency string) int64 {
	t.Helper()
	var id int64
	err := store.DB().QueryRowxContext(context.Background(), store.DB().Rebind(
		`INSERT INTO invoices (invoice_number, status, due_date, total, currency)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		number, status, due.UTC(), total, currency,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// InsertPettyCash adds a row to the petty_cash table and returns its ID.
func InsertPettyCash(t *testing.T, store *storage.SQL, txType string, amount float64, currency, approval string, date time.Time) int64 {
	t.Helper()
	var id int64
	err := store.DB().QueryRowxContext(context.Background(), store.DB().Rebind(
		`INSERT INTO petty_cash (transaction_type, amount, currency, approval_status, transaction_date, description)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		txType, amount, currency, approval, date.UTC(), "fixture",
	).Scan(&id)
	require.NoError(t, err)
	return id
}
