package storage

import (
	"context"
	"time"
)

func (s *SQL) AcquireLock(ctx context.Context, name, token string, now, expiresAt time.Time) (bool, error) {
	// The upsert only takes over a row whose lease has run out.
	result, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO job_locks (name, token, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   token = excluded.token,
		   expires_at = excluded.expires_at
		 WHERE job_locks.expires_at < ?`),
		name, token, expiresAt.UTC(), now.UTC(),
	)
	if err != nil {
		return false, storageErr("acquire job lock", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQL) ReleaseLock(ctx context.Context, name, token string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM job_locks WHERE name = ? AND token = ?`),
		name, token,
	)
	if err != nil {
		return storageErr("release job lock", err)
	}
	return nil
}
