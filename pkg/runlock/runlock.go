// Package runlock keeps overlapping batch runs from evaluating rules at the same time.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ogulcanaydogan/finalert/pkg/clock"
	"github.com/ogulcanaydogan/finalert/pkg/storage"
)

// Supported lock backends.
const (
	BackendSQL   = "sql"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Locker is a single-flight lease keyed by name.
type Locker interface {
	// TryLock takes key for ttl. It returns the holder token and false when
	// another holder owns an unexpired lease.
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)

	// Release drops the lease if token still holds it.
	Release(ctx context.Context, key, token string) error
}

func validate(key string, ttl time.Duration) error {
	if key == "" {
		return errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return errors.New("lock ttl must be positive")
	}
	return nil
}

// SQLLocker stores leases in the job_locks table.
type SQLLocker struct {
	store storage.LockStore
	clock clock.Clock
}

// NewSQLLocker creates a locker on store. A nil clock means the system clock.
func NewSQLLocker(store storage.LockStore, clk clock.Clock) *SQLLocker {
	if clk == nil {
		clk = clock.System{}
	}
	return &SQLLocker{store: store, clock: clk}
}

func (l *SQLLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := validate(key, ttl); err != nil {
		return "", false, err
	}
	token := uuid.NewString()
	now := l.clock.Now()
	ok, err := l.store.AcquireLock(ctx, key, token, now, now.Add(ttl))
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *SQLLocker) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.store.ReleaseLock(ctx, key, token)
}

// Noop always grants the lock.
type Noop struct{}

func (Noop) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := validate(key, ttl); err != nil {
		return "", false, err
	}
	return "noop", true, nil
}

func (Noop) Release(context.Context, string, string) error { return nil }
