package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ogulcanaydogan/finalert/pkg/runlock"
)

// ErrLocked is returned by Runner.Run when another run holds the lock.
var ErrLocked = errors.New("another alert check is in progress")

// Runner wraps CheckAlertRules in the single-flight run lock.
type Runner struct {
	manager *Manager
	locker  runlock.Locker
	key     string
	ttl     time.Duration
	cleanup bool
	logger  *zap.Logger
}

// NewRunner creates a runner. A nil locker disables locking.
func NewRunner(manager *Manager, locker runlock.Locker, key string, ttl time.Duration, logger *zap.Logger) *Runner {
	if locker == nil {
		locker = runlock.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		manager: manager,
		locker:  locker,
		key:     key,
		ttl:     ttl,
		logger:  logger.Named("runner"),
	}
}

// WithCleanup makes every run also delete expired notifications.
func (r *Runner) WithCleanup(enabled bool) *Runner {
	r.cleanup = enabled
	return r
}

// Run takes the lock, checks every active rule and releases the lock.
func (r *Runner) Run(ctx context.Context) (*CheckResult, error) {
	token, ok, err := r.locker.TryLock(ctx, r.key, r.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		r.logger.Info("alert check skipped, lock held", zap.String("key", r.key))
		return nil, ErrLocked
	}
	defer func() {
		// Release must outlive a cancelled run context.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.locker.Release(releaseCtx, r.key, token); err != nil {
			r.logger.Warn("release run lock failed", zap.String("key", r.key), zap.Error(err))
		}
	}()

	result, err := r.manager.CheckAlertRules(ctx)
	if err != nil {
		return result, err
	}
	if r.cleanup {
		r.manager.CleanupExpired(ctx)
	}
	return result, nil
}
