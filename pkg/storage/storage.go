package storage

import (
	"context"
	"time"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

// RuleStore persists alert rules and their trigger statistics.
type RuleStore interface {
	// CreateRule inserts a new rule and sets its ID.
	CreateRule(ctx context.Context, rule *model.AlertRule) error

	// UpsertRule creates a rule or updates the definition of the rule with the same name.
	// Trigger statistics of an existing rule are preserved.
	UpsertRule(ctx context.Context, rule *model.AlertRule) error

	// GetRule retrieves a rule by ID.
	GetRule(ctx context.Context, id int64) (*model.AlertRule, error)

	// ListRules returns every rule ordered by alert type, then ID.
	ListRules(ctx context.Context) ([]model.AlertRule, error)

	// ListActiveRules returns active rules ordered by alert type, then ID.
	ListActiveRules(ctx context.Context) ([]model.AlertRule, error)

	// SetRuleActive toggles a rule.
	SetRuleActive(ctx context.Context, id int64, active bool) error

	// RecordRuleTrigger sets last_triggered and increments trigger_count by one.
	RecordRuleTrigger(ctx context.Context, id int64, at time.Time) error
}

// NotificationStore persists notifications and their read state.
type NotificationStore interface {
	// InsertNotification stores n and sets its ID. It returns false without error
	// when n carries a dedup key that is already present.
	InsertNotification(ctx context.Context, n *model.Notification) (bool, error)

	// GetNotification retrieves a notification by ID.
	GetNotification(ctx context.Context, id int64) (*model.Notification, error)

	// ListNotifications returns active notifications visible to a user.
	ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, error)

	// MarkRead marks one unread notification owned by the user, or broadcast, as read.
	MarkRead(ctx context.Context, id, userID int64, at time.Time) (int64, error)

	// MarkAllRead marks every unread notification visible to the user as read.
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)

	// CountUnread counts unread, unexpired notifications visible to the user.
	CountUnread(ctx context.Context, userID int64, now time.Time) (int64, error)

	// DeleteExpired removes notifications whose expiry has passed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// LedgerReader queries the business tables alert rules are evaluated against.
type LedgerReader interface {
	// OverdueInvoices returns unpaid invoices due before cutoff with a total above minAmount.
	OverdueInvoices(ctx context.Context, cutoff time.Time, minAmount float64, limit int) ([]model.Invoice, error)

	// PettyCashBalance returns approved credits minus approved debits for a currency.
	PettyCashBalance(ctx context.Context, currency string) (float64, error)

	// PendingPettyCash returns transactions awaiting approval dated before cutoff.
	PendingPettyCash(ctx context.Context, cutoff time.Time, limit int) ([]model.PettyCash, error)
}

// LockStore backs the single-flight lock of the batch job.
type LockStore interface {
	// AcquireLock takes the named lock for token unless another token holds an unexpired lease.
	AcquireLock(ctx context.Context, name, token string, now, expiresAt time.Time) (bool, error)

	// ReleaseLock drops the lock if token still holds it.
	ReleaseLock(ctx context.Context, name, token string) error
}

// Storage defines the persistence layer of the alerting core.
type Storage interface {
	RuleStore
	NotificationStore
	LedgerReader
	LockStore

	// Close releases resources.
	Close() error
}
