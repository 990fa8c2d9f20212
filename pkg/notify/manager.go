// Package notify creates notifications, serves their read state and runs
// the alert rule batch.
package notify

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/ogulcanaydogan/finalert/pkg/alerts"
	"github.com/ogulcanaydogan/finalert/pkg/clock"
	"github.com/ogulcanaydogan/finalert/pkg/metrics"
	"github.com/ogulcanaydogan/finalert/pkg/model"
	"github.com/ogulcanaydogan/finalert/pkg/rules"
	"github.com/ogulcanaydogan/finalert/pkg/storage"
)

// DefaultDedupWindow is the bucket width of rule notification dedup keys.
const DefaultDedupWindow = 24 * time.Hour

// Manager handles notification creation, reads and alert rule checks.
type Manager struct {
	storage     storage.Storage
	engine      *rules.Engine
	clock       clock.Clock
	dedupWindow time.Duration
	metrics     *metrics.Metrics
	dispatcher  *alerts.Dispatcher
	logger      *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithDedupWindow sets the dedup bucket width. Zero disables deduplication.
func WithDedupWindow(d time.Duration) Option {
	return func(m *Manager) { m.dedupWindow = d }
}

// WithMetrics records activity on mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithDispatcher forwards created rule notifications to external channels.
func WithDispatcher(d *alerts.Dispatcher) Option {
	return func(m *Manager) { m.dispatcher = d }
}

// NewManager creates a notification manager.
func NewManager(store storage.Storage, engine *rules.Engine, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		storage:     store,
		engine:      engine,
		clock:       clock.System{},
		dedupWindow: DefaultDedupWindow,
		logger:      logger.Named("notify"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dedupWindow < 0 {
		m.dedupWindow = 0
	}
	return m
}

// CreateNotification validates n, applies defaults and stores it.
// Type, category, title and message are required; priority defaults to normal.
func (m *Manager) CreateNotification(ctx context.Context, n *model.Notification) (int64, error) {
	if err := prepare(n, m.clock.Now()); err != nil {
		return 0, err
	}

	inserted, err := m.storage.InsertNotification(ctx, n)
	if err != nil {
		m.logger.Error("create notification failed",
			zap.String("category", n.Category),
			zap.Error(err),
		)
		return 0, err
	}
	if !inserted {
		m.metrics.NotificationSuppressed()
		return 0, nil
	}
	m.metrics.NotificationCreated(n.Category)
	return n.ID, nil
}

func prepare(n *model.Notification, now time.Time) error {
	n.Type = model.NotificationType(strings.TrimSpace(string(n.Type)))
	n.Category = strings.TrimSpace(n.Category)
	n.Title = strings.TrimSpace(n.Title)
	n.Message = strings.TrimSpace(n.Message)

	switch {
	case n.Type == "":
		return model.Required("type")
	case n.Category == "":
		return model.Required("category")
	case n.Title == "":
		return model.Required("title")
	case n.Message == "":
		return model.Required("message")
	}

	if n.Priority == "" {
		n.Priority = model.PriorityNormal
	}
	if !n.Priority.Valid() {
		return &model.ValidationError{Field: "priority", Message: "must be one of low, normal, high"}
	}
	if len(n.Metadata) == 0 {
		n.Metadata = datatypes.JSON("{}")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.IsRead = false
	n.ReadAt = nil
	return nil
}
