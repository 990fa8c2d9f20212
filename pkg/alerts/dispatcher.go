package alerts

import (
	"context"

	"go.uber.org/zap"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

// Dispatcher fans alerts out to every configured notifier.
// Alerts below the minimum priority are dropped.
type Dispatcher struct {
	notifiers   []Notifier
	minPriority model.Priority
	logger      *zap.Logger
}

// NewDispatcher creates a dispatcher. An invalid minPriority defaults to high.
func NewDispatcher(notifiers []Notifier, minPriority model.Priority, logger *zap.Logger) *Dispatcher {
	if !minPriority.Valid() {
		minPriority = model.PriorityHigh
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		notifiers:   notifiers,
		minPriority: minPriority,
		logger:      logger.Named("alerts"),
	}
}

// Enabled reports whether any notifier is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.notifiers) > 0
}

// Dispatch sends alert to every notifier and returns how many accepted it.
// Delivery failures are logged, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, alert Alert) int {
	if !d.Enabled() || alert.Priority.Rank() < d.minPriority.Rank() {
		return 0
	}

	delivered := 0
	for _, notifier := range d.notifiers {
		if err := notifier.Send(ctx, alert); err != nil {
			d.logger.Error("send alert failed",
				zap.String("notifier", notifier.Name()),
				zap.Int64("notification_id", alert.NotificationID),
				zap.String("rule", alert.RuleName),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}
