package alerts

import (
	"context"
	"time"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

// Alert is a newly created notification forwarded to an external channel.
type Alert struct {
	NotificationID int64           `json:"notification_id"`
	RuleName       string          `json:"rule_name,omitempty"`
	AlertType      model.AlertType `json:"alert_type,omitempty"`
	Priority       model.Priority  `json:"priority"`
	Category       string          `json:"category"`
	Title          string          `json:"title"`
	Message        string          `json:"message"`
	ActionURL      string          `json:"action_url,omitempty"`
	RelatedType    string          `json:"related_type,omitempty"`
	RelatedID      *int64          `json:"related_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// FromNotification builds the alert for a stored notification raised by a rule.
func FromNotification(n model.Notification, ruleName string, alertType model.AlertType) Alert {
	return Alert{
		NotificationID: n.ID,
		RuleName:       ruleName,
		AlertType:      alertType,
		Priority:       n.Priority,
		Category:       n.Category,
		Title:          n.Title,
		Message:        n.Message,
		ActionURL:      n.ActionURL,
		RelatedType:    n.RelatedType,
		RelatedID:      n.RelatedID,
		CreatedAt:      n.CreatedAt,
	}
}

// Notifier sends alerts to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert. Implementations must be safe for concurrent use.
	Send(ctx context.Context, alert Alert) error
}
