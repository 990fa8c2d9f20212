package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ogulcanaydogan/finalert/pkg/alerts"
	"github.com/ogulcanaydogan/finalert/pkg/model"
	"github.com/ogulcanaydogan/finalert/pkg/rules"
)

// RuleError records a rule that failed during a check run.
type RuleError struct {
	RuleID    int64
	RuleName  string
	AlertType model.AlertType
	Err       error
}

func (e RuleError) Error() string {
	return fmt.Sprintf("rule %d (%s): %v", e.RuleID, e.RuleName, e.Err)
}

func (e RuleError) Unwrap() error { return e.Err }

// Code classifies the failure without exposing its cause.
func (e RuleError) Code() string {
	return ErrorCode(e.Err)
}

// MarshalJSON emits the rule and a safe error code only.
func (e RuleError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RuleID    int64           `json:"rule_id"`
		RuleName  string          `json:"rule_name"`
		AlertType model.AlertType `json:"alert_type"`
		Error     string          `json:"error"`
	}{e.RuleID, e.RuleName, e.AlertType, e.Code()})
}

// ErrorCode maps an error to the code shown to API callers.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case model.IsValidation(err):
		return "validation_error"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case model.IsStorage(err):
		return "storage_error"
	default:
		return "internal_error"
	}
}

// CheckResult summarizes one alert rule check run.
type CheckResult struct {
	Success                 bool               `json:"success"`
	RulesChecked            int                `json:"rules_checked"`
	RulesTriggered          int                `json:"rules_triggered"`
	NotificationsCreated    int                `json:"notifications_created"`
	NotificationsSuppressed int                `json:"notifications_suppressed"`
	Triggered               []rules.Evaluation `json:"triggered"`
	Errors                  []RuleError        `json:"errors,omitempty"`
	StartedAt               time.Time          `json:"started_at"`
	FinishedAt              time.Time          `json:"finished_at"`
}

// CheckAlertRules evaluates every active rule once. A failing rule is
// recorded in the result and the run moves on; only a failure to list the
// rules, or cancellation, is returned as an error.
func (m *Manager) CheckAlertRules(ctx context.Context) (result *CheckResult, err error) {
	now := m.clock.Now()
	result = &CheckResult{StartedAt: now, Triggered: []rules.Evaluation{}}
	defer func() {
		result.FinishedAt = m.clock.Now()
		result.Success = err == nil && len(result.Errors) == 0
		m.metrics.ObserveCheck(result.FinishedAt.Sub(result.StartedAt))
	}()

	active, err := m.storage.ListActiveRules(ctx)
	if err != nil {
		m.logger.Error("list active rules failed", zap.Error(err))
		return result, fmt.Errorf("list active rules: %w", err)
	}

	for _, rule := range active {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("check alert rules: %w", err)
		}

		result.RulesChecked++
		if err := m.checkRule(ctx, rule, now, result); err != nil {
			m.metrics.RuleError(rule.AlertType)
			m.logger.Error("alert rule failed",
				zap.Int64("rule_id", rule.ID),
				zap.String("rule", rule.Name),
				zap.String("alert_type", string(rule.AlertType)),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, RuleError{
				RuleID:    rule.ID,
				RuleName:  rule.Name,
				AlertType: rule.AlertType,
				Err:       err,
			})
		}
	}

	m.logger.Info("alert rules checked",
		zap.Int("rules", result.RulesChecked),
		zap.Int("triggered", result.RulesTriggered),
		zap.Int("created", result.NotificationsCreated),
		zap.Int("suppressed", result.NotificationsSuppressed),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (m *Manager) checkRule(ctx context.Context, rule model.AlertRule, now time.Time, result *CheckResult) error {
	eval, err := m.engine.Evaluate(ctx, rule, now)
	if err != nil {
		return err
	}
	m.metrics.RuleEvaluated(rule.AlertType)
	if !eval.Triggered {
		return nil
	}
	m.metrics.RuleTriggered(rule.AlertType)

	for _, draft := range eval.Drafts {
		n := draft.Notification
		n.CreatedAt = now
		if m.dedupWindow > 0 {
			key := DedupKey(rule.ID, draft.Subject, now, m.dedupWindow)
			n.DedupKey = &key
		}

		id, err := m.CreateNotification(ctx, &n)
		if err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		if id == 0 {
			result.NotificationsSuppressed++
			continue
		}
		result.NotificationsCreated++
		m.dispatcher.Dispatch(ctx, alerts.FromNotification(n, rule.Name, rule.AlertType))
	}

	if err := m.storage.RecordRuleTrigger(ctx, eval.Trigger.RuleID, eval.Trigger.At); err != nil {
		return fmt.Errorf("record rule trigger: %w", err)
	}
	result.RulesTriggered++
	result.Triggered = append(result.Triggered, *eval)

	m.logger.Info("alert rule triggered",
		zap.Int64("rule_id", rule.ID),
		zap.String("rule", rule.Name),
		zap.Int("items", len(eval.Items)),
	)
	return nil
}

var dedupNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("finalert:notification"))

// DedupKey derives the idempotency key of a rule notification about subject
// within the window bucket containing at.
func DedupKey(ruleID int64, subject string, at time.Time, window time.Duration) string {
	bucket := at.UTC().Truncate(window).Unix()
	name := fmt.Sprintf("%d|%s|%d", ruleID, subject, bucket)
	return uuid.NewSHA1(dedupNamespace, []byte(name)).String()
}
