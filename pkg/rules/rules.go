// Package rules evaluates alert rules against ledger data.
//
// Each alert type is served by a Strategy that decodes its own typed
// condition. Evaluation only reads business data; applying the resulting
// TriggerRecord and persisting drafts is left to the caller.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/ogulcanaydogan/finalert/pkg/model"
	"github.com/ogulcanaydogan/finalert/pkg/storage"
)

// MaxItems caps the rows a single rule evaluation selects.
const MaxItems = 50

// Strategy evaluates one alert type.
type Strategy interface {
	// AlertType returns the alert type this strategy handles.
	AlertType() model.AlertType

	// Validate checks a raw condition payload without touching storage.
	Validate(condition []byte) error

	// Evaluate runs the condition against current ledger data.
	Evaluate(ctx context.Context, ledger storage.LedgerReader, rule model.AlertRule, now time.Time) (*Outcome, error)
}

// Item is one business record that satisfied a rule.
type Item struct {
	RelatedType string  `json:"related_type"`
	RelatedID   int64   `json:"related_id,omitempty"`
	Label       string  `json:"label"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency,omitempty"`
}

// Draft is a notification a triggered rule wants emitted.
// Subject identifies what the notification is about within the rule and
// feeds the dedup key.
type Draft struct {
	Notification model.Notification
	Subject      string
}

// Outcome is what a strategy reports back. A rule triggers iff Items is non-empty.
type Outcome struct {
	Items  []Item
	Drafts []Draft
}

// TriggerRecord is the rule statistics update owed for a triggered rule.
type TriggerRecord struct {
	RuleID int64
	At     time.Time
}

// Evaluation is the result of evaluating one rule.
type Evaluation struct {
	RuleID    int64           `json:"rule_id"`
	RuleName  string          `json:"rule_name"`
	AlertType model.AlertType `json:"alert_type"`
	Triggered bool            `json:"triggered"`
	Items     []Item          `json:"items,omitempty"`
	Drafts    []Draft         `json:"-"`
	Trigger   *TriggerRecord  `json:"-"`
}

// Engine dispatches rules to their strategies.
type Engine struct {
	registry *Registry
	ledger   storage.LedgerReader
}

// NewEngine creates an engine reading business data from ledger.
func NewEngine(registry *Registry, ledger storage.LedgerReader) *Engine {
	return &Engine{registry: registry, ledger: ledger}
}

// Registry returns the strategy registry the engine dispatches to.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Evaluate decides whether rule fires at now.
func (e *Engine) Evaluate(ctx context.Context, rule model.AlertRule, now time.Time) (*Evaluation, error) {
	strategy, err := e.registry.Get(rule.AlertType)
	if err != nil {
		return nil, err
	}
	action, err := model.ParseAction(rule.Action)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
	}

	outcome, err := strategy.Evaluate(ctx, e.ledger, rule, now)
	if err != nil {
		return nil, fmt.Errorf("evaluate rule %q: %w", rule.Name, err)
	}

	eval := &Evaluation{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		AlertType: rule.AlertType,
		Triggered: len(outcome.Items) > 0,
		Items:     outcome.Items,
	}
	if !eval.Triggered {
		return eval, nil
	}
	if action.Notify() {
		eval.Drafts = outcome.Drafts
	}
	eval.Trigger = &TriggerRecord{RuleID: rule.ID, At: now}
	return eval, nil
}
