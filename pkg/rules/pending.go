package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/ogulcanaydogan/finalert/pkg/model"
	"github.com/ogulcanaydogan/finalert/pkg/storage"
)

// PendingCondition parameterizes the pending_approval alert type.
type PendingCondition struct {
	PendingDays int `json:"pending_days"`
}

// PendingApproval fires for petty cash transactions stuck in approval.
// It emits a single aggregate draft however many records match.
type PendingApproval struct{}

func (PendingApproval) AlertType() model.AlertType { return model.AlertPendingApproval }

func (PendingApproval) condition(raw []byte) (PendingCondition, error) {
	cond, err := decodeCondition(raw, PendingCondition{PendingDays: 2})
	if err != nil {
		return cond, err
	}
	if err := nonNegative("pending_days", float64(cond.PendingDays)); err != nil {
		return cond, err
	}
	return cond, nil
}

func (s PendingApproval) Validate(raw []byte) error {
	_, err := s.condition(raw)
	return err
}

func (s PendingApproval) Evaluate(ctx context.Context, ledger storage.LedgerReader, rule model.AlertRule, now time.Time) (*Outcome, error) {
	cond, err := s.condition(rule.Condition)
	if err != nil {
		return nil, err
	}

	records, err := ledger.PendingPettyCash(ctx, now.AddDate(0, 0, -cond.PendingDays), MaxItems)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Outcome{}, nil
	}

	out := &Outcome{}
	for _, rec := range records {
		out.Items = append(out.Items, Item{
			RelatedType: "petty_cash",
			RelatedID:   rec.ID,
			Label:       rec.Description,
			Amount:      rec.Amount,
			Currency:    rec.Currency,
		})
	}

	n := len(records)
	out.Drafts = []Draft{{
		Subject: "pending",
		Notification: model.Notification{
			Type:     model.TypeReminder,
			Category: "approval",
			Title:    "Pending Approvals",
			Message: fmt.Sprintf("%d petty cash %s pending approval for more than %d days.",
				n, plural(n, "transaction has been", "transactions have been"), cond.PendingDays),
			ActionURL:   "/petty-cash?status=pending",
			ActionLabel: "Review Transactions",
			Priority:    model.PriorityNormal,
			RelatedType: "petty_cash",
			Metadata: metadata(map[string]any{
				"rule_id":      rule.ID,
				"count":        n,
				"pending_days": cond.PendingDays,
			}),
		},
	}}
	return out, nil
}
