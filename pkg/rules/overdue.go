package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/ogulcanaydogan/finalert/pkg/model"
	"github.com/ogulcanaydogan/finalert/pkg/storage"
)

// OverdueCondition parameterizes the overdue_invoice alert type.
type OverdueCondition struct {
	DaysOverdue int     `json:"days_overdue"`
	MinAmount   float64 `json:"min_amount"`
}

// OverdueInvoice fires for unpaid invoices past their due date, one draft per invoice.
type OverdueInvoice struct{}

func (OverdueInvoice) AlertType() model.AlertType { return model.AlertOverdueInvoice }

func (OverdueInvoice) condition(raw []byte) (OverdueCondition, error) {
	cond, err := decodeCondition(raw, OverdueCondition{DaysOverdue: 7})
	if err != nil {
		return cond, err
	}
	if err := nonNegative("days_overdue", float64(cond.DaysOverdue)); err != nil {
		return cond, err
	}
	return cond, nil
}

func (s OverdueInvoice) Validate(raw []byte) error {
	_, err := s.condition(raw)
	return err
}

func (s OverdueInvoice) Evaluate(ctx context.Context, ledger storage.LedgerReader, rule model.AlertRule, now time.Time) (*Outcome, error) {
	cond, err := s.condition(rule.Condition)
	if err != nil {
		return nil, err
	}

	cutoff := now.AddDate(0, 0, -cond.DaysOverdue)
	invoices, err := ledger.OverdueInvoices(ctx, cutoff, cond.MinAmount, MaxItems)
	if err != nil {
		return nil, err
	}

	out := &Outcome{}
	for _, inv := range invoices {
		days := int(now.Sub(inv.DueDate).Hours() / 24)
		out.Items = append(out.Items, Item{
			RelatedType: "invoice",
			RelatedID:   inv.ID,
			Label:       inv.InvoiceNumber,
			Amount:      inv.Total,
			Currency:    inv.Currency,
		})
		out.Drafts = append(out.Drafts, Draft{
			Subject: fmt.Sprintf("invoice:%d", inv.ID),
			Notification: model.Notification{
				Type:     model.TypeAlert,
				Category: "invoice",
				Title:    "Overdue Invoice: " + inv.InvoiceNumber,
				Message: fmt.Sprintf("Invoice %s is %d %s overdue. Amount: %s %s",
					inv.InvoiceNumber, days, plural(days, "day", "days"), formatAmount(inv.Total), inv.Currency),
				ActionURL:   fmt.Sprintf("/invoices/%d", inv.ID),
				ActionLabel: "View Invoice",
				Priority:    model.PriorityHigh,
				RelatedType: "invoice",
				RelatedID:   int64Ptr(inv.ID),
				Metadata: metadata(map[string]any{
					"rule_id":      rule.ID,
					"days_overdue": days,
					"amount":       inv.Total,
					"currency":     inv.Currency,
				}),
			},
		})
	}
	return out, nil
}
