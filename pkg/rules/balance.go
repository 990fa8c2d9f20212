package rules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ogulcanaydogan/finalert/pkg/model"
	"github.com/ogulcanaydogan/finalert/pkg/storage"
)

// BalanceCondition parameterizes the low_balance alert type.
type BalanceCondition struct {
	ThresholdAmount float64 `json:"threshold_amount"`
	Currency        string  `json:"currency"`
}

// LowBalance fires when the approved petty cash balance drops below a threshold.
type LowBalance struct{}

func (LowBalance) AlertType() model.AlertType { return model.AlertLowBalance }

func (LowBalance) condition(raw []byte) (BalanceCondition, error) {
	cond, err := decodeCondition(raw, BalanceCondition{ThresholdAmount: 10000, Currency: "RWF"})
	if err != nil {
		return cond, err
	}
	cond.Currency = strings.ToUpper(strings.TrimSpace(cond.Currency))
	if cond.Currency == "" {
		return cond, model.Required("currency")
	}
	return cond, nil
}

func (s LowBalance) Validate(raw []byte) error {
	_, err := s.condition(raw)
	return err
}

func (s LowBalance) Evaluate(ctx context.Context, ledger storage.LedgerReader, rule model.AlertRule, _ time.Time) (*Outcome, error) {
	cond, err := s.condition(rule.Condition)
	if err != nil {
		return nil, err
	}

	balance, err := ledger.PettyCashBalance(ctx, cond.Currency)
	if err != nil {
		return nil, err
	}
	if balance >= cond.ThresholdAmount {
		return &Outcome{}, nil
	}

	return &Outcome{
		Items: []Item{{
			RelatedType: "petty_cash",
			Label:       cond.Currency + " balance",
			Amount:      balance,
			Currency:    cond.Currency,
		}},
		Drafts: []Draft{{
			Subject: "currency:" + cond.Currency,
			Notification: model.Notification{
				Type:     model.TypeAlert,
				Category: "petty_cash",
				Title:    "Low Petty Cash Balance",
				Message: fmt.Sprintf("Petty cash balance is %s %s, below the threshold of %s %s.",
					formatAmount(balance), cond.Currency, formatAmount(cond.ThresholdAmount), cond.Currency),
				ActionURL:   "/petty-cash",
				ActionLabel: "View Petty Cash",
				Priority:    model.PriorityHigh,
				RelatedType: "petty_cash",
				Metadata: metadata(map[string]any{
					"rule_id":   rule.ID,
					"balance":   balance,
					"threshold": cond.ThresholdAmount,
					"currency":  cond.Currency,
				}),
			},
		}},
	}, nil
}
