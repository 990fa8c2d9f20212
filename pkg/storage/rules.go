package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

const ruleColumns = `id, name, alert_type, condition_json, action_json, is_active,
	last_triggered, trigger_count, created_at, updated_at`

func (s *SQL) CreateRule(ctx context.Context, rule *model.AlertRule) error {
	prepareRule(rule)

	err := s.db.QueryRowxContext(ctx, s.rebind(
		`INSERT INTO alert_rules (name, alert_type, condition_json, action_json, is_active,
			trigger_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		 RETURNING id`),
		rule.Name, rule.AlertType, rule.Condition.String(), rule.Action.String(),
		rule.IsActive, rule.CreatedAt, rule.UpdatedAt,
	).Scan(&rule.ID)
	if err != nil {
		return storageErr("insert alert rule", err)
	}
	return nil
}

func (s *SQL) UpsertRule(ctx context.Context, rule *model.AlertRule) error {
	prepareRule(rule)

	err := s.db.QueryRowxContext(ctx, s.rebind(
		`INSERT INTO alert_rules (name, alert_type, condition_json, action_json, is_active,
			trigger_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   alert_type = excluded.alert_type,
		   condition_json = excluded.condition_json,
		   action_json = excluded.action_json,
		   is_active = excluded.is_active,
		   updated_at = excluded.updated_at
		 RETURNING id`),
		rule.Name, rule.AlertType, rule.Condition.String(), rule.Action.String(),
		rule.IsActive, rule.CreatedAt, rule.UpdatedAt,
	).Scan(&rule.ID)
	if err != nil {
		return storageErr("upsert alert rule", err)
	}
	return nil
}

func (s *SQL) GetRule(ctx context.Context, id int64) (*model.AlertRule, error) {
	var r model.AlertRule
	err := s.db.GetContext(ctx, &r, s.rebind(
		`SELECT `+ruleColumns+` FROM alert_rules WHERE id = ?`), id)
	if isNoRows(err) {
		return nil, fmt.Errorf("alert rule %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get alert rule", err)
	}
	return &r, nil
}

func (s *SQL) ListRules(ctx context.Context) ([]model.AlertRule, error) {
	var rules []model.AlertRule
	err := s.db.SelectContext(ctx, &rules,
		`SELECT `+ruleColumns+` FROM alert_rules ORDER BY alert_type, id`)
	if err != nil {
		return nil, storageErr("list alert rules", err)
	}
	return rules, nil
}

func (s *SQL) ListActiveRules(ctx context.Context) ([]model.AlertRule, error) {
	var rules []model.AlertRule
	err := s.db.SelectContext(ctx, &rules, s.rebind(
		`SELECT `+ruleColumns+` FROM alert_rules
		 WHERE is_active = ?
		 ORDER BY alert_type, id`), true)
	if err != nil {
		return nil, storageErr("list active alert rules", err)
	}
	return rules, nil
}

func (s *SQL) SetRuleActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE alert_rules SET is_active = ?, updated_at = ? WHERE id = ?`),
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return storageErr("update alert rule", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return storageErr("check rows affected", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert rule %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *SQL) RecordRuleTrigger(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE alert_rules
		 SET last_triggered = ?, trigger_count = trigger_count + 1
		 WHERE id = ?`),
		at.UTC(), id,
	)
	if err != nil {
		return storageErr("record rule trigger", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return storageErr("check rows affected", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert rule %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func prepareRule(rule *model.AlertRule) {
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	if len(rule.Condition) == 0 {
		rule.Condition = datatypes.JSON("{}")
	}
	if len(rule.Action) == 0 {
		rule.Action = datatypes.JSON("{}")
	}
}
