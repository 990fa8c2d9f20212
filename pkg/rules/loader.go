package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

// RuleFile is the YAML document accepted by LoadRuleFile.
type RuleFile struct {
	Rules []RuleDefinition `yaml:"rules"`
}

// RuleDefinition describes one rule in a rule file. Active defaults to true.
type RuleDefinition struct {
	Name      string          `yaml:"name"`
	AlertType model.AlertType `yaml:"alert_type"`
	Active    *bool           `yaml:"active,omitempty"`
	Condition map[string]any  `yaml:"condition,omitempty"`
	Action    map[string]any  `yaml:"action,omitempty"`
}

// LoadRuleFile reads a YAML rule file and returns the rules it defines.
func LoadRuleFile(path string, registry *Registry) ([]model.AlertRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}

	rules, err := LoadRulesFromBytes(data, registry)
	if err != nil {
		return nil, fmt.Errorf("rule file %s: %w", path, err)
	}
	return rules, nil
}

// LoadRulesFromBytes parses YAML rule data and validates every definition
// against the registry.
func LoadRulesFromBytes(data []byte, registry *Registry) ([]model.AlertRule, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("no rules defined")
	}

	seen := make(map[string]bool, len(file.Rules))
	rules := make([]model.AlertRule, 0, len(file.Rules))
	for i, def := range file.Rules {
		rule, err := def.toRule(registry)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		if seen[rule.Name] {
			return nil, fmt.Errorf("rule %d: duplicate name %q", i+1, rule.Name)
		}
		seen[rule.Name] = true
		rules = append(rules, rule)
	}
	return rules, nil
}

func (d RuleDefinition) toRule(registry *Registry) (model.AlertRule, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return model.AlertRule{}, model.Required("name")
	}
	strategy, err := registry.Get(d.AlertType)
	if err != nil {
		return model.AlertRule{}, err
	}

	condition, err := toJSON(d.Condition)
	if err != nil {
		return model.AlertRule{}, &model.ValidationError{Field: "condition", Message: err.Error()}
	}
	if err := strategy.Validate(condition); err != nil {
		return model.AlertRule{}, err
	}

	action, err := toJSON(d.Action)
	if err != nil {
		return model.AlertRule{}, &model.ValidationError{Field: "action", Message: err.Error()}
	}
	if _, err := model.ParseAction(action); err != nil {
		return model.AlertRule{}, err
	}

	return model.AlertRule{
		Name:      name,
		AlertType: d.AlertType,
		Condition: condition,
		Action:    action,
		IsActive:  d.Active == nil || *d.Active,
	}, nil
}

func toJSON(m map[string]any) (datatypes.JSON, error) {
	if len(m) == 0 {
		return datatypes.JSON("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
