package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/datatypes"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

// decodeCondition overlays a raw JSON condition onto defaults.
func decodeCondition[T any](raw []byte, defaults T) (T, error) {
	cond := defaults
	if len(raw) == 0 || string(raw) == "null" {
		return cond, nil
	}
	if err := json.Unmarshal(raw, &cond); err != nil {
		return defaults, &model.ValidationError{Field: "condition", Message: err.Error()}
	}
	return cond, nil
}

func nonNegative(field string, v float64) error {
	if v < 0 {
		return &model.ValidationError{Field: field, Message: "must not be negative"}
	}
	return nil
}

func metadata(fields map[string]any) datatypes.JSON {
	data, err := json.Marshal(fields)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

func int64Ptr(v int64) *int64 { return &v }

// formatAmount renders an amount with thousands separators and two decimals,
// e.g. 150000 -> "150,000.00".
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s%s.%s", sign, b.String(), frac)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
