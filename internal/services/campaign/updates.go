package campaign

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/models"
)

// fieldParser converts a raw JSON value into the column value to store
type fieldParser func(value interface{}) (interface{}, error)

// updatableFields is the allow-list of campaign columns an owner may change
var updatableFields = map[string]fieldParser{
	"title":       requiredText(maxTitleLength),
	"description": requiredText(0),
	"story":       optionalText,
	"goal_amount": parseGoal,
	"category":    parseCategory,
	"image_url":   optionalText,
	"video_url":   optionalText,
	"start_date":  parseDateField,
	"end_date":    parseDateField,
	"status":      parseStatus,
}

// parseUpdates keeps the allow-listed keys of fields, converted to column
// values. Unknown keys are dropped.
func parseUpdates(fields map[string]interface{}) (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	errs := map[string]string{}

	for key, raw := range fields {
		parse, ok := updatableFields[key]
		if !ok {
			continue
		}
		value, err := parse(raw)
		if err != nil {
			errs[key] = err.Error()
			continue
		}
		updates[key] = value
	}

	if len(errs) > 0 {
		return nil, apperr.ValidationFields("invalid campaign", errs)
	}
	if len(updates) == 0 {
		return nil, apperr.Validation("no valid fields to update")
	}
	return updates, nil
}

func requiredText(maxLen int) fieldParser {
	return func(value interface{}) (interface{}, error) {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("cannot be empty")
		}
		if maxLen > 0 && len(s) > maxLen {
			return nil, fmt.Errorf("cannot exceed %d characters", maxLen)
		}
		return s, nil
	}
}

// optionalText accepts a string, or null to clear the column
func optionalText(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		if v = strings.TrimSpace(v); v == "" {
			return nil, nil
		}
		return v, nil
	}
	return nil, fmt.Errorf("must be a string")
}

func parseGoal(value interface{}) (interface{}, error) {
	var goal decimal.Decimal
	var err error

	switch v := value.(type) {
	case float64:
		goal = decimal.NewFromFloat(v)
	case json.Number:
		goal, err = decimal.NewFromString(v.String())
	case string:
		goal, err = decimal.NewFromString(strings.TrimSpace(v))
	default:
		return nil, fmt.Errorf("must be a number")
	}
	if err != nil {
		return nil, fmt.Errorf("must be a number")
	}
	if !goal.IsPositive() {
		return nil, fmt.Errorf("must be greater than 0")
	}
	if goal.GreaterThan(models.MaxAmount) {
		return nil, fmt.Errorf("is too large")
	}
	return goal.Round(2), nil
}

func parseCategory(value interface{}) (interface{}, error) {
	s, _ := value.(string)
	category := models.CampaignCategory(strings.ToLower(strings.TrimSpace(s)))
	if !category.Valid() {
		return nil, fmt.Errorf("invalid category")
	}
	return category, nil
}

func parseStatus(value interface{}) (interface{}, error) {
	s, _ := value.(string)
	status := models.CampaignStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status")
	}
	return status, nil
}

func parseDateField(value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("must be a date string")
	}
	return ParseDate(s)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts RFC 3339 timestamps, "YYYY-MM-DD hh:mm:ss" and plain
// dates. Values without a zone are read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
