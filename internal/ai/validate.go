package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var priorityEnum = []string{"low", "medium", "high", "critical"}

func stringProp() map[string]any { return map[string]any{"type": "string"} }

func confidenceProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0, "maximum": 1}
}

func objectSchema(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             required,
		"properties":           props,
	}
}

var recommendationSchema = objectSchema(map[string]any{
	"recommendation_type": stringProp(),
	"title":               stringProp(),
	"description":         stringProp(),
	"rationale":           stringProp(),
	"confidence_score":    confidenceProp(),
	"priority":            map[string]any{"type": "string", "enum": priorityEnum},
})

var mappingSchema = objectSchema(map[string]any{
	"requirement_id":   stringProp(),
	"confidence_score": confidenceProp(),
	"rationale":        stringProp(),
})

var alertSchema = objectSchema(map[string]any{
	"alert_type":       stringProp(),
	"severity":         map[string]any{"type": "string", "enum": priorityEnum},
	"title":            stringProp(),
	"description":      stringProp(),
	"entity_type":      stringProp(),
	"entity_id":        stringProp(),
	"predicted_date":   map[string]any{"type": "string", "description": "YYYY-MM-DD"},
	"confidence_score": confidenceProp(),
})

type recommendationItem struct {
	RecommendationType string   `json:"recommendation_type"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Rationale          string   `json:"rationale"`
	ConfidenceScore    *float64 `json:"confidence_score"`
	Priority           Priority `json:"priority"`
}

type mappingItem struct {
	RequirementID   string   `json:"requirement_id"`
	ConfidenceScore *float64 `json:"confidence_score"`
	Rationale       string   `json:"rationale"`
}

type alertItem struct {
	AlertType       string   `json:"alert_type"`
	Severity        Priority `json:"severity"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	EntityType      string   `json:"entity_type"`
	EntityID        string   `json:"entity_id"`
	PredictedDate   string   `json:"predicted_date"`
	ConfidenceScore *float64 `json:"confidence_score"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidResponseFormat, fmt.Sprintf(format, args...))
}

func decodeItems[T any](raw json.RawMessage) ([]T, error) {
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, invalid("decode items: %v", err)
	}
	return items, nil
}

func checkConfidence(prefix string, v *float64) (float64, error) {
	if v == nil {
		return 0, invalid("%s: confidence_score is required", prefix)
	}
	if *v < 0 || *v > 1 {
		return 0, invalid("%s: confidence_score %v outside [0,1]", prefix, *v)
	}
	return *v, nil
}

// checkCount rejects replies below min and trims replies above max.
func checkCount[T any](items []T, min, max int) ([]T, error) {
	if len(items) < min {
		return nil, invalid("expected at least %d items, got %d", min, len(items))
	}
	if len(items) > max {
		items = items[:max]
	}
	return items, nil
}

func parseRecommendations(raw json.RawMessage, min, max int) ([]recommendationItem, error) {
	items, err := decodeItems[recommendationItem](raw)
	if err != nil {
		return nil, err
	}
	for i := range items {
		it := &items[i]
		prefix := fmt.Sprintf("recommendation[%d]", i)
		it.Title = strings.TrimSpace(it.Title)
		it.RecommendationType = strings.TrimSpace(it.RecommendationType)
		it.Priority = Priority(strings.ToLower(string(it.Priority)))
		if it.Title == "" {
			return nil, invalid("%s: title is required", prefix)
		}
		if it.RecommendationType == "" {
			return nil, invalid("%s: recommendation_type is required", prefix)
		}
		if !it.Priority.Valid() {
			return nil, invalid("%s: unknown priority %q", prefix, it.Priority)
		}
		if _, err := checkConfidence(prefix, it.ConfidenceScore); err != nil {
			return nil, err
		}
	}
	return checkCount(items, min, max)
}

// parseMappings keeps only requirement ids present in known and drops repeats.
func parseMappings(raw json.RawMessage, known map[string]bool) ([]mappingItem, error) {
	items, err := decodeItems[mappingItem](raw)
	if err != nil {
		return nil, err
	}
	out := make([]mappingItem, 0, len(items))
	seen := map[string]bool{}
	for i, it := range items {
		prefix := fmt.Sprintf("mapping[%d]", i)
		if _, err := checkConfidence(prefix, it.ConfidenceScore); err != nil {
			return nil, err
		}
		id := strings.TrimSpace(it.RequirementID)
		if !known[id] || seen[id] {
			continue
		}
		seen[id] = true
		it.RequirementID = id
		out = append(out, it)
	}
	return out, nil
}

func parseAlerts(raw json.RawMessage, min, max int) ([]alertItem, error) {
	items, err := decodeItems[alertItem](raw)
	if err != nil {
		return nil, err
	}
	for i := range items {
		it := &items[i]
		prefix := fmt.Sprintf("alert[%d]", i)
		it.Title = strings.TrimSpace(it.Title)
		it.AlertType = strings.TrimSpace(it.AlertType)
		it.Severity = Priority(strings.ToLower(string(it.Severity)))
		if it.Title == "" {
			return nil, invalid("%s: title is required", prefix)
		}
		if it.AlertType == "" {
			return nil, invalid("%s: alert_type is required", prefix)
		}
		if !it.Severity.Valid() {
			return nil, invalid("%s: unknown severity %q", prefix, it.Severity)
		}
		if _, err := checkConfidence(prefix, it.ConfidenceScore); err != nil {
			return nil, err
		}
		if it.PredictedDate != "" {
			if _, err := time.Parse(time.DateOnly, it.PredictedDate); err != nil {
				return nil, invalid("%s: predicted_date %q is not YYYY-MM-DD", prefix, it.PredictedDate)
			}
		}
	}
	return checkCount(items, min, max)
}

// optionalRef drops references the model invented; only real uuids are kept.
func optionalRef(entityType, entityID string) (*string, *string) {
	entityType = strings.TrimSpace(entityType)
	entityID = strings.TrimSpace(entityID)
	var t, id *string
	if entityType != "" {
		t = &entityType
	}
	if _, err := uuid.Parse(entityID); err == nil {
		id = &entityID
	}
	return t, id
}
