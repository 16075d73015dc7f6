package ai

import (
	"fmt"
	"time"

	"grc-platform/internal/apperr"
)

// Audit entity types for AI generated records.
const (
	EntityRecommendation = "ai_recommendation"
	EntityMapping        = "regulation_mapping"
	EntityAlert          = "predictive_alert"
)

var (
	ErrNotFound          = fmt.Errorf("%w: ai record", apperr.ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("%w: status change not allowed", apperr.ErrConflict)
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type RecommendationStatus string

const (
	RecommendationPending     RecommendationStatus = "pending"
	RecommendationImplemented RecommendationStatus = "implemented"
	RecommendationDismissed   RecommendationStatus = "dismissed"
)

type Recommendation struct {
	ID                 string               `json:"id"`
	EntityType         string               `json:"entity_type"`
	EntityID           string               `json:"entity_id"`
	RecommendationType string               `json:"recommendation_type"`
	Title              string               `json:"title"`
	Description        string               `json:"description"`
	Rationale          string               `json:"rationale"`
	ConfidenceScore    float64              `json:"confidence_score"`
	Priority           Priority             `json:"priority"`
	Status             RecommendationStatus `json:"status"`
	ImplementedAt      *time.Time           `json:"implemented_at"`
	ImplementedBy      *string              `json:"implemented_by"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

type RegulationMapping struct {
	ID                string    `json:"id"`
	PolicyID          string    `json:"policy_id"`
	RequirementID     string    `json:"requirement_id"`
	MappingConfidence float64   `json:"mapping_confidence"`
	MappingRationale  string    `json:"mapping_rationale"`
	MappedBy          *string   `json:"mapped_by"`
	MappedAt          time.Time `json:"mapped_at"`
}

type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
)

type Alert struct {
	ID              string      `json:"id"`
	AlertType       string      `json:"alert_type"`
	Severity        Priority    `json:"severity"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	EntityType      *string     `json:"entity_type"`
	EntityID        *string     `json:"entity_id"`
	PredictedDate   *time.Time  `json:"predicted_date"`
	ConfidenceScore float64     `json:"confidence_score"`
	Status          AlertStatus `json:"status"`
	AcknowledgedAt  *time.Time  `json:"acknowledged_at"`
	AcknowledgedBy  *string     `json:"acknowledged_by"`
	CreatedAt       time.Time   `json:"created_at"`
}

// RecommendRequest asks for recommendations about one entity. Context is
// free-form caller data passed to the model verbatim.
type RecommendRequest struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Context    map[string]any `json:"context"`
}
