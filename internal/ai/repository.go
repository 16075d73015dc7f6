package ai

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"grc-platform/pkg/utils"
)

// PostgresRepo stores AI output in ai_recommendations, regulation_mappings and predictive_alerts.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

const recommendationColumns = `id, entity_type, entity_id, recommendation_type, title, description, rationale,
confidence_score, priority, status, implemented_at, implemented_by, created_at, updated_at`

func (p *PostgresRepo) SaveRecommendations(ctx context.Context, recs []Recommendation) error {
	const q = `
INSERT INTO ai_recommendations (id, entity_type, entity_id, recommendation_type, title, description, rationale,
	confidence_score, priority, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	return utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, r := range recs {
			if _, err := tx.ExecContext(ctx, q, r.ID, r.EntityType, r.EntityID, r.RecommendationType, r.Title,
				r.Description, r.Rationale, r.ConfidenceScore, string(r.Priority), string(r.Status),
				r.CreatedAt, r.UpdatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *PostgresRepo) ListRecommendations(ctx context.Context, entityType, entityID string, limit int) ([]Recommendation, error) {
	var (
		where []string
		args  []any
	)
	if entityType != "" {
		args = append(args, entityType)
		where = append(where, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if entityID != "" {
		args = append(args, entityID)
		where = append(where, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	q := "SELECT " + recommendationColumns + " FROM ai_recommendations"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Recommendation, 0)
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetRecommendationStatus is a compare-and-set on status = 'pending'.
func (p *PostgresRepo) SetRecommendationStatus(ctx context.Context, id string, status RecommendationStatus, by string, at time.Time) (Recommendation, error) {
	q := `
UPDATE ai_recommendations SET status = $2, implemented_by = $3, implemented_at = $4, updated_at = $4
WHERE id = $1 AND status = 'pending'
RETURNING ` + recommendationColumns
	var implAt any
	if status == RecommendationImplemented {
		implAt = at
	}
	r, err := scanRecommendation(p.db.QueryRowContext(ctx, q, id, string(status), by, implAt))
	if errors.Is(err, sql.ErrNoRows) {
		return Recommendation{}, p.missingOrTransition(ctx, "ai_recommendations", id)
	}
	return r, err
}

const mappingColumns = `id, policy_id, requirement_id, mapping_confidence, mapping_rationale, mapped_by, mapped_at`

// SaveMappings upserts on (policy_id, requirement_id) so re-running a mapping refreshes it.
func (p *PostgresRepo) SaveMappings(ctx context.Context, mappings []RegulationMapping) error {
	const q = `
INSERT INTO regulation_mappings (id, policy_id, requirement_id, mapping_confidence, mapping_rationale, mapped_by, mapped_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (policy_id, requirement_id) DO UPDATE SET
	mapping_confidence = EXCLUDED.mapping_confidence,
	mapping_rationale = EXCLUDED.mapping_rationale,
	mapped_by = EXCLUDED.mapped_by,
	mapped_at = EXCLUDED.mapped_at`
	return utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, m := range mappings {
			if _, err := tx.ExecContext(ctx, q, m.ID, m.PolicyID, m.RequirementID, m.MappingConfidence,
				m.MappingRationale, m.MappedBy, m.MappedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *PostgresRepo) ListMappings(ctx context.Context, policyID string) ([]RegulationMapping, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT "+mappingColumns+" FROM regulation_mappings WHERE policy_id = $1 ORDER BY mapping_confidence DESC", policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]RegulationMapping, 0)
	for rows.Next() {
		var (
			m  RegulationMapping
			by sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.PolicyID, &m.RequirementID, &m.MappingConfidence, &m.MappingRationale, &by, &m.MappedAt); err != nil {
			return nil, err
		}
		if by.Valid {
			m.MappedBy = &by.String
		}
		m.MappedAt = m.MappedAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

const alertColumns = `id, alert_type, severity, title, description, entity_type, entity_id, predicted_date,
confidence_score, status, acknowledged_at, acknowledged_by, created_at`

func (p *PostgresRepo) SaveAlerts(ctx context.Context, alerts []Alert) error {
	const q = `
INSERT INTO predictive_alerts (id, alert_type, severity, title, description, entity_type, entity_id,
	predicted_date, confidence_score, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	return utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, a := range alerts {
			if _, err := tx.ExecContext(ctx, q, a.ID, a.AlertType, string(a.Severity), a.Title, a.Description,
				a.EntityType, a.EntityID, a.PredictedDate, a.ConfidenceScore, string(a.Status), a.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *PostgresRepo) ListAlerts(ctx context.Context, status AlertStatus, limit int) ([]Alert, error) {
	q := "SELECT " + alertColumns + " FROM predictive_alerts"
	args := []any{}
	if status != "" {
		args = append(args, string(status))
		q += " WHERE status = $1"
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *PostgresRepo) AcknowledgeAlert(ctx context.Context, id, by string, at time.Time) (Alert, error) {
	q := `
UPDATE predictive_alerts SET status = 'acknowledged', acknowledged_by = $2, acknowledged_at = $3
WHERE id = $1 AND status = 'active'
RETURNING ` + alertColumns
	a, err := scanAlert(p.db.QueryRowContext(ctx, q, id, by, at))
	if errors.Is(err, sql.ErrNoRows) {
		return Alert{}, p.missingOrTransition(ctx, "predictive_alerts", id)
	}
	return a, err
}

// missingOrTransition tells apart an unknown id from a row already past its initial state.
func (p *PostgresRepo) missingOrTransition(ctx context.Context, table, id string) error {
	var exists bool
	if err := p.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = $1)", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

func scanRecommendation(row rowScanner) (Recommendation, error) {
	var (
		r                Recommendation
		priority, status string
		implAt           sql.NullTime
		implBy           sql.NullString
	)
	if err := row.Scan(&r.ID, &r.EntityType, &r.EntityID, &r.RecommendationType, &r.Title, &r.Description,
		&r.Rationale, &r.ConfidenceScore, &priority, &status, &implAt, &implBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Recommendation{}, err
	}
	r.Priority = Priority(priority)
	r.Status = RecommendationStatus(status)
	if implAt.Valid {
		t := implAt.Time.UTC()
		r.ImplementedAt = &t
	}
	if implBy.Valid {
		r.ImplementedBy = &implBy.String
	}
	r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	return r, nil
}

func scanAlert(row rowScanner) (Alert, error) {
	var (
		a                    Alert
		severity, status     string
		entityType, entityID sql.NullString
		ackBy                sql.NullString
		predicted, ackAt     sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.AlertType, &severity, &a.Title, &a.Description, &entityType, &entityID,
		&predicted, &a.ConfidenceScore, &status, &ackAt, &ackBy, &a.CreatedAt); err != nil {
		return Alert{}, err
	}
	a.Severity = Priority(severity)
	a.Status = AlertStatus(status)
	if entityType.Valid {
		a.EntityType = &entityType.String
	}
	if entityID.Valid {
		a.EntityID = &entityID.String
	}
	if predicted.Valid {
		t := predicted.Time.UTC()
		a.PredictedDate = &t
	}
	if ackAt.Valid {
		t := ackAt.Time.UTC()
		a.AcknowledgedAt = &t
	}
	if ackBy.Valid {
		a.AcknowledgedBy = &ackBy.String
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
