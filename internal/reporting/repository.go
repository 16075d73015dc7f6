package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"grc-platform/internal/records"
	"grc-platform/internal/risk"
)

// PostgresRepo reads the risk register and incident log.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func rangeClause(column string, r TimeRange) (string, []any) {
	var (
		where []string
		args  []any
	)
	if !r.From.IsZero() {
		args = append(args, r.From)
		where = append(where, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if !r.To.IsZero() {
		args = append(args, r.To)
		where = append(where, fmt.Sprintf("%s < $%d", column, len(args)))
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (p *PostgresRepo) ListRisks(ctx context.Context, r TimeRange) ([]RiskRow, error) {
	where, args := rangeClause("created_at", r)
	rows, err := p.db.QueryContext(ctx,
		"SELECT id, likelihood, impact, risk_score, status, approval_status, category, created_at FROM risks"+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RiskRow, 0)
	for rows.Next() {
		var (
			row          RiskRow
			status, appr string
		)
		if err := rows.Scan(&row.ID, &row.Likelihood, &row.Impact, &row.RiskScore, &status, &appr, &row.Category, &row.CreatedAt); err != nil {
			return nil, err
		}
		row.Status = risk.Status(status)
		row.ApprovalStatus = risk.ApprovalStatus(appr)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (p *PostgresRepo) ListIncidents(ctx context.Context, r TimeRange) ([]IncidentRow, error) {
	where, args := rangeClause("reported_at", r)
	rows, err := p.db.QueryContext(ctx,
		"SELECT id, severity, status, reported_at, resolved_at FROM incidents"+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]IncidentRow, 0)
	for rows.Next() {
		var (
			row              IncidentRow
			severity, status string
			resolved         sql.NullTime
		)
		if err := rows.Scan(&row.ID, &severity, &status, &row.ReportedAt, &resolved); err != nil {
			return nil, err
		}
		row.Severity = records.Severity(severity)
		row.Status = records.IncidentStatus(status)
		if resolved.Valid {
			t := resolved.Time
			row.ResolvedAt = &t
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
