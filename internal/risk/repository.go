package risk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"grc-platform/internal/apperr"
	"grc-platform/pkg/utils"
)

// PostgresRepo stores risks in the risks table.
// risk_score is written by the service and also guarded by a CHECK constraint
// (risk_score = likelihood * impact).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const riskColumns = `id, title, description, category, likelihood, impact, risk_score, status, approval_status,
approved_by, approved_at, mitigation_plan, objective_id, owner_id, risk_champion_id, created_at, updated_at`

func (p *PostgresRepo) Create(ctx context.Context, r Risk) error {
	const q = `
INSERT INTO risks (id, title, description, category, likelihood, impact, risk_score, status, approval_status,
	mitigation_plan, objective_id, owner_id, risk_champion_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`
	_, err := p.db.ExecContext(ctx, q,
		r.ID, r.Title, r.Description, r.Category, r.Likelihood, r.Impact, r.RiskScore,
		string(r.Status), string(r.ApprovalStatus), r.MitigationPlan,
		r.ObjectiveID, r.OwnerID, r.RiskChampionID, r.CreatedAt, r.UpdatedAt,
	)
	return writeErr(err)
}

func (p *PostgresRepo) Get(ctx context.Context, id string) (Risk, error) {
	q := "SELECT " + riskColumns + " FROM risks WHERE id = $1"
	r, err := scanRisk(p.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Risk{}, ErrNotFound
	}
	return r, err
}

func (p *PostgresRepo) List(ctx context.Context, f ListFilter) ([]Risk, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.ApprovalStatus != "" {
		where = append(where, "approval_status = "+arg(string(f.ApprovalStatus)))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(f.Category))
	}
	if f.OwnerID != "" {
		where = append(where, "owner_id = "+arg(f.OwnerID))
	}

	q := "SELECT " + riskColumns + " FROM risks"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY risk_score DESC, created_at DESC LIMIT " + arg(f.Limit)

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Risk, 0)
	for rows.Next() {
		r, err := scanRisk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresRepo) Update(ctx context.Context, r Risk) error {
	const q = `
UPDATE risks SET
	title = $2, description = $3, category = $4, likelihood = $5, impact = $6, risk_score = $7,
	status = $8, mitigation_plan = $9, objective_id = $10, owner_id = $11, risk_champion_id = $12,
	updated_at = $13
WHERE id = $1
`
	res, err := p.db.ExecContext(ctx, q,
		r.ID, r.Title, r.Description, r.Category, r.Likelihood, r.Impact, r.RiskScore,
		string(r.Status), r.MitigationPlan, r.ObjectiveID, r.OwnerID, r.RiskChampionID, r.UpdatedAt,
	)
	if err != nil {
		return writeErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Decide runs in a transaction: the row is locked so two approvers racing on
// the same risk see exactly one winner.
func (p *PostgresRepo) Decide(ctx context.Context, id string, d Decision) (Risk, error) {
	var out Risk
	err := utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var current string
		if err := tx.QueryRowContext(ctx, `SELECT approval_status FROM risks WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if ApprovalStatus(current) != ApprovalPending {
			return ErrInvalidTransition
		}

		q := `
UPDATE risks SET approval_status = $2, approved_by = $3, approved_at = $4, updated_at = $4
WHERE id = $1
RETURNING ` + riskColumns
		r, err := scanRisk(tx.QueryRowContext(ctx, q, id, string(d.Status), d.DecidedBy, d.DecidedAt))
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return Risk{}, err
	}
	return out, nil
}

// writeErr turns integrity violations into caller errors. The only foreign key
// on risks is objective_id; CHECKs cover the rating range, score and enums.
func writeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case utils.IsForeignKeyViolation(err):
		return ErrUnknownObjective
	case utils.IsCheckViolation(err):
		return apperr.Validation("risk rejected by constraint %s", utils.ConstraintName(err))
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRisk(row rowScanner) (Risk, error) {
	var (
		r              Risk
		status, appr   string
		approvedAt     sql.NullTime
		approvedBy     sql.NullString
		objectiveID    sql.NullString
		ownerID        sql.NullString
		riskChampionID sql.NullString
	)
	if err := row.Scan(
		&r.ID,
		&r.Title,
		&r.Description,
		&r.Category,
		&r.Likelihood,
		&r.Impact,
		&r.RiskScore,
		&status,
		&appr,
		&approvedBy,
		&approvedAt,
		&r.MitigationPlan,
		&objectiveID,
		&ownerID,
		&riskChampionID,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return Risk{}, err
	}
	r.Status = Status(status)
	r.ApprovalStatus = ApprovalStatus(appr)
	r.ApprovedBy = nullString(approvedBy)
	if approvedAt.Valid {
		t := approvedAt.Time.UTC()
		r.ApprovedAt = &t
	}
	r.ObjectiveID = nullString(objectiveID)
	r.OwnerID = nullString(ownerID)
	r.RiskChampionID = nullString(riskChampionID)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
