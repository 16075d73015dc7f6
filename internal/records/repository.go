package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"grc-platform/internal/apperr"
	"grc-platform/pkg/utils"

	"github.com/jackc/pgx/v5/pgtype"
)

// PostgresRepo stores every record kind in its own table.
type PostgresRepo struct {
	db    *sql.DB
	types *pgtype.Map
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, types: pgtype.NewMap()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// exec maps driver errors onto package sentinels and reports a missing row on updates.
func (p *PostgresRepo) exec(ctx context.Context, update bool, q string, args ...any) error {
	res, err := p.db.ExecContext(ctx, q, args...)
	if err != nil {
		return writeErr(err)
	}
	if update {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// controlPairKey is the unique constraint on policy_control_mappings.
const controlPairKey = "policy_control_mappings_pair_key"

// writeErr maps integrity violations onto package sentinels. Every other
// unique constraint is a code column.
func writeErr(err error) error {
	switch {
	case utils.IsUniqueViolation(err):
		if utils.ConstraintName(err) == controlPairKey {
			return ErrAlreadyMapped
		}
		return ErrDuplicateCode
	case utils.IsForeignKeyViolation(err):
		return fmt.Errorf("%w (%s)", ErrBadReference, utils.ConstraintName(err))
	case utils.IsCheckViolation(err):
		return apperr.Validation("rejected by constraint %s", utils.ConstraintName(err))
	}
	return err
}

func listQuery(table, columns, statusColumn, order string, f ListFilter) (string, []any) {
	q := "SELECT " + columns + " FROM " + table
	var args []any
	if statusColumn != "" && f.Status != "" {
		args = append(args, f.Status)
		q += " WHERE " + statusColumn + " = $1"
	}
	args = append(args, f.Limit)
	q += fmt.Sprintf(" ORDER BY %s LIMIT $%d", order, len(args))
	return q, args
}

func collect[T any](rows *sql.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func getOne[T any](row *sql.Row, scan func(rowScanner) (T, error)) (T, error) {
	v, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, ErrNotFound
	}
	return v, err
}

/* ===================== POLICIES ===================== */

const policyColumns = `id, title, description, category, version, status, document_url, review_date,
approval_date, owner_id, created_at, updated_at`

func (p *PostgresRepo) CreatePolicy(ctx context.Context, v Policy) error {
	return p.exec(ctx, false, `
INSERT INTO policies (id, title, description, category, version, status, document_url, review_date,
	approval_date, owner_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		v.ID, v.Title, v.Description, v.Category, v.Version, string(v.Status), v.DocumentURL,
		v.ReviewDate, v.ApprovalDate, v.OwnerID, v.CreatedAt, v.UpdatedAt)
}

func (p *PostgresRepo) GetPolicy(ctx context.Context, id string) (Policy, error) {
	return getOne(p.db.QueryRowContext(ctx, "SELECT "+policyColumns+" FROM policies WHERE id = $1", id), scanPolicy)
}

func (p *PostgresRepo) ListPolicies(ctx context.Context, f ListFilter) ([]Policy, error) {
	q, args := listQuery("policies", policyColumns, "status", "created_at DESC", f)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPolicy)
}

func (p *PostgresRepo) UpdatePolicy(ctx context.Context, v Policy) error {
	return p.exec(ctx, true, `
UPDATE policies SET title = $2, description = $3, category = $4, version = $5, status = $6,
	document_url = $7, review_date = $8, approval_date = $9, owner_id = $10, updated_at = $11
WHERE id = $1`,
		v.ID, v.Title, v.Description, v.Category, v.Version, string(v.Status), v.DocumentURL,
		v.ReviewDate, v.ApprovalDate, v.OwnerID, v.UpdatedAt)
}

func scanPolicy(row rowScanner) (Policy, error) {
	var (
		v                    Policy
		status               string
		docURL, owner        sql.NullString
		reviewDate, approved sql.NullTime
	)
	if err := row.Scan(&v.ID, &v.Title, &v.Description, &v.Category, &v.Version, &status,
		&docURL, &reviewDate, &approved, &owner, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return Policy{}, err
	}
	v.Status = PolicyStatus(status)
	v.DocumentURL = nullString(docURL)
	v.ReviewDate = nullTime(reviewDate)
	v.ApprovalDate = nullTime(approved)
	v.OwnerID = nullString(owner)
	v.CreatedAt, v.UpdatedAt = v.CreatedAt.UTC(), v.UpdatedAt.UTC()
	return v, nil
}

/* ===================== COMPLIANCE REQUIREMENTS ===================== */

const requirementColumns = `id, requirement_code, title, description, source, category, status, due_date,
evidence_url, owner_id, created_at, updated_at`

func (p *PostgresRepo) CreateRequirement(ctx context.Context, v Requirement) error {
	return p.exec(ctx, false, `
INSERT INTO compliance_requirements (id, requirement_code, title, description, source, category, status,
	due_date, evidence_url, owner_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		v.ID, v.RequirementCode, v.Title, v.Description, v.Source, v.Category, string(v.Status),
		v.DueDate, v.EvidenceURL, v.OwnerID, v.CreatedAt, v.UpdatedAt)
}

func (p *PostgresRepo) GetRequirement(ctx context.Context, id string) (Requirement, error) {
	return getOne(p.db.QueryRowContext(ctx, "SELECT "+requirementColumns+" FROM compliance_requirements WHERE id = $1", id), scanRequirement)
}

func (p *PostgresRepo) ListRequirements(ctx context.Context, f ListFilter) ([]Requirement, error) {
	q, args := listQuery("compliance_requirements", requirementColumns, "status", "created_at DESC", f)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRequirement)
}

func (p *PostgresRepo) UpdateRequirement(ctx context.Context, v Requirement) error {
	return p.exec(ctx, true, `
UPDATE compliance_requirements SET requirement_code = $2, title = $3, description = $4, source = $5,
	category = $6, status = $7, due_date = $8, evidence_url = $9, owner_id = $10, updated_at = $11
WHERE id = $1`,
		v.ID, v.RequirementCode, v.Title, v.Description, v.Source, v.Category, string(v.Status),
		v.DueDate, v.EvidenceURL, v.OwnerID, v.UpdatedAt)
}

func scanRequirement(row rowScanner) (Requirement, error) {
	var (
		v               Requirement
		status          string
		evidence, owner sql.NullString
		due             sql.NullTime
	)
	if err := row.Scan(&v.ID, &v.RequirementCode, &v.Title, &v.Description, &v.Source, &v.Category,
		&status, &due, &evidence, &owner, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return Requirement{}, err
	}
	v.Status = RequirementStatus(status)
	v.DueDate = nullTime(due)
	v.EvidenceURL = nullString(evidence)
	v.OwnerID = nullString(owner)
	v.CreatedAt, v.UpdatedAt = v.CreatedAt.UTC(), v.UpdatedAt.UTC()
	return v, nil
}

/* ===================== INCIDENTS ===================== */

const incidentColumns = `id, title, description, severity, status, assigned_to, reported_by, reported_at,
resolved_at, root_cause, corrective_action, created_at, updated_at`

func (p *PostgresRepo) CreateIncident(ctx context.Context, v Incident) error {
	return p.exec(ctx, false, `
INSERT INTO incidents (id, title, description, severity, status, assigned_to, reported_by, reported_at,
	resolved_at, root_cause, corrective_action, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		v.ID, v.Title, v.Description, string(v.Severity), string(v.Status), v.AssignedTo, v.ReportedBy,
		v.ReportedAt, v.ResolvedAt, v.RootCause, v.CorrectiveAction, v.CreatedAt, v.UpdatedAt)
}

func (p *PostgresRepo) GetIncident(ctx context.Context, id string) (Incident, error) {
	return getOne(p.db.QueryRowContext(ctx, "SELECT "+incidentColumns+" FROM incidents WHERE id = $1", id), scanIncident)
}

func (p *PostgresRepo) ListIncidents(ctx context.Context, f ListFilter) ([]Incident, error) {
	q, args := listQuery("incidents", incidentColumns, "status", "reported_at DESC", f)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanIncident)
}

func (p *PostgresRepo) UpdateIncident(ctx context.Context, v Incident) error {
	return p.exec(ctx, true, `
UPDATE incidents SET title = $2, description = $3, severity = $4, status = $5, assigned_to = $6,
	resolved_at = $7, root_cause = $8, corrective_action = $9, updated_at = $10
WHERE id = $1`,
		v.ID, v.Title, v.Description, string(v.Severity), string(v.Status), v.AssignedTo,
		v.ResolvedAt, v.RootCause, v.CorrectiveAction, v.UpdatedAt)
}

func scanIncident(row rowScanner) (Incident, error) {
	var (
		v                Incident
		severity, status string
		assigned, by     sql.NullString
		resolved         sql.NullTime
	)
	if err := row.Scan(&v.ID, &v.Title, &v.Description, &severity, &status, &assigned, &by,
		&v.ReportedAt, &resolved, &v.RootCause, &v.CorrectiveAction, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return Incident{}, err
	}
	v.Severity = Severity(severity)
	v.Status = IncidentStatus(status)
	v.AssignedTo = nullString(assigned)
	v.ReportedBy = nullString(by)
	v.ResolvedAt = nullTime(resolved)
	v.ReportedAt = v.ReportedAt.UTC()
	v.CreatedAt, v.UpdatedAt = v.CreatedAt.UTC(), v.UpdatedAt.UTC()
	return v, nil
}

/* ===================== OBJECTIVES ===================== */

const objectiveColumns = `id, title, description, department, fiscal_year, owner_id, status, created_at, updated_at`

func (p *PostgresRepo) CreateObjective(ctx context.Context, v Objective) error {
	return p.exec(ctx, false, `
INSERT INTO corporate_objectives (id, title, description, department, fiscal_year, owner_id, status,
	created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.Title, v.Description, v.Department, v.FiscalYear, v.OwnerID, string(v.Status),
		v.CreatedAt, v.UpdatedAt)
}

func (p *PostgresRepo) GetObjective(ctx context.Context, id string) (Objective, error) {
	return getOne(p.db.QueryRowContext(ctx, "SELECT "+objectiveColumns+" FROM corporate_objectives WHERE id = $1", id), scanObjective)
}

func (p *PostgresRepo) ListObjectives(ctx context.Context, f ListFilter) ([]Objective, error) {
	q, args := listQuery("corporate_objectives", objectiveColumns, "status", "created_at DESC", f)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanObjective)
}

func (p *PostgresRepo) UpdateObjective(ctx context.Context, v Objective) error {
	return p.exec(ctx, true, `
UPDATE corporate_objectives SET title = $2, description = $3, department = $4, fiscal_year = $5,
	owner_id = $6, status = $7, updated_at = $8
WHERE id = $1`,
		v.ID, v.Title, v.Description, v.Department, v.FiscalYear, v.OwnerID, string(v.Status), v.UpdatedAt)
}

func scanObjective(row rowScanner) (Objective, error) {
	var (
		v      Objective
		status string
	)
	if err := row.Scan(&v.ID, &v.Title, &v.Description, &v.Department, &v.FiscalYear, &v.OwnerID,
		&status, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return Objective{}, err
	}
	v.Status = ObjectiveStatus(status)
	v.CreatedAt, v.UpdatedAt = v.CreatedAt.UTC(), v.UpdatedAt.UTC()
	return v, nil
}

/* ===================== DEPARTMENTS ===================== */

const departmentColumns = `id, name, code, description, head_of_department_id, created_at, updated_at`

func (p *PostgresRepo) CreateDepartment(ctx context.Context, v Department) error {
	return p.exec(ctx, false, `
INSERT INTO departments (id, name, code, description, head_of_department_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.Name, v.Code, v.Description, v.HeadOfDepartmentID, v.CreatedAt, v.UpdatedAt)
}

func (p *PostgresRepo) GetDepartment(ctx context.Context, id string) (Department, error) {
	return getOne(p.db.QueryRowContext(ctx, "SELECT "+departmentColumns+" FROM departments WHERE id = $1", id), scanDepartment)
}

func (p *PostgresRepo) ListDepartments(ctx context.Context, f ListFilter) ([]Department, error) {
	q, args := listQuery("departments", departmentColumns, "", "name ASC", f)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDepartment)
}

func (p *PostgresRepo) UpdateDepartment(ctx context.Context, v Department) error {
	return p.exec(ctx, true, `
UPDATE departments SET name = $2, code = $3, description = $4, head_of_department_id = $5, updated_at = $6
WHERE id = $1`,
		v.ID, v.Name, v.Code, v.Description, v.HeadOfDepartmentID, v.UpdatedAt)
}

func scanDepartment(row rowScanner) (Department, error) {
	var (
		v    Department
		head sql.NullString
	)
	if err := row.Scan(&v.ID, &v.Name, &v.Code, &v.Description, &head, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return Department{}, err
	}
	v.HeadOfDepartmentID = nullString(head)
	v.CreatedAt, v.UpdatedAt = v.CreatedAt.UTC(), v.UpdatedAt.UTC()
	return v, nil
}

/* ===================== DOCUMENTS ===================== */

const documentColumns = `id, file_name, file_path, file_size, file_type, category, description, tags,
uploaded_by, created_at, updated_at`

func (p *PostgresRepo) CreateDocument(ctx context.Context, v Document) error {
	return p.exec(ctx, false, `
INSERT INTO documents (id, file_name, file_path, file_size, file_type, category, description, tags,
	uploaded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		v.ID, v.FileName, v.FilePath, v.FileSize, v.FileType, v.Category, v.Description, v.Tags,
		v.UploadedBy, v.CreatedAt, v.UpdatedAt)
}

func (p *PostgresRepo) GetDocument(ctx context.Context, id string) (Document, error) {
	return getOne(p.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = $1", id), p.scanDocument)
}

func (p *PostgresRepo) ListDocuments(ctx context.Context, f ListFilter) ([]Document, error) {
	q, args := listQuery("documents", documentColumns, "", "created_at DESC", f)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, p.scanDocument)
}

func (p *PostgresRepo) UpdateDocument(ctx context.Context, v Document) error {
	return p.exec(ctx, true, `
UPDATE documents SET file_name = $2, file_path = $3, file_size = $4, file_type = $5, category = $6,
	description = $7, tags = $8, updated_at = $9
WHERE id = $1`,
		v.ID, v.FileName, v.FilePath, v.FileSize, v.FileType, v.Category, v.Description, v.Tags, v.UpdatedAt)
}

// scanDocument decodes the text[] tags column through pgtype; database/sql has no array scanner.
func (p *PostgresRepo) scanDocument(row rowScanner) (Document, error) {
	var (
		v    Document
		by   sql.NullString
		tags []string
	)
	if err := row.Scan(&v.ID, &v.FileName, &v.FilePath, &v.FileSize, &v.FileType, &v.Category,
		&v.Description, p.types.SQLScanner(&tags), &by, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return Document{}, err
	}
	if tags == nil {
		tags = []string{}
	}
	v.Tags = tags
	v.UploadedBy = nullString(by)
	v.CreatedAt, v.UpdatedAt = v.CreatedAt.UTC(), v.UpdatedAt.UTC()
	return v, nil
}

/* ===================== CONTROLS ===================== */

const controlColumns = `id, control_code, title, description, category, control_type, status, owner_id,
created_at, updated_at`

func (p *PostgresRepo) CreateControl(ctx context.Context, v Control) error {
	return p.exec(ctx, false, `
INSERT INTO controls (id, control_code, title, description, category, control_type, status, owner_id,
	created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		v.ID, v.ControlCode, v.Title, v.Description, v.Category, string(v.ControlType), string(v.Status),
		v.OwnerID, v.CreatedAt, v.UpdatedAt)
}

func (p *PostgresRepo) GetControl(ctx context.Context, id string) (Control, error) {
	return getOne(p.db.QueryRowContext(ctx, "SELECT "+controlColumns+" FROM controls WHERE id = $1", id), scanControl)
}

func (p *PostgresRepo) ListControls(ctx context.Context, f ListFilter) ([]Control, error) {
	q, args := listQuery("controls", controlColumns, "status", "control_code ASC", f)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanControl)
}

func (p *PostgresRepo) UpdateControl(ctx context.Context, v Control) error {
	return p.exec(ctx, true, `
UPDATE controls SET control_code = $2, title = $3, description = $4, category = $5, control_type = $6,
	status = $7, owner_id = $8, updated_at = $9
WHERE id = $1`,
		v.ID, v.ControlCode, v.Title, v.Description, v.Category, string(v.ControlType), string(v.Status),
		v.OwnerID, v.UpdatedAt)
}

func scanControl(row rowScanner) (Control, error) {
	var (
		v            Control
		kind, status string
		owner        sql.NullString
	)
	if err := row.Scan(&v.ID, &v.ControlCode, &v.Title, &v.Description, &v.Category, &kind, &status,
		&owner, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return Control{}, err
	}
	v.ControlType = ControlType(kind)
	v.Status = ControlStatus(status)
	v.OwnerID = nullString(owner)
	v.CreatedAt, v.UpdatedAt = v.CreatedAt.UTC(), v.UpdatedAt.UTC()
	return v, nil
}

const mappingColumns = `id, policy_id, control_id, mapped_by, created_at`

func (p *PostgresRepo) CreateControlMapping(ctx context.Context, v ControlMapping) error {
	return p.exec(ctx, false, `
INSERT INTO policy_control_mappings (id, policy_id, control_id, mapped_by, created_at)
VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.PolicyID, v.ControlID, v.MappedBy, v.CreatedAt)
}

func (p *PostgresRepo) ListControlMappings(ctx context.Context, f MappingFilter) ([]ControlMapping, error) {
	var (
		where []string
		args  []any
	)
	if f.PolicyID != "" {
		args = append(args, f.PolicyID)
		where = append(where, fmt.Sprintf("policy_id = $%d", len(args)))
	}
	if f.ControlID != "" {
		args = append(args, f.ControlID)
		where = append(where, fmt.Sprintf("control_id = $%d", len(args)))
	}
	q := "SELECT " + mappingColumns + " FROM policy_control_mappings"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := p.db.QueryContext(ctx, q+" ORDER BY created_at ASC", args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMapping)
}

func (p *PostgresRepo) DeleteControlMapping(ctx context.Context, policyID, controlID string) (ControlMapping, error) {
	q := `DELETE FROM policy_control_mappings WHERE policy_id = $1 AND control_id = $2 RETURNING ` + mappingColumns
	return getOne(p.db.QueryRowContext(ctx, q, policyID, controlID), scanMapping)
}

func scanMapping(row rowScanner) (ControlMapping, error) {
	var (
		v  ControlMapping
		by sql.NullString
	)
	if err := row.Scan(&v.ID, &v.PolicyID, &v.ControlID, &by, &v.CreatedAt); err != nil {
		return ControlMapping{}, err
	}
	v.MappedBy = nullString(by)
	v.CreatedAt = v.CreatedAt.UTC()
	return v, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
