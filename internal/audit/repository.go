package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PostgresRepo stores entries in audit_logs.
//
// The table is INSERT-only: a trigger rejects UPDATE and DELETE, and seq is a
// BIGSERIAL so concurrent inserts with equal timestamps still have a total order.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const auditColumns = `id, seq, action, entity_type, entity_id, user_id, user_email, ip_address, "timestamp", details`

func (r *PostgresRepo) Append(ctx context.Context, e Entry) (Entry, error) {
	const q = `
INSERT INTO audit_logs (id, action, entity_type, entity_id, user_id, user_email, ip_address, "timestamp", details)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING seq
`
	if err := r.db.QueryRowContext(ctx, q,
		e.ID,
		e.Action,
		e.EntityType,
		e.EntityID,
		e.UserID,
		e.UserEmail,
		e.IPAddress,
		e.Timestamp,
		nullJSON(e.Details),
	).Scan(&e.Seq); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *PostgresRepo) Query(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.EntityType != "" {
		where = append(where, "entity_type = "+arg(f.EntityType))
	}
	if f.EntityID != "" {
		where = append(where, "entity_id = "+arg(f.EntityID))
	}
	if f.Before != nil {
		if f.BeforeSeq > 0 {
			where = append(where, fmt.Sprintf(`("timestamp", seq) < (%s, %s)`, arg(*f.Before), arg(f.BeforeSeq)))
		} else {
			where = append(where, `"timestamp" < `+arg(*f.Before))
		}
	}

	q := "SELECT " + auditColumns + " FROM audit_logs"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += ` ORDER BY "timestamp" DESC, seq DESC LIMIT ` + arg(f.Limit)

	return r.list(ctx, q, args...)
}

func (r *PostgresRepo) Since(ctx context.Context, afterSeq int64, limit int) ([]Entry, error) {
	q := "SELECT " + auditColumns + " FROM audit_logs WHERE seq > $1 ORDER BY seq ASC LIMIT $2"
	return r.list(ctx, q, afterSeq, limit)
}

func (r *PostgresRepo) list(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var (
			e       Entry
			details []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.Seq,
			&e.Action,
			&e.EntityType,
			&e.EntityID,
			&e.UserID,
			&e.UserEmail,
			&e.IPAddress,
			&e.Timestamp,
			&details,
		); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
