package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPgErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("insert department: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(wrapped) {
		t.Fatalf("expected unique violation through wrapping")
	}
	if IsForeignKeyViolation(wrapped) || IsCheckViolation(wrapped) {
		t.Fatalf("unexpected classification")
	}
	if IsUniqueViolation(errors.New("plain")) {
		t.Fatalf("plain errors are not pg errors")
	}
	if !IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}) || !IsCheckViolation(&pgconn.PgError{Code: "23514"}) {
		t.Fatalf("expected fk and check classification")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("decide: %w", &pgconn.PgError{Code: "40001"})) {
		t.Fatalf("serialization failure must be retryable")
	}
	if !IsRetryable(&pgconn.PgError{Code: "40P01"}) {
		t.Fatalf("deadlock must be retryable")
	}
	if IsRetryable(&pgconn.PgError{Code: "23505"}) || IsRetryable(errors.New("plain")) {
		t.Fatalf("only transaction conflicts are retryable")
	}
}

func TestConstraintName(t *testing.T) {
	err := fmt.Errorf("insert risk: %w", &pgconn.PgError{Code: "23503", ConstraintName: "risks_objective_id_fkey"})
	if got := ConstraintName(err); got != "risks_objective_id_fkey" {
		t.Fatalf("unexpected constraint %q", got)
	}
	if ConstraintName(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no constraint")
	}
}
