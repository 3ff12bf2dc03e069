package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpReadsPgxErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40001", ConstraintName: "items_held_qty_check", TableName: "items"}
	err := Wrap(CodeInternal, fmt.Errorf("reserve: %w", pgErr), "reserve failed")

	d := Dump(err)
	if d.Code != CodeInternal {
		t.Fatalf("expected typed code, got %q", d.Code)
	}
	if d.PGCode != "40001" || d.PGTable != "items" || d.PGConstraint != "items_held_qty_check" {
		t.Fatalf("unexpected pg fields %+v", d)
	}
	if !d.Retryable {
		t.Fatalf("serialization failure should be retryable")
	}
	if len(d.Chain) < 3 {
		t.Fatalf("expected full chain, got %v", d.Chain)
	}
}

func TestDumpReadsPqErrors(t *testing.T) {
	d := Dump(&pq.Error{Code: "23505", Constraint: "orders_pkey"})
	if d.PGCode != "23505" || d.PGConstraint != "orders_pkey" {
		t.Fatalf("unexpected pg fields %+v", d)
	}
	if d.Retryable {
		t.Fatalf("unique violation is not retryable")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
