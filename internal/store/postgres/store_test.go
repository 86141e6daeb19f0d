package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "IM4", want: "IM4"},
		{in: "100%", want: `100\%`},
		{in: "IM_4", want: `IM\_4`},
		{in: `a\b`, want: `a\\b`},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := escapeLike(tt.in); got != tt.want {
				t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPgErrorClassification(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	fk := &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}
	raised := &pgconn.PgError{Code: "P0001", Message: "CURRENCY XYZ DOES NOT EXIST"}

	tests := []struct {
		name   string
		err    error
		fk     bool
		raised bool
		noRows bool
	}{
		{name: "duplicate", err: dup},
		{name: "foreign key", err: fk, fk: true},
		{name: "wrapped foreign key", err: fmt.Errorf("upsert: %w", fk), fk: true},
		{name: "raised", err: raised, raised: true},
		{name: "no rows", err: pgx.ErrNoRows, noRows: true},
		{name: "plain", err: errors.New("boom")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPgForeignKeyError(tt.err); got != tt.fk {
				t.Errorf("IsPgForeignKeyError() = %v, want %v", got, tt.fk)
			}
			if got := IsPgRaisedError(tt.err); got != tt.raised {
				t.Errorf("IsPgRaisedError() = %v, want %v", got, tt.raised)
			}
			if got := IsPgNoRowsError(tt.err); got != tt.noRows {
				t.Errorf("IsPgNoRowsError() = %v, want %v", got, tt.noRows)
			}
		})
	}
}

func TestFound(t *testing.T) {
	v, ok, err := found(42, nil, "thing")
	if v != 42 || !ok || err != nil {
		t.Errorf("found(hit) = %v, %v, %v", v, ok, err)
	}

	v, ok, err = found(42, pgx.ErrNoRows, "thing")
	if v != 0 || ok || err != nil {
		t.Errorf("found(miss) = %v, %v, %v; want zero, false, nil", v, ok, err)
	}

	boom := errors.New("boom")
	_, ok, err = found(42, boom, "thing")
	if ok || !errors.Is(err, boom) {
		t.Errorf("found(error) = %v, %v; want false, wrapped boom", ok, err)
	}
}

func TestSchemaDeclaresUpsertRejections(t *testing.T) {
	for _, msg := range []string{
		"FILE ID % DOES NOT EXIST",
		"HS CODE % DOES NOT EXIST",
		"CURRENCY % DOES NOT EXIST",
		"COUNTRY CODE % DOES NOT EXIST",
		"REGIME % DOES NOT EXIST",
		"colisages_natural_key UNIQUE (dossier_id, hs_code_id, item_no)",
	} {
		if !strings.Contains(schemaSQL, msg) {
			t.Errorf("schema.sql missing %q", msg)
		}
	}
}
