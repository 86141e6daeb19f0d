package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the store inspects.
const (
	codeForeignKeyViolation = "23503"
	codeRaiseException      = "P0001"
)

// IsPgNoRowsError checks if error is a "no rows" error.
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsPgForeignKeyError checks if error is a foreign key violation.
func IsPgForeignKeyError(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

// IsPgRaisedError checks if error was raised by a plpgsql RAISE EXCEPTION,
// which is how the upsert function rejects unknown natural keys.
func IsPgRaisedError(err error) bool {
	return hasCode(err, codeRaiseException)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
