package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the import tables and the upsert function if they are
// missing. The script is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	// Exec without arguments uses the simple protocol, which accepts a
	// multi-statement script.
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	slog.Info("database schema applied")
	return nil
}
