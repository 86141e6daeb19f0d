package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/colisage/internal/core"
)

// DefaultMaxWait bounds how long a batch waits for a pooled connection.
const DefaultMaxWait = 60 * time.Second

// DBTX is the query surface shared by the pool and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// executor returns the transaction in ctx, or pool when there is none.
func executor(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// TxManager runs commit batches in a transaction. It implements core.TxManager.
type TxManager struct {
	pool    *pgxpool.Pool
	maxWait time.Duration
}

var _ core.TxManager = (*TxManager)(nil)

// NewTxManager creates a transaction manager. A zero maxWait means DefaultMaxWait.
func NewTxManager(pool *pgxpool.Pool, maxWait time.Duration) *TxManager {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &TxManager{pool: pool, maxWait: maxWait}
}

// ExecTx runs fn inside a transaction and commits if fn returns nil.
// Acquiring the connection is bounded by the manager's wait budget; the
// transaction itself is bounded by ctx.
func (tm *TxManager) ExecTx(ctx context.Context, fn core.TxFn) error {
	acquireCtx, cancel := context.WithTimeout(ctx, tm.maxWait)
	conn, err := tm.pool.Acquire(acquireCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		// Rollback after a commit is a no-op returning ErrTxClosed.
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tx.Rollback(rbCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Warn("rollback failed", "error", err)
		}
	}()

	if err := fn(withTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Savepoint runs fn in a savepoint of the transaction in ctx. A failing fn
// rolls back to the savepoint and leaves the outer transaction usable.
func (tm *TxManager) Savepoint(ctx context.Context, fn core.TxFn) error {
	outer := txFromContext(ctx)
	if outer == nil {
		return errors.New("savepoint outside of a transaction")
	}

	sp, err := outer.Begin(ctx)
	if err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	if err := fn(withTx(ctx, sp)); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback to savepoint: %w (row error: %w)", rbErr, err)
		}
		return err
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}
