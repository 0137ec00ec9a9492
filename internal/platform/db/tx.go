package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxStarter is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxStarter interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxOption adjusts the options a transaction is started with.
type TxOption func(*pgx.TxOptions)

// Serializable upgrades the isolation level for whole-table rewrites.
func Serializable() TxOption {
	return func(o *pgx.TxOptions) { o.IsoLevel = pgx.Serializable }
}

// WithTx runs fn in a RepeatableRead transaction unless opts say otherwise.
// The transaction is rolled back whenever fn fails; fn's error is returned unwrapped.
func WithTx(ctx context.Context, conn TxStarter, fn func(pgx.Tx) error, opts ...TxOption) error {
	txOpts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead}
	for _, opt := range opts {
		opt(&txOpts)
	}
	tx, err := conn.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
