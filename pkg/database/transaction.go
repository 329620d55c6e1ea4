package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxFunc is executed inside a transaction.
type TxFunc func(pgx.Tx) error

// TxRunner runs fn inside one transaction: commit when fn returns nil,
// rollback otherwise. Services depend on this instead of the pool so they
// can be exercised without a database.
type TxRunner interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

// PoolTxRunner is the pgxpool backed TxRunner.
type PoolTxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *PoolTxRunner {
	return &PoolTxRunner{pool: pool}
}

func (r *PoolTxRunner) WithinTx(ctx context.Context, fn TxFunc) error {
	return WithTransaction(ctx, r.pool, fn)
}

// WithTransaction wraps fn in a transaction.
// Rollback on error or panic, commit otherwise.
func WithTransaction(ctx context.Context, pool *pgxpool.Pool, fn TxFunc) (err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// WithTransactionResult is WithTransaction for functions returning a value.
func WithTransactionResult[T any](ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) (T, error)) (T, error) {
	var result T

	err := WithTransaction(ctx, pool, func(tx pgx.Tx) error {
		var fnErr error
		result, fnErr = fn(tx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}
