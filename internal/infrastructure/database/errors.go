package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	// ErrQueryTimeout is returned when the server cancelled a statement
	// because it ran past statement_timeout.
	ErrQueryTimeout = errors.New("query timeout")

	// ErrOperational marks connection level failures that a retry on a
	// fresh connection may fix.
	ErrOperational = errors.New("database operational error")
)

// Classify maps a pgx error onto ErrQueryTimeout or ErrOperational while
// keeping the original error in the chain. Other errors pass through.
func Classify(err error) error {
	if err == nil || IsRetryable(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "57014":
			return fmt.Errorf("%w: %w", ErrQueryTimeout, err)
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "40001",
			pgErr.Code == "40P01",
			pgErr.Code == "57P01":
			return fmt.Errorf("%w: %w", ErrOperational, err)
		}
		return err
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", ErrOperational, err)
	}

	return err
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrQueryTimeout) || errors.Is(err, ErrOperational)
}

// RetryPolicy bounds the retries of heavy read paths.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: 2 * time.Second, MaxInterval: 30 * time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Retry runs op until it succeeds, returns a non retryable error, or the
// policy is exhausted.
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := Classify(op(ctx))
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("[DATABASE] Retrying after operational error")
		return err
	}, policy.backOff(ctx))
}

// WithRecycledConn runs fn on a dedicated pooled connection, retrying per
// policy. A connection whose attempt failed with a retryable error is
// closed and removed from the pool so the next attempt starts clean.
func WithRecycledConn(ctx context.Context, pool *pgxpool.Pool, policy RetryPolicy, fn func(ctx context.Context, conn *pgxpool.Conn) error) error {
	return Retry(ctx, policy, func(ctx context.Context) error {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("%w: acquire: %w", ErrOperational, err)
		}

		err = Classify(fn(ctx, conn))
		if err != nil && IsRetryable(err) {
			raw := conn.Hijack()
			_ = raw.Close(context.Background())
			return err
		}

		conn.Release()
		return err
	})
}
