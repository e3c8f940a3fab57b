package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/josh-kwaku/session-escrow/internal/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

// Querier is satisfied by both *sql.DB and *sql.Tx, so read helpers can run
// inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nullableLimit(limit int) sql.NullInt64 {
	if limit <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(limit), Valid: true}
}

// RunInTx runs fn inside a transaction and commits it. The whole unit is
// retried with exponential backoff when it fails on an optimistic version
// conflict, a serialization failure or a deadlock; any other error is
// returned as is.
func RunInTx(ctx context.Context, db *sql.DB, maxRetries uint64, fn func(tx *sql.Tx) error) error {
	op := func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("RunInTx: begin tx: %w", err))
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return retryable(err)
		}
		if err := tx.Commit(); err != nil {
			return retryable(fmt.Errorf("RunInTx: commit: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
}

func retryable(err error) error {
	if errors.Is(err, domain.ErrVersionConflict) || IsRetryable(err) {
		return err
	}
	return backoff.Permanent(err)
}
