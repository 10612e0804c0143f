package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// busyAttempts bounds how often a BUSY statement or transaction is
// retried before the error is surfaced. The linear 100/200/300 ms
// backoff stays well under the partition writer's scroll cadence.
const busyAttempts = 3

// IsBusy reports whether err is an SQLite lock contention error. The
// modernc driver exposes these only through the message text.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RunTx runs fn inside a transaction, retrying the whole transaction
// on lock contention. fn must be safe to re-run from scratch.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= busyAttempts; attempt++ {
		if err = runOnce(ctx, db, fn); err == nil {
			return nil
		}
		if !IsBusy(err) {
			return err
		}
		if attempt < busyAttempts {
			if serr := sleepCtx(ctx, time.Duration(attempt)*100*time.Millisecond); serr != nil {
				return fmt.Errorf("dbopen: context cancelled during retry: %w", serr)
			}
		}
	}
	return fmt.Errorf("dbopen: transaction still busy after %d attempts: %w", busyAttempts, err)
}

func runOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

// Exec runs one statement with the same busy retry as RunTx.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var err error
	for attempt := 1; attempt <= busyAttempts; attempt++ {
		var result sql.Result
		if result, err = db.ExecContext(ctx, query, args...); err == nil {
			return result, nil
		}
		if !IsBusy(err) {
			return nil, err
		}
		if attempt < busyAttempts {
			if serr := sleepCtx(ctx, time.Duration(attempt)*100*time.Millisecond); serr != nil {
				return nil, fmt.Errorf("dbopen: context cancelled during retry: %w", serr)
			}
		}
	}
	return nil, fmt.Errorf("dbopen: statement still busy after %d attempts: %w", busyAttempts, err)
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
