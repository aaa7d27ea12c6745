package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// TxFunc is the unit of work executed inside a transaction.
type TxFunc func(ctx context.Context, exec sqlx.ExtContext) error

// TxRunner runs units of work inside short-lived transactions.
type TxRunner struct {
	db      *sqlx.DB
	timeout time.Duration
	opts    *sql.TxOptions
}

// NewTxRunner builds a runner. A positive timeout bounds each transaction.
func NewTxRunner(db *sqlx.DB, timeout time.Duration) *TxRunner {
	return &TxRunner{db: db, timeout: timeout}
}

// WithinTx begins a transaction, runs fn and commits. Any error or panic rolls back.
func (r *TxRunner) WithinTx(ctx context.Context, fn TxFunc) (err error) {
	if r == nil || r.db == nil {
		return fmt.Errorf("transaction runner has no database")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	tx, err := r.db.BeginTxx(ctx, r.opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
