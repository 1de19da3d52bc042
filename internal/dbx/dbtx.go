// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// and helpers that run functions inside a unit of work.
package dbx

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/objcatalog/internal/common"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Beginner opens transactions. *sql.DB satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
// Begin and commit failures are reported as *common.TransactionError.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db Beginner, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return &common.TransactionError{Op: "begin", Cause: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = &common.TransactionError{Op: "commit", Cause: cerr}
		}
	}()

	err = fn(ctx, tx)
	return err
}

// InTx joins the caller's unit of work when outer is non-nil, otherwise it
// opens (and owns) a new transaction via WithTx. Only the owner commits or
// rolls back; a caller that passed its own handle is responsible for that.
func InTx(ctx context.Context, db Beginner, outer DBTX, fn func(ctx context.Context, tx DBTX) error) error {
	if outer != nil {
		return fn(ctx, outer)
	}
	return WithTx(ctx, db, nil, fn)
}
