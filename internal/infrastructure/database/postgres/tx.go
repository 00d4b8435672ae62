package postgres

import (
	"context"
	"database/sql"

	"github.com/ecocomply/compliance-engine/pkg/errors"
)

type txKey struct{}

// TxRunner implements storage.TxRunner on the connection pool.  The open
// transaction rides the context, so repositories transparently join it.
type TxRunner struct {
	db *sql.DB
}

// NewTxRunner builds a TxRunner over the pool.
func NewTxRunner(conn *Connection) *TxRunner {
	return &TxRunner{db: conn.DB()}
}

// WithinTx runs fn inside one transaction.  A nested call joins the
// enclosing transaction instead of opening a second one.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "rollback failed: "+rbErr.Error())
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

func txFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// ExecutorFrom returns the transaction bound to ctx, or the pool when none
// is open.
func ExecutorFrom(ctx context.Context, db *sql.DB) Executor {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return db
}

// Executor abstracts sql.DB and sql.Tx.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
