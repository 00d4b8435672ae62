// Package storage declares the persistence-neutral transaction port shared
// by the application services.
package storage

import "context"

// TxRunner executes fn inside one transaction.  Repository calls made with
// the context passed to fn join that transaction; the transaction commits
// when fn returns nil and rolls back otherwise.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTxRunner runs fn directly, with no transactional boundary.  Test
// helper.
type NopTxRunner struct{}

// WithinTx invokes fn with the unmodified context.
func (NopTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
