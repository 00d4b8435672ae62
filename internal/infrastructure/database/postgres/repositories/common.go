// Package repositories implements the persistence ports over PostgreSQL.
package repositories

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/ecocomply/compliance-engine/internal/infrastructure/database/postgres"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/errors"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

type baseRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

// executor returns the transaction bound to ctx, or the pool.
func (r *baseRepo) executor(ctx context.Context) postgres.Executor {
	return postgres.ExecutorFrom(ctx, r.conn.DB())
}

// uniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation, optionally on one named constraint.
func uniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// wrapDB converts a driver error into the transient database error code,
// passing sql.ErrNoRows through untouched so callers can map it to their own
// not-found code.
func wrapDB(err error, msg string) error {
	if err == nil || err == sql.ErrNoRows {
		return err
	}
	return errors.Wrap(err, errors.ErrCodeDatabaseError, msg)
}
