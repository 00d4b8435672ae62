package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/ecocomply/compliance-engine/internal/domain/obligation"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/database/postgres"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

type obligationRepo struct {
	baseRepo
}

// NewObligationRepo builds the read-only obligation repository.
func NewObligationRepo(conn *postgres.Connection, log logging.Logger) obligation.Repository {
	return &obligationRepo{baseRepo{conn: conn, log: log}}
}

func (r *obligationRepo) FindByID(ctx context.Context, id common.ID) (*obligation.Obligation, error) {
	query := `
		SELECT id, tenant_id, site_id, category, title, status, created_at, updated_at
		FROM obligations WHERE id = $1`

	var o obligation.Obligation
	err := r.executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.TenantID, &o.SiteID, &o.Category, &o.Title, &o.Status,
		&o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCodeObligationNotFound, "obligation %s not found", id)
	}
	if err != nil {
		return nil, wrapDB(err, "failed to load obligation")
	}
	return &o, nil
}

func (r *obligationRepo) CountBySite(ctx context.Context, siteID common.ID) (int, error) {
	query := `SELECT COUNT(*) FROM obligations WHERE site_id = $1 AND status = $2`

	var n int
	err := r.executor(ctx).QueryRowContext(ctx, query, siteID, obligation.StatusActive).Scan(&n)
	if err != nil {
		return 0, wrapDB(err, "failed to count obligations")
	}
	return n, nil
}

func (r *obligationRepo) ListSites(ctx context.Context, tenantID common.TenantID) ([]common.ID, error) {
	query := `
		SELECT DISTINCT site_id FROM obligations
		WHERE tenant_id = $1 AND status = $2 ORDER BY site_id`

	rows, err := r.executor(ctx).QueryContext(ctx, query, tenantID, obligation.StatusActive)
	if err != nil {
		return nil, wrapDB(err, "failed to list sites")
	}
	defer rows.Close()

	var out []common.ID
	for rows.Next() {
		var id common.ID
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDB(err, "failed to scan site id")
		}
		out = append(out, id)
	}
	return out, wrapDB(rows.Err(), "site row iteration failed")
}

type eventRepo struct {
	baseRepo
}

// NewEventRepo builds the recurrence event repository.
func NewEventRepo(conn *postgres.Connection, log logging.Logger) obligation.EventRepository {
	return &eventRepo{baseRepo{conn: conn, log: log}}
}

func (r *eventRepo) Save(ctx context.Context, ev *obligation.RecurrenceEvent) error {
	query := `
		INSERT INTO recurrence_events (
			id, tenant_id, site_id, obligation_id, event_type, occurred_at, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.executor(ctx).ExecContext(ctx, query,
		ev.ID, ev.TenantID, ev.SiteID, nullString(ev.ObligationID.String()),
		ev.Type, ev.OccurredAt, ev.Description, ev.CreatedAt)
	return wrapDB(err, "failed to insert recurrence event")
}

func (r *eventRepo) LatestMatching(ctx context.Context, siteID common.ID, t obligation.EventType) (*obligation.RecurrenceEvent, error) {
	query := `
		SELECT id, tenant_id, site_id, COALESCE(obligation_id, ''), event_type,
		       occurred_at, description, created_at
		FROM recurrence_events
		WHERE site_id = $1 AND event_type = $2
		ORDER BY occurred_at DESC, created_at DESC
		LIMIT 1`

	var ev obligation.RecurrenceEvent
	err := r.executor(ctx).QueryRowContext(ctx, query, siteID, t).Scan(
		&ev.ID, &ev.TenantID, &ev.SiteID, &ev.ObligationID, &ev.Type,
		&ev.OccurredAt, &ev.Description, &ev.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDB(err, "failed to load recurrence event")
	}
	return &ev, nil
}

func (r *eventRepo) CountSince(ctx context.Context, siteID common.ID, t obligation.EventType, cutoff time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM recurrence_events
		WHERE site_id = $1 AND event_type = $2 AND occurred_at >= $3`

	var n int
	err := r.executor(ctx).QueryRowContext(ctx, query, siteID, t, cutoff).Scan(&n)
	if err != nil {
		return 0, wrapDB(err, "failed to count recurrence events")
	}
	return n, nil
}
