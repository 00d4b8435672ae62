package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/ecocomply/compliance-engine/internal/domain/obligation"
	"github.com/ecocomply/compliance-engine/internal/domain/schedule"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/database/postgres"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

type scheduleRepo struct {
	baseRepo
}

// NewScheduleRepo builds the PostgreSQL schedule repository.
func NewScheduleRepo(conn *postgres.Connection, log logging.Logger) schedule.Repository {
	return &scheduleRepo{baseRepo{conn: conn, log: log}}
}

const scheduleColumns = `
	id, tenant_id, obligation_id, site_id, frequency, base_date,
	next_due_date, last_completed_date, is_rolling, adjust_business_days,
	reminder_days, event_type, status, created_at, updated_at`

func (r *scheduleRepo) Save(ctx context.Context, s *schedule.Schedule) error {
	query := `
		INSERT INTO schedules (
			id, tenant_id, obligation_id, site_id, frequency, base_date,
			next_due_date, last_completed_date, is_rolling, adjust_business_days,
			reminder_days, event_type, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.executor(ctx).ExecContext(ctx, query,
		s.ID, s.TenantID, s.ObligationID, s.SiteID, s.Frequency, s.BaseDate,
		nullTime(s.NextDueDate), s.LastCompletedDate, s.IsRolling, s.AdjustForBusinessDays,
		pq.Array(s.ReminderDays), nullString(string(s.EventType)), s.Status,
		s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if uniqueViolation(err, "schedules_one_active_per_obligation") {
			return errors.Newf(errors.ErrCodeScheduleConflict,
				"an active schedule already exists for obligation %s", s.ObligationID)
		}
		return wrapDB(err, "failed to insert schedule")
	}
	return nil
}

func (r *scheduleRepo) FindByID(ctx context.Context, tenantID common.TenantID, id common.ID) (*schedule.Schedule, error) {
	query := `SELECT` + scheduleColumns + `
		FROM schedules WHERE tenant_id = $1 AND id = $2`

	s, err := scanSchedule(r.executor(ctx).QueryRowContext(ctx, query, tenantID, id))
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCodeScheduleNotFound, "schedule %s not found", id)
	}
	if err != nil {
		return nil, wrapDB(err, "failed to load schedule")
	}
	return s, nil
}

func (r *scheduleRepo) FindActiveByObligation(ctx context.Context, tenantID common.TenantID, obligationID common.ID) (*schedule.Schedule, error) {
	query := `SELECT` + scheduleColumns + `
		FROM schedules WHERE tenant_id = $1 AND obligation_id = $2 AND status = $3`

	s, err := scanSchedule(r.executor(ctx).QueryRowContext(ctx, query, tenantID, obligationID, schedule.StatusActive))
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCodeScheduleNotFound, "no active schedule for obligation %s", obligationID)
	}
	if err != nil {
		return nil, wrapDB(err, "failed to load schedule")
	}
	return s, nil
}

func (r *scheduleRepo) UpdateProgress(ctx context.Context, tenantID common.TenantID, id common.ID, lastCompleted, nextDue time.Time) error {
	query := `
		UPDATE schedules
		SET last_completed_date = $3, next_due_date = $4, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`

	res, err := r.executor(ctx).ExecContext(ctx, query, tenantID, id, lastCompleted, nullTime(nextDue))
	if err != nil {
		return wrapDB(err, "failed to update schedule progress")
	}
	return requireRow(res, id)
}

func (r *scheduleRepo) SetNextDueDate(ctx context.Context, tenantID common.TenantID, id common.ID, nextDue time.Time) error {
	query := `
		UPDATE schedules SET next_due_date = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`

	res, err := r.executor(ctx).ExecContext(ctx, query, tenantID, id, nullTime(nextDue))
	if err != nil {
		return wrapDB(err, "failed to set next due date")
	}
	return requireRow(res, id)
}

func (r *scheduleRepo) SetStatus(ctx context.Context, tenantID common.TenantID, id common.ID, status schedule.Status) error {
	// Cancellation is terminal at the persistence level too.
	query := `
		UPDATE schedules SET status = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status <> $4`

	res, err := r.executor(ctx).ExecContext(ctx, query, tenantID, id, status, schedule.StatusCancelled)
	if err != nil {
		if uniqueViolation(err, "schedules_one_active_per_obligation") {
			return errors.Newf(errors.ErrCodeScheduleConflict,
				"another active schedule exists for the obligation of schedule %s", id)
		}
		return wrapDB(err, "failed to set schedule status")
	}
	return requireRow(res, id)
}

func (r *scheduleRepo) ListActive(ctx context.Context, tenantID common.TenantID) ([]*schedule.Schedule, error) {
	query := `SELECT` + scheduleColumns + `
		FROM schedules WHERE status = $1`
	args := []interface{}{schedule.StatusActive}
	if tenantID != "" {
		query += ` AND tenant_id = $2`
		args = append(args, tenantID)
	}

	rows, err := r.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDB(err, "failed to list active schedules")
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (r *scheduleRepo) ListActiveByEventType(ctx context.Context, tenantID common.TenantID, siteID common.ID, eventType obligation.EventType) ([]*schedule.Schedule, error) {
	query := `SELECT` + scheduleColumns + `
		FROM schedules
		WHERE tenant_id = $1 AND site_id = $2 AND event_type = $3 AND status = $4`

	rows, err := r.executor(ctx).QueryContext(ctx, query, tenantID, siteID, eventType, schedule.StatusActive)
	if err != nil {
		return nil, wrapDB(err, "failed to list event-triggered schedules")
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func collectSchedules(rows *sql.Rows) ([]*schedule.Schedule, error) {
	var out []*schedule.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, wrapDB(err, "failed to scan schedule")
		}
		out = append(out, s)
	}
	return out, wrapDB(rows.Err(), "schedule row iteration failed")
}

func scanSchedule(row scanner) (*schedule.Schedule, error) {
	var s schedule.Schedule
	var nextDue sql.NullTime
	var eventType sql.NullString
	var reminders pq.Int64Array

	err := row.Scan(&s.ID, &s.TenantID, &s.ObligationID, &s.SiteID, &s.Frequency,
		&s.BaseDate, &nextDue, &s.LastCompletedDate, &s.IsRolling,
		&s.AdjustForBusinessDays, &reminders, &eventType, &s.Status,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if nextDue.Valid {
		s.NextDueDate = nextDue.Time.UTC()
	}
	if eventType.Valid {
		s.EventType = obligation.EventType(eventType.String)
	}
	s.ReminderDays = make([]int, len(reminders))
	for i, v := range reminders {
		s.ReminderDays[i] = int(v)
	}
	return &s, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// requireRow maps a zero-row UPDATE onto a not-found error.
func requireRow(res sql.Result, id common.ID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDB(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.Newf(errors.ErrCodeScheduleNotFound, "schedule %s not found or cancelled", id)
	}
	return nil
}
