package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/database/postgres"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

type deadlineRepo struct {
	baseRepo
}

// NewDeadlineRepo builds the PostgreSQL deadline repository.
func NewDeadlineRepo(conn *postgres.Connection, log logging.Logger) deadline.Repository {
	return &deadlineRepo{baseRepo{conn: conn, log: log}}
}

const deadlineColumns = `
	id, tenant_id, schedule_id, obligation_id, site_id, due_date, status,
	completed_at, completed_by, was_late, fired_reminders, created_at, updated_at`

func (r *deadlineRepo) Upsert(ctx context.Context, d *deadline.Deadline) (*deadline.Deadline, error) {
	// ON CONFLICT DO NOTHING plus a follow-up read: a concurrent insert for
	// the same (schedule_id, due_date) collapses to the winner's row.
	query := `
		INSERT INTO deadlines (
			id, tenant_id, schedule_id, obligation_id, site_id, due_date, status,
			completed_at, completed_by, was_late, fired_reminders, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (schedule_id, due_date) DO NOTHING
		RETURNING` + deadlineColumns

	row := r.executor(ctx).QueryRowContext(ctx, query,
		d.ID, d.TenantID, d.ScheduleID, d.ObligationID, d.SiteID, d.DueDate, d.Status,
		d.CompletedAt, nullString(string(d.CompletedBy)), d.WasLate,
		pq.Array(d.FiredReminders), d.CreatedAt, d.UpdatedAt)

	inserted, err := scanDeadline(row)
	if err == nil {
		return inserted, nil
	}
	if err != sql.ErrNoRows {
		return nil, wrapDB(err, "failed to insert deadline")
	}

	// Lost the race: return the existing row.
	existing, err := r.findByKey(ctx, d.ScheduleID, d.DueDate)
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *deadlineRepo) findByKey(ctx context.Context, scheduleID common.ID, dueDate time.Time) (*deadline.Deadline, error) {
	query := `SELECT` + deadlineColumns + `
		FROM deadlines WHERE schedule_id = $1 AND due_date = $2`

	d, err := scanDeadline(r.executor(ctx).QueryRowContext(ctx, query, scheduleID, dueDate))
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCodeDeadlineNotFound,
			"deadline for schedule %s due %s not found", scheduleID, dueDate.Format("2006-01-02"))
	}
	if err != nil {
		return nil, wrapDB(err, "failed to load deadline")
	}
	return d, nil
}

func (r *deadlineRepo) FindByID(ctx context.Context, tenantID common.TenantID, id common.ID) (*deadline.Deadline, error) {
	query := `SELECT` + deadlineColumns + `
		FROM deadlines WHERE tenant_id = $1 AND id = $2`

	d, err := scanDeadline(r.executor(ctx).QueryRowContext(ctx, query, tenantID, id))
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCodeDeadlineNotFound, "deadline %s not found", id)
	}
	if err != nil {
		return nil, wrapDB(err, "failed to load deadline")
	}
	return d, nil
}

func (r *deadlineRepo) Update(ctx context.Context, d *deadline.Deadline) error {
	query := `
		UPDATE deadlines
		SET status = $3, completed_at = $4, completed_by = $5, was_late = $6,
		    fired_reminders = $7, updated_at = $8
		WHERE tenant_id = $1 AND id = $2`

	res, err := r.executor(ctx).ExecContext(ctx, query,
		d.TenantID, d.ID, d.Status, d.CompletedAt, nullString(string(d.CompletedBy)),
		d.WasLate, pq.Array(d.FiredReminders), d.UpdatedAt)
	if err != nil {
		return wrapDB(err, "failed to update deadline")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDB(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.Newf(errors.ErrCodeDeadlineNotFound, "deadline %s not found", d.ID)
	}
	return nil
}

func (r *deadlineRepo) UpdateStatusIf(ctx context.Context, tenantID common.TenantID, id common.ID, from, to deadline.Status) (bool, error) {
	query := `
		UPDATE deadlines SET status = $4, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $3`

	res, err := r.executor(ctx).ExecContext(ctx, query, tenantID, id, from, to)
	if err != nil {
		return false, wrapDB(err, "failed to transition deadline")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapDB(err, "failed to read affected rows")
	}
	return n == 1, nil
}

func (r *deadlineRepo) MarkReminderFired(ctx context.Context, tenantID common.TenantID, id common.ID, offset int) (bool, error) {
	// The guard in the WHERE clause makes the append atomic: only one
	// concurrent sweep observes the offset as absent.
	query := `
		UPDATE deadlines
		SET fired_reminders = array_append(fired_reminders, $3), updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND NOT ($3 = ANY(fired_reminders))`

	res, err := r.executor(ctx).ExecContext(ctx, query, tenantID, id, offset)
	if err != nil {
		return false, wrapDB(err, "failed to mark reminder fired")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapDB(err, "failed to read affected rows")
	}
	return n == 1, nil
}

var openStatuses = []string{
	string(deadline.StatusPending),
	string(deadline.StatusDueSoon),
	string(deadline.StatusOverdue),
}

func (r *deadlineRepo) ListOpen(ctx context.Context, tenantID common.TenantID) ([]*deadline.Deadline, error) {
	query := `SELECT` + deadlineColumns + `
		FROM deadlines WHERE status = ANY($1)`
	args := []interface{}{pq.Array(openStatuses)}
	if tenantID != "" {
		query += ` AND tenant_id = $2`
		args = append(args, tenantID)
	}
	query += ` ORDER BY due_date ASC`

	rows, err := r.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDB(err, "failed to list open deadlines")
	}
	defer rows.Close()
	return collectDeadlines(rows)
}

func (r *deadlineRepo) ListOpenBySchedule(ctx context.Context, tenantID common.TenantID, scheduleID common.ID) ([]*deadline.Deadline, error) {
	query := `SELECT` + deadlineColumns + `
		FROM deadlines
		WHERE tenant_id = $1 AND schedule_id = $2 AND status = ANY($3)`

	rows, err := r.executor(ctx).QueryContext(ctx, query, tenantID, scheduleID, pq.Array(openStatuses))
	if err != nil {
		return nil, wrapDB(err, "failed to list schedule deadlines")
	}
	defer rows.Close()
	return collectDeadlines(rows)
}

func (r *deadlineRepo) List(ctx context.Context, tenantID common.TenantID, f deadline.ListFilter, page common.Page) ([]*deadline.Deadline, *common.Cursor, error) {
	var (
		conds = []string{"tenant_id = $1"}
		args  = []interface{}{tenantID}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.SiteID.IsZero() {
		conds = append(conds, "site_id = "+arg(f.SiteID))
	}
	if len(f.Statuses) > 0 {
		ss := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			ss[i] = string(st)
		}
		conds = append(conds, "status = ANY("+arg(pq.Array(ss))+")")
	}
	if f.DueRange != nil {
		conds = append(conds, "due_date >= "+arg(f.DueRange.From))
		conds = append(conds, "due_date <= "+arg(f.DueRange.To))
	}
	// The ordering key is (due_date, id); the opaque cursor carries the last
	// row's position in those terms.
	if !page.Cursor.IsZero() {
		conds = append(conds, fmt.Sprintf("(due_date, id) > (%s, %s)",
			arg(page.Cursor.CreatedAt), arg(page.Cursor.LastID)))
	}

	// One extra row decides whether a next page exists.
	query := `SELECT` + deadlineColumns + `
		FROM deadlines WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY due_date ASC, id ASC
		LIMIT ` + arg(page.Limit+1)

	rows, err := r.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, wrapDB(err, "failed to list deadlines")
	}
	defer rows.Close()

	items, err := collectDeadlines(rows)
	if err != nil {
		return nil, nil, err
	}
	var next *common.Cursor
	if len(items) > page.Limit {
		items = items[:page.Limit]
		last := items[len(items)-1]
		next = &common.Cursor{CreatedAt: last.DueDate, LastID: last.ID}
	}
	return items, next, nil
}

func (r *deadlineRepo) CountOverdue(ctx context.Context, siteID common.ID) (int, error) {
	return r.countWhere(ctx, `site_id = $1 AND status = $2`, siteID, deadline.StatusOverdue)
}

func (r *deadlineRepo) CompletionStats(ctx context.Context, siteID common.ID, cutoff time.Time) (int, int, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE NOT was_late), COUNT(*)
		FROM deadlines
		WHERE site_id = $1 AND status = $2 AND completed_at >= $3`

	var onTime, total int
	err := r.executor(ctx).QueryRowContext(ctx, query, siteID, deadline.StatusCompleted, cutoff).Scan(&onTime, &total)
	if err != nil {
		return 0, 0, wrapDB(err, "failed to compute completion stats")
	}
	return onTime, total, nil
}

func (r *deadlineRepo) CountDueWithin(ctx context.Context, siteID common.ID, now time.Time, days int) (int, error) {
	query := `
		SELECT COUNT(*) FROM deadlines
		WHERE site_id = $1 AND status = ANY($2)
		  AND due_date >= $3 AND due_date <= $4`

	var n int
	err := r.executor(ctx).QueryRowContext(ctx, query,
		siteID, pq.Array(openStatuses), now, now.AddDate(0, 0, days)).Scan(&n)
	if err != nil {
		return 0, wrapDB(err, "failed to count upcoming deadlines")
	}
	return n, nil
}

func (r *deadlineRepo) countWhere(ctx context.Context, where string, args ...interface{}) (int, error) {
	var n int
	err := r.executor(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM deadlines WHERE `+where, args...).Scan(&n)
	if err != nil {
		return 0, wrapDB(err, "failed to count deadlines")
	}
	return n, nil
}

func collectDeadlines(rows *sql.Rows) ([]*deadline.Deadline, error) {
	var out []*deadline.Deadline
	for rows.Next() {
		d, err := scanDeadline(rows)
		if err != nil {
			return nil, wrapDB(err, "failed to scan deadline")
		}
		out = append(out, d)
	}
	return out, wrapDB(rows.Err(), "deadline row iteration failed")
}

func scanDeadline(row scanner) (*deadline.Deadline, error) {
	var d deadline.Deadline
	var completedBy sql.NullString
	var fired pq.Int64Array

	err := row.Scan(&d.ID, &d.TenantID, &d.ScheduleID, &d.ObligationID, &d.SiteID,
		&d.DueDate, &d.Status, &d.CompletedAt, &completedBy, &d.WasLate,
		&fired, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if completedBy.Valid {
		d.CompletedBy = common.UserID(completedBy.String)
	}
	if len(fired) > 0 {
		d.FiredReminders = make([]int, len(fired))
		for i, v := range fired {
			d.FiredReminders[i] = int(v)
		}
	}
	return &d, nil
}
