package deadline

import (
	"context"
	"time"

	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

// ListFilter narrows List results.  Zero values mean "no filter".
type ListFilter struct {
	SiteID   common.ID
	Statuses []Status
	DueRange *common.DateRange
}

// Repository is the persistence port for deadlines.
type Repository interface {
	// Upsert inserts the deadline, keyed on (schedule_id, due_date).  When a
	// row for that key already exists the insert is a no-op and the existing
	// row is returned, so concurrent generation is idempotent.
	Upsert(ctx context.Context, d *Deadline) (*Deadline, error)

	FindByID(ctx context.Context, tenantID common.TenantID, id common.ID) (*Deadline, error)

	// Update persists completion fields and status for a deadline the caller
	// has already transitioned in memory.
	Update(ctx context.Context, d *Deadline) error

	// UpdateStatusIf transitions id from one status to another atomically.
	// When the row is no longer in the expected status the call reports
	// changed=false and no error: the sweep lost the race and moves on.
	UpdateStatusIf(ctx context.Context, tenantID common.TenantID, id common.ID, from, to Status) (changed bool, err error)

	// MarkReminderFired appends the offset to fired_reminders if absent.
	// Reports whether this call added it, so exactly one sweep run dispatches
	// each reminder.
	MarkReminderFired(ctx context.Context, tenantID common.TenantID, id common.ID, offset int) (fired bool, err error)

	// ListOpen returns all open deadlines of a tenant, for the sweep.  An
	// empty tenant lists across all tenants.
	ListOpen(ctx context.Context, tenantID common.TenantID) ([]*Deadline, error)

	// ListOpenBySchedule returns the open deadlines of one schedule, used
	// when cancelling a schedule cascades into its instances.
	ListOpenBySchedule(ctx context.Context, tenantID common.TenantID, scheduleID common.ID) ([]*Deadline, error)

	// List pages through a tenant's deadlines ordered by (due_date, id)
	// ascending.  Returns the page, and the cursor for the next page when
	// more rows remain.
	List(ctx context.Context, tenantID common.TenantID, f ListFilter, page common.Page) ([]*Deadline, *common.Cursor, error)

	// Site aggregates feeding the risk factors.  All counts are scoped to
	// open or historical deadlines of one site.

	// CountOverdue returns the number of currently OVERDUE deadlines.
	CountOverdue(ctx context.Context, siteID common.ID) (int, error)

	// CompletionStats returns completed-on-time and completed totals for
	// deadlines completed at or after the cutoff.
	CompletionStats(ctx context.Context, siteID common.ID, cutoff time.Time) (onTime, total int, err error)

	// CountDueWithin returns open deadlines due within the window
	// [now, now+days].
	CountDueWithin(ctx context.Context, siteID common.ID, now time.Time, days int) (int, error)
}
