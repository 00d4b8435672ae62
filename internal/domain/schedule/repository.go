package schedule

import (
	"context"
	"time"

	"github.com/ecocomply/compliance-engine/pkg/types/common"

	"github.com/ecocomply/compliance-engine/internal/domain/obligation"
)

// Repository is the persistence port for schedules.  Implementations live in
// internal/infrastructure/database/postgres/repositories.
type Repository interface {
	// Save inserts the schedule.  Inserting a second ACTIVE schedule for the
	// same obligation must fail with ErrCodeScheduleConflict.
	Save(ctx context.Context, s *Schedule) error

	FindByID(ctx context.Context, tenantID common.TenantID, id common.ID) (*Schedule, error)

	// FindActiveByObligation returns the single ACTIVE schedule for the
	// obligation, or ErrCodeScheduleNotFound when none exists.
	FindActiveByObligation(ctx context.Context, tenantID common.TenantID, obligationID common.ID) (*Schedule, error)

	// UpdateProgress records a completion: last_completed_date and the newly
	// computed next_due_date move together in one statement.
	UpdateProgress(ctx context.Context, tenantID common.TenantID, id common.ID, lastCompleted time.Time, nextDue time.Time) error

	// SetNextDueDate moves only the due-date pointer, used when an
	// EVENT_TRIGGERED schedule gains its first matching event.
	SetNextDueDate(ctx context.Context, tenantID common.TenantID, id common.ID, nextDue time.Time) error

	// SetStatus transitions the administrative status.  Implementations
	// refuse transitions out of StatusCancelled.
	SetStatus(ctx context.Context, tenantID common.TenantID, id common.ID, status Status) error

	// ListActive streams the ACTIVE schedules of a tenant, for sweep and
	// event fan-out.  An empty tenant lists across all tenants.
	ListActive(ctx context.Context, tenantID common.TenantID) ([]*Schedule, error)

	// ListActiveByEventType returns ACTIVE EVENT_TRIGGERED schedules bound
	// to the given event type at the site.
	ListActiveByEventType(ctx context.Context, tenantID common.TenantID, siteID common.ID, eventType obligation.EventType) ([]*Schedule, error)
}
