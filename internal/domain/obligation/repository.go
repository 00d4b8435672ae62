package obligation

import (
	"context"
	"time"

	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

// Repository is the read-only access contract for obligations.  Writes happen
// in the external obligation-management surface.
type Repository interface {
	// FindByID returns the obligation or ErrCodeObligationNotFound.
	FindByID(ctx context.Context, id common.ID) (*Obligation, error)

	// CountBySite returns the number of active obligations for a site.
	CountBySite(ctx context.Context, siteID common.ID) (int, error)

	// ListSites returns the distinct site IDs of a tenant that carry at least
	// one obligation.  Used by the batch risk recomputation.
	ListSites(ctx context.Context, tenantID common.TenantID) ([]common.ID, error)
}

// EventRepository is the access contract for recurrence events.  The engine
// records events arriving from the obligation surface and reads them back for
// event-triggered scheduling and breach counting.
type EventRepository interface {
	// Save persists a new recurrence event.
	Save(ctx context.Context, ev *RecurrenceEvent) error

	// LatestMatching returns the most recent event of the given type for an
	// obligation's site, or nil when none exists.
	LatestMatching(ctx context.Context, siteID common.ID, t EventType) (*RecurrenceEvent, error)

	// CountSince returns the number of events of the given type for a site
	// that occurred at or after the cutoff.  Feeds the historical-breach
	// risk factor (type = enforcement, trailing 90 days).
	CountSince(ctx context.Context, siteID common.ID, t EventType, cutoff time.Time) (int, error)
}
