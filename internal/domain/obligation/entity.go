// Package obligation defines the compliance obligation and recurrence event
// entities.  Both are created by external processes (document ingestion, the
// permit surface) and are read-only to the engine apart from linkage.
package obligation

import (
	"time"

	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

// Category groups obligations by regulatory domain.
type Category string

const (
	CategoryEmissions  Category = "emissions"
	CategoryDischarge  Category = "discharge"
	CategoryWaste      Category = "waste"
	CategoryPermitting Category = "permitting"
	CategoryMonitoring Category = "monitoring"
	CategoryReporting  Category = "reporting"
	CategoryOther      Category = "other"
)

// Status tracks whether an obligation is still in force.
type Status string

const (
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
)

// Obligation is a compliance requirement tied to a site.
type Obligation struct {
	ID        common.ID       `json:"id"`
	TenantID  common.TenantID `json:"tenant_id"`
	SiteID    common.ID       `json:"site_id"`
	Category  Category        `json:"category"`
	Title     string          `json:"title"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsActive reports whether the obligation is still in force.
func (o *Obligation) IsActive() bool {
	return o.Status == StatusActive
}

// EventType classifies the business events that anchor event-triggered
// schedules.
type EventType string

const (
	EventCommissioning EventType = "commissioning"
	EventPermitIssued  EventType = "permit_issued"
	EventRenewal       EventType = "renewal"
	EventVariation     EventType = "variation"
	EventEnforcement   EventType = "enforcement"
	EventCustom        EventType = "custom"
)

// ValidEventType reports whether t is a member of the closed event type enum.
func ValidEventType(t EventType) bool {
	switch t {
	case EventCommissioning, EventPermitIssued, EventRenewal,
		EventVariation, EventEnforcement, EventCustom:
		return true
	}
	return false
}

// RecurrenceEvent is a dated business event.  EVENT_TRIGGERED schedules take
// the date of the most recent matching event as their next due date;
// enforcement events additionally feed the historical-breach risk factor.
type RecurrenceEvent struct {
	ID           common.ID       `json:"id"`
	TenantID     common.TenantID `json:"tenant_id"`
	SiteID       common.ID       `json:"site_id"`
	ObligationID common.ID       `json:"obligation_id,omitempty"`
	Type         EventType       `json:"type"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Description  string          `json:"description,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
