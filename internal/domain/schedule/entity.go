// Package schedule defines the recurrence configuration entity and the pure
// schedule calculator that turns a recurrence rule into the next due date.
package schedule

import (
	"sort"
	"time"

	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"

	"github.com/ecocomply/compliance-engine/internal/domain/obligation"
)

// Frequency is the closed recurrence cadence enum.
type Frequency string

const (
	FrequencyDaily          Frequency = "daily"
	FrequencyWeekly         Frequency = "weekly"
	FrequencyMonthly        Frequency = "monthly"
	FrequencyQuarterly      Frequency = "quarterly"
	FrequencyAnnual         Frequency = "annual"
	FrequencyOneTime        Frequency = "one_time"
	FrequencyContinuous     Frequency = "continuous"
	FrequencyEventTriggered Frequency = "event_triggered"
)

// Valid reports whether f is a member of the closed enum.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly,
		FrequencyAnnual, FrequencyOneTime, FrequencyContinuous, FrequencyEventTriggered:
		return true
	}
	return false
}

// IsRecurring reports whether completing a deadline under this frequency
// generates a successor.  ONE_TIME deactivates after its single instance;
// CONTINUOUS never materializes discrete deadlines.
func (f Frequency) IsRecurring() bool {
	switch f {
	case FrequencyOneTime, FrequencyContinuous:
		return false
	}
	return f.Valid()
}

// Status tracks the administrative state of a schedule.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

// Schedule is the recurrence configuration for one obligation.  At most one
// ACTIVE schedule exists per obligation; the persistence layer enforces this
// with a partial unique index.
type Schedule struct {
	ID           common.ID       `json:"id"`
	TenantID     common.TenantID `json:"tenant_id"`
	ObligationID common.ID       `json:"obligation_id"`
	SiteID       common.ID       `json:"site_id"`

	Frequency Frequency `json:"frequency"`
	BaseDate  time.Time `json:"base_date"`

	// NextDueDate is the due date of the schedule's current open deadline.
	// Zero for CONTINUOUS schedules and for EVENT_TRIGGERED schedules with no
	// matching event yet.
	NextDueDate       time.Time  `json:"next_due_date,omitempty"`
	LastCompletedDate *time.Time `json:"last_completed_date,omitempty"`

	IsRolling             bool `json:"is_rolling"`
	AdjustForBusinessDays bool `json:"adjust_for_business_days"`

	// ReminderDays holds the day offsets before the due date at which
	// reminders fire, kept sorted descending so ReminderDays[0] is the
	// earliest (largest) offset.
	ReminderDays []int `json:"reminder_days"`

	// EventType anchors EVENT_TRIGGERED schedules; empty otherwise.
	EventType obligation.EventType `json:"event_type,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New validates and constructs a Schedule.  The first deadline is
// materialized by the scheduling service, not here.
func New(tenantID common.TenantID, obligationID, siteID common.ID, freq Frequency, baseDate time.Time, isRolling, adjustBusinessDays bool, reminderDays []int) (*Schedule, error) {
	if !freq.Valid() {
		return nil, errors.Newf(errors.ErrCodeFrequencyInvalid, "unknown frequency %q", freq)
	}
	if baseDate.IsZero() {
		return nil, errors.New(errors.ErrCodeBaseDateInvalid, "base_date must be a valid calendar date")
	}
	if obligationID.IsZero() {
		return nil, errors.InvalidParam("obligation_id is required")
	}
	for _, d := range reminderDays {
		if d <= 0 {
			return nil, errors.Newf(errors.ErrCodeValidation, "reminder offset %d must be positive", d)
		}
	}

	now := time.Now().UTC()
	return &Schedule{
		ID:                    common.NewID(),
		TenantID:              tenantID,
		ObligationID:          obligationID,
		SiteID:                siteID,
		Frequency:             freq,
		BaseDate:              baseDate,
		IsRolling:             isRolling,
		AdjustForBusinessDays: adjustBusinessDays,
		ReminderDays:          normalizeReminderDays(reminderDays),
		Status:                StatusActive,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// normalizeReminderDays deduplicates and sorts offsets descending.
func normalizeReminderDays(days []int) []int {
	seen := make(map[int]struct{}, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// MaxReminderDays returns the largest reminder offset, or 0 when no
// reminders are configured.  The PENDING → DUE_SOON transition fires at
// due_date − MaxReminderDays.
func (s *Schedule) MaxReminderDays() int {
	if len(s.ReminderDays) == 0 {
		return 0
	}
	return s.ReminderDays[0]
}

// IsActive reports whether the schedule generates and sweeps deadlines.
func (s *Schedule) IsActive() bool {
	return s.Status == StatusActive
}

// TracksDeadlines reports whether the schedule materializes discrete
// deadlines at all.  CONTINUOUS obligations are monitoring obligations: they
// stay open and are excluded from overdue sweeps.
func (s *Schedule) TracksDeadlines() bool {
	return s.Frequency != FrequencyContinuous
}
