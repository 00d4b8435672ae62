// Package deadline defines the deadline instance entity and its lifecycle
// state machine.
package deadline

import (
	"time"

	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

// Status is the lifecycle state of a deadline instance.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDueSoon   Status = "due_soon"
	StatusOverdue   Status = "overdue"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a member of the closed status enum.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDueSoon, StatusOverdue, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsOpen reports whether the deadline still awaits completion.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusDueSoon || s == StatusOverdue
}

// transitions is the closed adjacency set of the state machine.  Completion
// and cancellation are allowed from every open state; time-driven transitions
// only move forward.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusDueSoon:   true,
		StatusOverdue:   true,
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusDueSoon: {
		StatusOverdue:   true,
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusOverdue: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Deadline is one concrete instance of an obligation falling due.  At most
// one open deadline exists per (schedule_id, due_date); the persistence
// layer enforces this with a unique constraint so concurrent generation
// collapses to a single row.
type Deadline struct {
	ID           common.ID       `json:"id"`
	TenantID     common.TenantID `json:"tenant_id"`
	ScheduleID   common.ID       `json:"schedule_id"`
	ObligationID common.ID       `json:"obligation_id"`
	SiteID       common.ID       `json:"site_id"`

	DueDate time.Time `json:"due_date"`
	Status  Status    `json:"status"`

	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CompletedBy common.UserID `json:"completed_by,omitempty"`

	// WasLate records, at completion time, whether the completion landed
	// after the due date.  It is immutable once set and feeds the on-time
	// completion risk factor.
	WasLate bool `json:"was_late"`

	// FiredReminders holds the reminder offsets (days before due) that have
	// already been dispatched, so sweep re-runs never re-notify.
	FiredReminders []int `json:"fired_reminders,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New constructs a PENDING deadline for a schedule instance.
func New(tenantID common.TenantID, scheduleID, obligationID, siteID common.ID, dueDate time.Time, now time.Time) *Deadline {
	return &Deadline{
		ID:           common.NewID(),
		TenantID:     tenantID,
		ScheduleID:   scheduleID,
		ObligationID: obligationID,
		SiteID:       siteID,
		DueDate:      dueDate,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsOpen reports whether the deadline still awaits completion.
func (d *Deadline) IsOpen() bool { return d.Status.IsOpen() }

// DeriveStatus returns the time-driven status the deadline should hold at
// now, given the earliest reminder offset.  Terminal states are sticky and
// the result never moves backwards from the current status.
func (d *Deadline) DeriveStatus(now time.Time, maxReminderDays int) Status {
	if d.Status.IsTerminal() {
		return d.Status
	}
	day := truncateDay(now)
	due := truncateDay(d.DueDate)
	switch {
	case day.After(due):
		return StatusOverdue
	case d.Status == StatusOverdue:
		// Clock-skew guard: an OVERDUE deadline never reverts.
		return StatusOverdue
	case maxReminderDays > 0 && !day.Before(due.AddDate(0, 0, -maxReminderDays)):
		return StatusDueSoon
	case d.Status == StatusDueSoon:
		return StatusDueSoon
	default:
		return StatusPending
	}
}

// Complete marks the deadline completed at the given instant.  Completing a
// terminal deadline is rejected with ErrCodeDeadlineTerminal; completion from
// any open state, OVERDUE included, always wins.
func (d *Deadline) Complete(by common.UserID, at time.Time) error {
	if d.Status.IsTerminal() {
		return errors.Newf(errors.ErrCodeDeadlineTerminal, "deadline %s is already %s", d.ID, d.Status)
	}
	at = at.UTC()
	d.WasLate = truncateDay(at).After(truncateDay(d.DueDate))
	d.Status = StatusCompleted
	d.CompletedAt = &at
	d.CompletedBy = by
	d.UpdatedAt = at
	return nil
}

// Cancel marks the deadline cancelled, used when its schedule is cancelled.
func (d *Deadline) Cancel(at time.Time) error {
	if d.Status.IsTerminal() {
		return errors.Newf(errors.ErrCodeDeadlineTerminal, "deadline %s is already %s", d.ID, d.Status)
	}
	d.Status = StatusCancelled
	d.UpdatedAt = at.UTC()
	return nil
}

// ReminderFired reports whether the given offset has already been
// dispatched.
func (d *Deadline) ReminderFired(offset int) bool {
	for _, f := range d.FiredReminders {
		if f == offset {
			return true
		}
	}
	return false
}

// DueReminders returns the configured offsets whose fire date has arrived
// and that have not been dispatched yet.  An offset's fire date is
// due_date − offset days.
func (d *Deadline) DueReminders(now time.Time, offsets []int) []int {
	if !d.IsOpen() {
		return nil
	}
	day := truncateDay(now)
	due := truncateDay(d.DueDate)
	var out []int
	for _, off := range offsets {
		if d.ReminderFired(off) {
			continue
		}
		if !day.Before(due.AddDate(0, 0, -off)) {
			out = append(out, off)
		}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
