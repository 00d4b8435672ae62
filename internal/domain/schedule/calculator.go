package schedule

import (
	"time"

	"github.com/ecocomply/compliance-engine/pkg/errors"
)

// CalcInput carries everything the calculator needs to derive the next due
// date.  All dates are compared at day granularity in UTC.
type CalcInput struct {
	Frequency Frequency
	BaseDate  time.Time

	// LastCompleted is the completion timestamp of the previous deadline,
	// nil when no instance has been completed yet.
	LastCompleted *time.Time

	// PrevDueDate is the due date of the instance just completed, nil at
	// schedule creation.  When set, the result never lands on it: a fixed
	// cadence advances strictly past it, a rolling cadence skips over it.
	// Without this an early completion would regenerate onto the completed
	// instance's own due date.
	PrevDueDate *time.Time

	// IsRolling selects the anchoring mode: true restarts the cadence from
	// the actual completion date, false keeps the fixed calendar cadence
	// derived from BaseDate.
	IsRolling bool

	AdjustForBusinessDays bool

	// EventDate is the date of the most recent matching recurrence event for
	// EVENT_TRIGGERED schedules; ignored for every other frequency.
	EventDate *time.Time
}

// CalcResult is the calculator output.  HasDueDate is false for CONTINUOUS
// schedules and for EVENT_TRIGGERED schedules with no matching event yet.
type CalcResult struct {
	DueDate    time.Time
	HasDueDate bool
}

// Calculator derives concrete due dates from recurrence rules.  It is pure:
// no clock reads, no I/O; the same input always yields the same output.
type Calculator struct {
	cal BusinessCalendar
}

// NewCalculator constructs a Calculator.  A nil calendar falls back to the
// weekend-only default.
func NewCalculator(cal BusinessCalendar) *Calculator {
	if cal == nil {
		cal = WeekendCalendar{}
	}
	return &Calculator{cal: cal}
}

// Calendar returns the business calendar the calculator adjusts against.
func (c *Calculator) Calendar() BusinessCalendar { return c.cal }

// NextDueDate computes the next due date for the given rule.
//
// Anchoring: rolling schedules advance one period from the last completion
// (or the base date when nothing has completed), so delays compound forward.
// Fixed schedules advance the base date by whole periods to the first date
// strictly after the completion reference, so late completions never shift
// the calendar cadence.
//
// Business-day adjustment shifts a weekend result forward to the next day
// the calendar accepts.  ONE_TIME due dates are returned exactly as
// configured, unadjusted.
func (c *Calculator) NextDueDate(in CalcInput) (CalcResult, error) {
	if !in.Frequency.Valid() {
		return CalcResult{}, errors.Newf(errors.ErrCodeFrequencyInvalid, "unknown frequency %q", in.Frequency)
	}
	if in.BaseDate.IsZero() {
		return CalcResult{}, errors.New(errors.ErrCodeBaseDateInvalid, "base date must be a valid calendar date")
	}

	base := toDay(in.BaseDate)

	switch in.Frequency {
	case FrequencyOneTime:
		return CalcResult{DueDate: base, HasDueDate: true}, nil

	case FrequencyContinuous:
		return CalcResult{}, nil

	case FrequencyEventTriggered:
		if in.EventDate == nil {
			return CalcResult{}, nil
		}
		return c.finish(toDay(*in.EventDate), in.AdjustForBusinessDays), nil
	}

	var due time.Time
	if in.IsRolling {
		anchor := base
		if in.LastCompleted != nil {
			anchor = toDay(*in.LastCompleted)
		}
		due = addPeriod(anchor, in.Frequency, 1)
		if in.PrevDueDate != nil {
			prev := toDay(*in.PrevDueDate)
			for n := 2; c.adjust(due, in.AdjustForBusinessDays).Equal(prev); n++ {
				due = addPeriod(anchor, in.Frequency, n)
			}
		}
	} else {
		ref := base
		if in.LastCompleted != nil {
			ref = toDay(*in.LastCompleted)
		}
		// An early completion must not re-derive the completed instance's
		// own due date: advance from whichever reference is later.
		if in.PrevDueDate != nil && toDay(*in.PrevDueDate).After(ref) {
			ref = toDay(*in.PrevDueDate)
		}
		due = advancePastRef(base, ref, in.Frequency)
	}

	return c.finish(due, in.AdjustForBusinessDays), nil
}

func (c *Calculator) finish(due time.Time, adjust bool) CalcResult {
	return CalcResult{DueDate: c.adjust(due, adjust), HasDueDate: true}
}

func (c *Calculator) adjust(due time.Time, adjust bool) time.Time {
	if adjust {
		return NextBusinessDay(c.cal, due)
	}
	return due
}

// toDay truncates a timestamp to midnight UTC.
func toDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// addPeriod advances t by n periods of the given cadence.  Month-based
// cadences clamp the day-of-month to the target month's length, so Jan 31
// plus one month is Feb 29 in a leap year and Feb 28 otherwise, and a Feb 29
// annual anchor clamps to Feb 28 in non-leap target years.
func addPeriod(t time.Time, f Frequency, n int) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, n)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7*n)
	case FrequencyMonthly:
		return addMonthsClamped(t, n)
	case FrequencyQuarterly:
		return addMonthsClamped(t, 3*n)
	case FrequencyAnnual:
		return addMonthsClamped(t, 12*n)
	}
	return t
}

// addMonthsClamped adds months to t, clamping the day to the last day of the
// target month instead of letting time.AddDate roll over (Jan 31 + 1 month
// must not become Mar 2/3).
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	if last := daysInMonth(firstOfTarget.Year(), firstOfTarget.Month()); d > last {
		d = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, time.UTC)
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// advancePastRef returns the first base+n·period (n ≥ 1) strictly after ref.
// Each step re-derives from base rather than the previous step so that
// month-end clamping never shortens the cadence permanently (Jan 31 → Feb 29
// → Mar 31, not Mar 29).
func advancePastRef(base, ref time.Time, f Frequency) time.Time {
	for n := 1; ; n++ {
		due := addPeriod(base, f, n)
		if due.After(ref) {
			return due
		}
	}
}
