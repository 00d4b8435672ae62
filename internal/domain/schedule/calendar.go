package schedule

import "time"

// BusinessCalendar answers whether a given date is a working day.  The
// production implementation is supplied by an external holiday-calendar
// service; the engine ships only the weekend-only default, which is a
// documented stand-in rather than a correctness guarantee for any specific
// jurisdiction.
type BusinessCalendar interface {
	IsBusinessDay(date time.Time) bool
}

// WeekendCalendar treats Monday through Friday as business days.
type WeekendCalendar struct{}

// IsBusinessDay reports false only for Saturday and Sunday.
func (WeekendCalendar) IsBusinessDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// NextBusinessDay returns date itself when it is a business day, otherwise
// the next day the calendar accepts.  Shifts are always forward so an
// adjusted deadline never lands before the computed one.
func NextBusinessDay(cal BusinessCalendar, date time.Time) time.Time {
	for !cal.IsBusinessDay(date) {
		date = date.AddDate(0, 0, 1)
	}
	return date
}
