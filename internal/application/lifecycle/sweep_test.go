package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"

	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/domain/schedule"
)

func TestSweepMarksOverdueAndNotifies(t *testing.T) {
	now := date(2025, time.June, 21)
	f := newFixture(t, now)

	sched := activeSchedule(schedule.FrequencyMonthly, date(2025, time.May, 20), false)
	d := openDeadline(sched, date(2025, time.June, 20))
	d.Status = deadline.StatusDueSoon
	// Reminders already dispatched in earlier passes.
	d.FiredReminders = []int{7, 1}

	f.deadlines.On("ListOpen", mock.Anything, common.TenantID("")).Return([]*deadline.Deadline{d}, nil)
	f.schedules.On("ListActive", mock.Anything, common.TenantID("")).Return([]*schedule.Schedule{sched}, nil)
	f.deadlines.On("UpdateStatusIf", mock.Anything, d.TenantID, d.ID,
		deadline.StatusDueSoon, deadline.StatusOverdue).Return(true, nil)

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Transitions)
	assert.Equal(t, 0, report.RemindersFired)
	assert.Equal(t, []common.ID{d.ID}, f.notifier.overdue)
}

func TestSweepLostRaceIsNoop(t *testing.T) {
	now := date(2025, time.June, 21)
	f := newFixture(t, now)

	sched := activeSchedule(schedule.FrequencyMonthly, date(2025, time.May, 20), false)
	d := openDeadline(sched, date(2025, time.June, 20))
	d.Status = deadline.StatusDueSoon
	d.FiredReminders = []int{7, 1}

	f.deadlines.On("ListOpen", mock.Anything, common.TenantID("")).Return([]*deadline.Deadline{d}, nil)
	f.schedules.On("ListActive", mock.Anything, common.TenantID("")).Return([]*schedule.Schedule{sched}, nil)
	// A concurrent completion got there first.
	f.deadlines.On("UpdateStatusIf", mock.Anything, d.TenantID, d.ID,
		deadline.StatusDueSoon, deadline.StatusOverdue).Return(false, nil)

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Transitions)
	assert.Equal(t, 0, report.Errors)
	assert.Empty(t, f.notifier.overdue)
}

func TestSweepFiresRemindersOnce(t *testing.T) {
	// Inside the 7-day window, outside the 1-day window.
	now := date(2025, time.June, 14)
	f := newFixture(t, now)

	sched := activeSchedule(schedule.FrequencyMonthly, date(2025, time.May, 20), false)
	d := openDeadline(sched, date(2025, time.June, 20))

	f.deadlines.On("ListOpen", mock.Anything, common.TenantID("")).Return([]*deadline.Deadline{d}, nil)
	f.schedules.On("ListActive", mock.Anything, common.TenantID("")).Return([]*schedule.Schedule{sched}, nil)
	f.deadlines.On("UpdateStatusIf", mock.Anything, d.TenantID, d.ID,
		deadline.StatusPending, deadline.StatusDueSoon).Return(true, nil)
	f.deadlines.On("MarkReminderFired", mock.Anything, d.TenantID, d.ID, 7).Return(true, nil)

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Transitions)
	assert.Equal(t, 1, report.RemindersFired)
	assert.Equal(t, []int{7}, f.notifier.reminders)
	f.deadlines.AssertNotCalled(t, "MarkReminderFired", mock.Anything, d.TenantID, d.ID, 1)
}

func TestSweepSecondRunSameInstantIsIdempotent(t *testing.T) {
	now := date(2025, time.June, 14)
	f := newFixture(t, now)

	sched := activeSchedule(schedule.FrequencyMonthly, date(2025, time.May, 20), false)
	d := openDeadline(sched, date(2025, time.June, 20))
	// State after the first run.
	d.Status = deadline.StatusDueSoon
	d.FiredReminders = []int{7}

	f.deadlines.On("ListOpen", mock.Anything, common.TenantID("")).Return([]*deadline.Deadline{d}, nil)
	f.schedules.On("ListActive", mock.Anything, common.TenantID("")).Return([]*schedule.Schedule{sched}, nil)

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Transitions)
	assert.Equal(t, 0, report.RemindersFired)
	f.deadlines.AssertNotCalled(t, "UpdateStatusIf", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.deadlines.AssertNotCalled(t, "MarkReminderFired", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepSkipsInactiveAndContinuousSchedules(t *testing.T) {
	now := date(2025, time.June, 21)
	f := newFixture(t, now)

	paused := activeSchedule(schedule.FrequencyMonthly, date(2025, time.May, 20), false)
	paused.Status = schedule.StatusPaused
	dPaused := openDeadline(paused, date(2025, time.June, 20))

	// Deadline whose schedule vanished from the active set entirely.
	orphan := openDeadline(activeSchedule(schedule.FrequencyMonthly, date(2025, time.May, 1), false), date(2025, time.June, 1))

	f.deadlines.On("ListOpen", mock.Anything, common.TenantID("")).
		Return([]*deadline.Deadline{dPaused, orphan}, nil)
	f.schedules.On("ListActive", mock.Anything, common.TenantID("")).
		Return([]*schedule.Schedule{paused}, nil)

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Examined)
	assert.Equal(t, 0, report.Transitions)
	f.deadlines.AssertNotCalled(t, "UpdateStatusIf", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepCountsPerDeadlineFailures(t *testing.T) {
	now := date(2025, time.June, 21)
	f := newFixture(t, now)

	sched := activeSchedule(schedule.FrequencyMonthly, date(2025, time.May, 20), false)
	bad := openDeadline(sched, date(2025, time.June, 20))
	bad.Status = deadline.StatusDueSoon
	bad.FiredReminders = []int{7, 1}
	good := openDeadline(sched, date(2025, time.June, 19))
	good.Status = deadline.StatusDueSoon
	good.FiredReminders = []int{7, 1}

	f.deadlines.On("ListOpen", mock.Anything, common.TenantID("")).
		Return([]*deadline.Deadline{bad, good}, nil)
	f.schedules.On("ListActive", mock.Anything, common.TenantID("")).
		Return([]*schedule.Schedule{sched}, nil)
	f.deadlines.On("UpdateStatusIf", mock.Anything, bad.TenantID, bad.ID,
		deadline.StatusDueSoon, deadline.StatusOverdue).
		Return(false, errors.New(errors.ErrCodeDatabaseError, "connection reset"))
	f.deadlines.On("UpdateStatusIf", mock.Anything, good.TenantID, good.ID,
		deadline.StatusDueSoon, deadline.StatusOverdue).Return(true, nil)

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	// One failure, but the pass still finished the other deadline.
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Transitions)
}
