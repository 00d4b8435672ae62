package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"

	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/domain/obligation"
	"github.com/ecocomply/compliance-engine/internal/domain/schedule"
	"github.com/ecocomply/compliance-engine/internal/domain/storage"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
)

// The fakes embed the port interfaces and override only what the service
// touches, so port growth does not break these tests.

type fakeScheduleRepo struct {
	schedule.Repository
	saved      []*schedule.Schedule
	byID       map[common.ID]*schedule.Schedule
	statusSets map[common.ID]schedule.Status
	nextDueSet map[common.ID]time.Time
	byEvent    []*schedule.Schedule
	saveErr    error
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{
		byID:       map[common.ID]*schedule.Schedule{},
		statusSets: map[common.ID]schedule.Status{},
		nextDueSet: map[common.ID]time.Time{},
	}
}

func (f *fakeScheduleRepo) Save(_ context.Context, s *schedule.Schedule) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, s)
	f.byID[s.ID] = s
	return nil
}

func (f *fakeScheduleRepo) FindByID(_ context.Context, _ common.TenantID, id common.ID) (*schedule.Schedule, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeScheduleNotFound, "schedule %s not found", id)
	}
	return s, nil
}

func (f *fakeScheduleRepo) FindActiveByObligation(_ context.Context, _ common.TenantID, obligationID common.ID) (*schedule.Schedule, error) {
	for _, s := range f.byID {
		if s.ObligationID == obligationID && s.Status == schedule.StatusActive {
			return s, nil
		}
	}
	return nil, errors.Newf(errors.ErrCodeScheduleNotFound, "no active schedule for obligation %s", obligationID)
}

func (f *fakeScheduleRepo) SetStatus(_ context.Context, _ common.TenantID, id common.ID, status schedule.Status) error {
	f.statusSets[id] = status
	if s, ok := f.byID[id]; ok {
		s.Status = status
	}
	return nil
}

func (f *fakeScheduleRepo) SetNextDueDate(_ context.Context, _ common.TenantID, id common.ID, nextDue time.Time) error {
	f.nextDueSet[id] = nextDue
	return nil
}

func (f *fakeScheduleRepo) ListActiveByEventType(_ context.Context, _ common.TenantID, _ common.ID, _ obligation.EventType) ([]*schedule.Schedule, error) {
	return f.byEvent, nil
}

type fakeDeadlineRepo struct {
	deadline.Repository
	upserted []*deadline.Deadline
	open     []*deadline.Deadline
	updated  []*deadline.Deadline
}

func (f *fakeDeadlineRepo) Upsert(_ context.Context, d *deadline.Deadline) (*deadline.Deadline, error) {
	f.upserted = append(f.upserted, d)
	return d, nil
}

func (f *fakeDeadlineRepo) ListOpenBySchedule(_ context.Context, _ common.TenantID, _ common.ID) ([]*deadline.Deadline, error) {
	return f.open, nil
}

func (f *fakeDeadlineRepo) Update(_ context.Context, d *deadline.Deadline) error {
	f.updated = append(f.updated, d)
	return nil
}

type fakeObligationRepo struct {
	obligation.Repository
	byID map[common.ID]*obligation.Obligation
}

func (f *fakeObligationRepo) FindByID(_ context.Context, id common.ID) (*obligation.Obligation, error) {
	ob, ok := f.byID[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeObligationNotFound, "obligation %s not found", id)
	}
	return ob, nil
}

type fakeEventRepo struct {
	obligation.EventRepository
	saved  []*obligation.RecurrenceEvent
	latest *obligation.RecurrenceEvent
}

func (f *fakeEventRepo) Save(_ context.Context, ev *obligation.RecurrenceEvent) error {
	f.saved = append(f.saved, ev)
	return nil
}

func (f *fakeEventRepo) LatestMatching(_ context.Context, _ common.ID, _ obligation.EventType) (*obligation.RecurrenceEvent, error) {
	return f.latest, nil
}

type schedulingFixture struct {
	svc         Service
	schedules   *fakeScheduleRepo
	deadlines   *fakeDeadlineRepo
	obligations *fakeObligationRepo
	events      *fakeEventRepo
	now         time.Time
}

func newSchedulingFixture(t *testing.T) *schedulingFixture {
	t.Helper()
	f := &schedulingFixture{
		schedules:   newFakeScheduleRepo(),
		deadlines:   &fakeDeadlineRepo{},
		obligations: &fakeObligationRepo{byID: map[common.ID]*obligation.Obligation{}},
		events:      &fakeEventRepo{},
		now:         time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(
		f.schedules, f.deadlines, f.obligations, f.events,
		schedule.NewCalculator(nil),
		storage.NopTxRunner{},
		common.FixedClock{T: f.now},
		logging.NewNopLogger(),
	)
	return f
}

func (f *schedulingFixture) addObligation(id, siteID common.ID, status obligation.Status) {
	f.obligations.byID[id] = &obligation.Obligation{
		ID:       id,
		TenantID: "tenant-1",
		SiteID:   siteID,
		Status:   status,
	}
}

func TestCreateSchedule_MonthlyFirstDeadlineOnBaseDate(t *testing.T) {
	f := newSchedulingFixture(t)
	f.addObligation("ob-1", "site-1", obligation.StatusActive)

	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	sched, err := f.svc.CreateSchedule(context.Background(), CreateScheduleRequest{
		TenantID:     "tenant-1",
		ObligationID: "ob-1",
		Frequency:    schedule.FrequencyMonthly,
		StartDate:    base,
		ReminderDays: []int{7, 1},
	})
	require.NoError(t, err)

	assert.True(t, sched.NextDueDate.Equal(base))
	require.Len(t, f.schedules.saved, 1)
	require.Len(t, f.deadlines.upserted, 1)
	assert.True(t, f.deadlines.upserted[0].DueDate.Equal(base))
	assert.Equal(t, deadline.StatusPending, f.deadlines.upserted[0].Status)
}

func TestCreateSchedule_BusinessDayAdjustmentOnFirstInstance(t *testing.T) {
	f := newSchedulingFixture(t)
	f.addObligation("ob-1", "site-1", obligation.StatusActive)

	// 2025-06-14 is a Saturday; the adjusted first due date is Monday the 16th.
	saturday := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	sched, err := f.svc.CreateSchedule(context.Background(), CreateScheduleRequest{
		TenantID:              "tenant-1",
		ObligationID:          "ob-1",
		Frequency:             schedule.FrequencyWeekly,
		StartDate:             saturday,
		AdjustForBusinessDays: true,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), sched.NextDueDate)
}

func TestCreateSchedule_ContinuousHasNoDeadline(t *testing.T) {
	f := newSchedulingFixture(t)
	f.addObligation("ob-1", "site-1", obligation.StatusActive)

	sched, err := f.svc.CreateSchedule(context.Background(), CreateScheduleRequest{
		TenantID:     "tenant-1",
		ObligationID: "ob-1",
		Frequency:    schedule.FrequencyContinuous,
		StartDate:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.True(t, sched.NextDueDate.IsZero())
	assert.Empty(t, f.deadlines.upserted)
}

func TestCreateSchedule_EventTriggeredWaitsForFirstEvent(t *testing.T) {
	f := newSchedulingFixture(t)
	f.addObligation("ob-1", "site-1", obligation.StatusActive)

	sched, err := f.svc.CreateSchedule(context.Background(), CreateScheduleRequest{
		TenantID:     "tenant-1",
		ObligationID: "ob-1",
		Frequency:    schedule.FrequencyEventTriggered,
		StartDate:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EventType:    obligation.EventCommissioning,
	})
	require.NoError(t, err)

	assert.True(t, sched.NextDueDate.IsZero())
	assert.Empty(t, f.deadlines.upserted)
}

func TestCreateSchedule_EventTriggeredAnchoredToLatestEvent(t *testing.T) {
	f := newSchedulingFixture(t)
	f.addObligation("ob-1", "site-1", obligation.StatusActive)

	occurred := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	f.events.latest = &obligation.RecurrenceEvent{
		ID:         common.NewID(),
		TenantID:   "tenant-1",
		SiteID:     "site-1",
		Type:       obligation.EventCommissioning,
		OccurredAt: occurred,
	}

	sched, err := f.svc.CreateSchedule(context.Background(), CreateScheduleRequest{
		TenantID:     "tenant-1",
		ObligationID: "ob-1",
		Frequency:    schedule.FrequencyEventTriggered,
		StartDate:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EventType:    obligation.EventCommissioning,
	})
	require.NoError(t, err)

	assert.True(t, sched.NextDueDate.Equal(occurred))
	require.Len(t, f.deadlines.upserted, 1)
}

func TestCreateSchedule_EventTriggeredRequiresKnownEventType(t *testing.T) {
	f := newSchedulingFixture(t)
	f.addObligation("ob-1", "site-1", obligation.StatusActive)

	_, err := f.svc.CreateSchedule(context.Background(), CreateScheduleRequest{
		TenantID:     "tenant-1",
		ObligationID: "ob-1",
		Frequency:    schedule.FrequencyEventTriggered,
		StartDate:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EventType:    obligation.EventType("eclipse"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRecurrenceEventInvalid))
}

func TestCreateSchedule_RetiredObligationRejected(t *testing.T) {
	f := newSchedulingFixture(t)
	f.addObligation("ob-1", "site-1", obligation.StatusRetired)

	_, err := f.svc.CreateSchedule(context.Background(), CreateScheduleRequest{
		TenantID:     "tenant-1",
		ObligationID: "ob-1",
		Frequency:    schedule.FrequencyMonthly,
		StartDate:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeObligationNotFound))
	assert.Empty(t, f.schedules.saved)
}

func TestPauseResume_GuardsStatus(t *testing.T) {
	f := newSchedulingFixture(t)
	f.addObligation("ob-1", "site-1", obligation.StatusActive)

	sched, err := f.svc.CreateSchedule(context.Background(), CreateScheduleRequest{
		TenantID:     "tenant-1",
		ObligationID: "ob-1",
		Frequency:    schedule.FrequencyQuarterly,
		StartDate:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// An active schedule cannot be resumed, only paused.
	err = f.svc.ResumeSchedule(context.Background(), "tenant-1", sched.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScheduleNotActive))

	require.NoError(t, f.svc.PauseSchedule(context.Background(), "tenant-1", sched.ID))
	assert.Equal(t, schedule.StatusPaused, f.schedules.statusSets[sched.ID])

	err = f.svc.PauseSchedule(context.Background(), "tenant-1", sched.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScheduleNotActive))

	require.NoError(t, f.svc.ResumeSchedule(context.Background(), "tenant-1", sched.ID))
	assert.Equal(t, schedule.StatusActive, f.schedules.statusSets[sched.ID])
}

func TestCancelSchedule_CascadesIntoOpenDeadlines(t *testing.T) {
	f := newSchedulingFixture(t)
	f.addObligation("ob-1", "site-1", obligation.StatusActive)

	sched, err := f.svc.CreateSchedule(context.Background(), CreateScheduleRequest{
		TenantID:     "tenant-1",
		ObligationID: "ob-1",
		Frequency:    schedule.FrequencyMonthly,
		StartDate:    time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	open := deadline.New("tenant-1", sched.ID, "ob-1", "site-1",
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), f.now)
	f.deadlines.open = []*deadline.Deadline{open}

	require.NoError(t, f.svc.CancelSchedule(context.Background(), "tenant-1", sched.ID))

	assert.Equal(t, schedule.StatusCancelled, f.schedules.statusSets[sched.ID])
	require.Len(t, f.deadlines.updated, 1)
	assert.Equal(t, deadline.StatusCancelled, f.deadlines.updated[0].Status)

	// A second cancel is a no-op, not a conflict.
	f.deadlines.updated = nil
	require.NoError(t, f.svc.CancelSchedule(context.Background(), "tenant-1", sched.ID))
	assert.Empty(t, f.deadlines.updated)
}

func TestRecordEvent_FansOutToBoundSchedules(t *testing.T) {
	f := newSchedulingFixture(t)

	bound := &schedule.Schedule{
		ID:           common.NewID(),
		TenantID:     "tenant-1",
		ObligationID: "ob-1",
		SiteID:       "site-1",
		Frequency:    schedule.FrequencyEventTriggered,
		Status:       schedule.StatusActive,
		BaseDate:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EventType:    obligation.EventPermitIssued,
	}
	f.schedules.byID[bound.ID] = bound
	f.schedules.byEvent = []*schedule.Schedule{bound}

	occurred := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	ev, err := f.svc.RecordEvent(context.Background(), RecordEventRequest{
		TenantID:   "tenant-1",
		SiteID:     "site-1",
		Type:       obligation.EventPermitIssued,
		OccurredAt: occurred,
	})
	require.NoError(t, err)
	require.Len(t, f.events.saved, 1)
	assert.Equal(t, ev, f.events.saved[0])

	assert.True(t, f.schedules.nextDueSet[bound.ID].Equal(occurred))
	require.Len(t, f.deadlines.upserted, 1)
	assert.True(t, f.deadlines.upserted[0].DueDate.Equal(occurred))
}

func TestRecordEvent_ValidationFailures(t *testing.T) {
	f := newSchedulingFixture(t)

	_, err := f.svc.RecordEvent(context.Background(), RecordEventRequest{
		TenantID: "tenant-1",
		SiteID:   "site-1",
		Type:     obligation.EventType("eclipse"),
	})
	assert.True(t, errors.IsCode(err, errors.ErrCodeRecurrenceEventInvalid))

	_, err = f.svc.RecordEvent(context.Background(), RecordEventRequest{
		TenantID: "tenant-1",
		SiteID:   "site-1",
		Type:     obligation.EventRenewal,
	})
	require.Error(t, err)
	assert.Empty(t, f.events.saved)
}

func TestCreateSchedule_ActiveDuplicateConflicts(t *testing.T) {
	f := newSchedulingFixture(t)
	f.addObligation("ob-1", "site-1", obligation.StatusActive)
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	first, err := f.svc.CreateSchedule(context.Background(), CreateScheduleRequest{
		TenantID:     "tenant-1",
		ObligationID: "ob-1",
		Frequency:    schedule.FrequencyMonthly,
		StartDate:    base,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateSchedule(context.Background(), CreateScheduleRequest{
		TenantID:     "tenant-1",
		ObligationID: "ob-1",
		Frequency:    schedule.FrequencyWeekly,
		StartDate:    base,
	})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Contains(t, err.Error(), first.ID.String())
	assert.Len(t, f.schedules.saved, 1)

	// A cancelled predecessor no longer blocks creation.
	require.NoError(t, f.schedules.SetStatus(context.Background(), "tenant-1", first.ID, schedule.StatusCancelled))
	_, err = f.svc.CreateSchedule(context.Background(), CreateScheduleRequest{
		TenantID:     "tenant-1",
		ObligationID: "ob-1",
		Frequency:    schedule.FrequencyWeekly,
		StartDate:    base,
	})
	require.NoError(t, err)
}
