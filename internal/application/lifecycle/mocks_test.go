package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ecocomply/compliance-engine/pkg/types/common"

	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/domain/obligation"
	"github.com/ecocomply/compliance-engine/internal/domain/schedule"
)

type mockDeadlineRepo struct{ mock.Mock }

func (m *mockDeadlineRepo) Upsert(ctx context.Context, d *deadline.Deadline) (*deadline.Deadline, error) {
	args := m.Called(ctx, d)
	if v := args.Get(0); v != nil {
		return v.(*deadline.Deadline), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeadlineRepo) FindByID(ctx context.Context, tenantID common.TenantID, id common.ID) (*deadline.Deadline, error) {
	args := m.Called(ctx, tenantID, id)
	if v := args.Get(0); v != nil {
		return v.(*deadline.Deadline), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeadlineRepo) Update(ctx context.Context, d *deadline.Deadline) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockDeadlineRepo) UpdateStatusIf(ctx context.Context, tenantID common.TenantID, id common.ID, from, to deadline.Status) (bool, error) {
	args := m.Called(ctx, tenantID, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *mockDeadlineRepo) MarkReminderFired(ctx context.Context, tenantID common.TenantID, id common.ID, offset int) (bool, error) {
	args := m.Called(ctx, tenantID, id, offset)
	return args.Bool(0), args.Error(1)
}

func (m *mockDeadlineRepo) ListOpen(ctx context.Context, tenantID common.TenantID) ([]*deadline.Deadline, error) {
	args := m.Called(ctx, tenantID)
	if v := args.Get(0); v != nil {
		return v.([]*deadline.Deadline), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeadlineRepo) ListOpenBySchedule(ctx context.Context, tenantID common.TenantID, scheduleID common.ID) ([]*deadline.Deadline, error) {
	args := m.Called(ctx, tenantID, scheduleID)
	if v := args.Get(0); v != nil {
		return v.([]*deadline.Deadline), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeadlineRepo) List(ctx context.Context, tenantID common.TenantID, f deadline.ListFilter, page common.Page) ([]*deadline.Deadline, *common.Cursor, error) {
	args := m.Called(ctx, tenantID, f, page)
	var items []*deadline.Deadline
	if v := args.Get(0); v != nil {
		items = v.([]*deadline.Deadline)
	}
	var next *common.Cursor
	if v := args.Get(1); v != nil {
		next = v.(*common.Cursor)
	}
	return items, next, args.Error(2)
}

func (m *mockDeadlineRepo) CountOverdue(ctx context.Context, siteID common.ID) (int, error) {
	args := m.Called(ctx, siteID)
	return args.Int(0), args.Error(1)
}

func (m *mockDeadlineRepo) CompletionStats(ctx context.Context, siteID common.ID, cutoff time.Time) (int, int, error) {
	args := m.Called(ctx, siteID, cutoff)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockDeadlineRepo) CountDueWithin(ctx context.Context, siteID common.ID, now time.Time, days int) (int, error) {
	args := m.Called(ctx, siteID, now, days)
	return args.Int(0), args.Error(1)
}

type mockScheduleRepo struct{ mock.Mock }

func (m *mockScheduleRepo) Save(ctx context.Context, s *schedule.Schedule) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockScheduleRepo) FindByID(ctx context.Context, tenantID common.TenantID, id common.ID) (*schedule.Schedule, error) {
	args := m.Called(ctx, tenantID, id)
	if v := args.Get(0); v != nil {
		return v.(*schedule.Schedule), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockScheduleRepo) FindActiveByObligation(ctx context.Context, tenantID common.TenantID, obligationID common.ID) (*schedule.Schedule, error) {
	args := m.Called(ctx, tenantID, obligationID)
	if v := args.Get(0); v != nil {
		return v.(*schedule.Schedule), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockScheduleRepo) UpdateProgress(ctx context.Context, tenantID common.TenantID, id common.ID, lastCompleted, nextDue time.Time) error {
	return m.Called(ctx, tenantID, id, lastCompleted, nextDue).Error(0)
}

func (m *mockScheduleRepo) SetNextDueDate(ctx context.Context, tenantID common.TenantID, id common.ID, nextDue time.Time) error {
	return m.Called(ctx, tenantID, id, nextDue).Error(0)
}

func (m *mockScheduleRepo) SetStatus(ctx context.Context, tenantID common.TenantID, id common.ID, status schedule.Status) error {
	return m.Called(ctx, tenantID, id, status).Error(0)
}

func (m *mockScheduleRepo) ListActive(ctx context.Context, tenantID common.TenantID) ([]*schedule.Schedule, error) {
	args := m.Called(ctx, tenantID)
	if v := args.Get(0); v != nil {
		return v.([]*schedule.Schedule), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockScheduleRepo) ListActiveByEventType(ctx context.Context, tenantID common.TenantID, siteID common.ID, eventType obligation.EventType) ([]*schedule.Schedule, error) {
	args := m.Called(ctx, tenantID, siteID, eventType)
	if v := args.Get(0); v != nil {
		return v.([]*schedule.Schedule), args.Error(1)
	}
	return nil, args.Error(1)
}

// recordingNotifier captures emitted signals for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	reminders []int
	overdue   []common.ID
	completed []common.ID
}

func (r *recordingNotifier) ReminderDue(_ context.Context, _ *deadline.Deadline, offset int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reminders = append(r.reminders, offset)
	return nil
}

func (r *recordingNotifier) DeadlineOverdue(_ context.Context, d *deadline.Deadline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overdue = append(r.overdue, d.ID)
	return nil
}

func (r *recordingNotifier) DeadlineCompleted(_ context.Context, d *deadline.Deadline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, d.ID)
	return nil
}
