// Package scheduling orchestrates schedule administration: creation with the
// one-active-per-obligation guarantee, pause/resume, cancellation with its
// cascade into open deadlines, and recurrence-event intake.
package scheduling

import (
	"context"
	"time"

	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"

	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/domain/obligation"
	"github.com/ecocomply/compliance-engine/internal/domain/schedule"
	"github.com/ecocomply/compliance-engine/internal/domain/storage"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
)

// CreateScheduleRequest carries the inbound schedule configuration.
type CreateScheduleRequest struct {
	TenantID              common.TenantID      `json:"-"`
	ObligationID          common.ID            `json:"obligation_id"`
	Frequency             schedule.Frequency   `json:"frequency"`
	StartDate             time.Time            `json:"start_date"`
	IsRolling             bool                 `json:"is_rolling"`
	AdjustForBusinessDays bool                 `json:"adjust_for_business_days"`
	ReminderDays          []int                `json:"reminder_days"`
	EventType             obligation.EventType `json:"event_type,omitempty"`
}

// RecordEventRequest carries an inbound recurrence event.
type RecordEventRequest struct {
	TenantID    common.TenantID      `json:"-"`
	SiteID      common.ID            `json:"site_id"`
	Type        obligation.EventType `json:"type"`
	OccurredAt  time.Time            `json:"occurred_at"`
	Description string               `json:"description,omitempty"`
}

// Service is the schedule administration contract.
type Service interface {
	CreateSchedule(ctx context.Context, req CreateScheduleRequest) (*schedule.Schedule, error)
	GetSchedule(ctx context.Context, tenantID common.TenantID, id common.ID) (*schedule.Schedule, error)
	PauseSchedule(ctx context.Context, tenantID common.TenantID, id common.ID) error
	ResumeSchedule(ctx context.Context, tenantID common.TenantID, id common.ID) error

	// CancelSchedule cancels the schedule and, in the same transaction,
	// cancels its open deadlines and suppresses further generation.
	CancelSchedule(ctx context.Context, tenantID common.TenantID, id common.ID) error

	// RecordEvent persists a recurrence event and re-anchors the active
	// EVENT_TRIGGERED schedules bound to its type at the site.
	RecordEvent(ctx context.Context, req RecordEventRequest) (*obligation.RecurrenceEvent, error)
}

type service struct {
	schedules   schedule.Repository
	deadlines   deadline.Repository
	obligations obligation.Repository
	events      obligation.EventRepository
	calc        *schedule.Calculator
	tx          storage.TxRunner
	clock       common.Clock
	logger      logging.Logger
}

// NewService wires the scheduling service.  A nil clock falls back to the
// system clock.
func NewService(
	schedules schedule.Repository,
	deadlines deadline.Repository,
	obligations obligation.Repository,
	events obligation.EventRepository,
	calc *schedule.Calculator,
	tx storage.TxRunner,
	clock common.Clock,
	logger logging.Logger,
) Service {
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &service{
		schedules:   schedules,
		deadlines:   deadlines,
		obligations: obligations,
		events:      events,
		calc:        calc,
		tx:          tx,
		clock:       clock,
		logger:      logger.Named("scheduling"),
	}
}

func (s *service) CreateSchedule(ctx context.Context, req CreateScheduleRequest) (*schedule.Schedule, error) {
	ob, err := s.obligations.FindByID(ctx, req.ObligationID)
	if err != nil {
		return nil, err
	}
	if !ob.IsActive() {
		return nil, errors.Newf(errors.ErrCodeObligationNotFound, "obligation %s is retired", ob.ID)
	}

	// The partial unique index enforces this too; the pre-check turns the
	// common case into a conflict that names the competing schedule.
	if existing, err := s.schedules.FindActiveByObligation(ctx, req.TenantID, req.ObligationID); err == nil {
		return nil, errors.Newf(errors.ErrCodeScheduleConflict,
			"obligation %s already has active schedule %s", req.ObligationID, existing.ID)
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	sched, err := schedule.New(req.TenantID, ob.ID, ob.SiteID, req.Frequency,
		req.StartDate, req.IsRolling, req.AdjustForBusinessDays, req.ReminderDays)
	if err != nil {
		return nil, err
	}

	if req.Frequency == schedule.FrequencyEventTriggered {
		if !obligation.ValidEventType(req.EventType) {
			return nil, errors.Newf(errors.ErrCodeRecurrenceEventInvalid, "unknown event type %q", req.EventType)
		}
		sched.EventType = req.EventType
	}

	due, err := s.initialDueDate(ctx, sched)
	if err != nil {
		return nil, err
	}
	if due != nil {
		sched.NextDueDate = *due
	}

	// The schedule insert and its first deadline move together: a crashed
	// creation must not leave an active schedule with nothing to sweep.
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.schedules.Save(ctx, sched); err != nil {
			return err
		}
		if due != nil {
			d := deadline.New(sched.TenantID, sched.ID, sched.ObligationID, sched.SiteID, *due, s.clock.Now())
			if _, err := s.deadlines.Upsert(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("schedule created",
		logging.String("schedule_id", sched.ID.String()),
		logging.String("obligation_id", sched.ObligationID.String()),
		logging.String("frequency", string(sched.Frequency)))
	return sched, nil
}

// initialDueDate computes the first due date at creation.  The first
// instance of a calendar cadence falls on the base date itself; regeneration
// after completion is where the calculator advances the cadence.  Returns
// nil for CONTINUOUS schedules and EVENT_TRIGGERED schedules with no
// matching event yet.
func (s *service) initialDueDate(ctx context.Context, sched *schedule.Schedule) (*time.Time, error) {
	switch sched.Frequency {
	case schedule.FrequencyContinuous:
		return nil, nil

	case schedule.FrequencyEventTriggered:
		ev, err := s.events.LatestMatching(ctx, sched.SiteID, sched.EventType)
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, nil
		}
		date := &ev.OccurredAt
		res, err := s.calc.NextDueDate(schedule.CalcInput{
			Frequency:             sched.Frequency,
			BaseDate:              sched.BaseDate,
			AdjustForBusinessDays: sched.AdjustForBusinessDays,
			EventDate:             date,
		})
		if err != nil {
			return nil, err
		}
		return &res.DueDate, nil

	default:
		due := sched.BaseDate
		if sched.AdjustForBusinessDays && sched.Frequency != schedule.FrequencyOneTime {
			due = schedule.NextBusinessDay(s.calendar(), due)
		}
		return &due, nil
	}
}

func (s *service) calendar() schedule.BusinessCalendar {
	return s.calc.Calendar()
}

func (s *service) GetSchedule(ctx context.Context, tenantID common.TenantID, id common.ID) (*schedule.Schedule, error) {
	return s.schedules.FindByID(ctx, tenantID, id)
}

func (s *service) PauseSchedule(ctx context.Context, tenantID common.TenantID, id common.ID) error {
	sched, err := s.schedules.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if sched.Status != schedule.StatusActive {
		return errors.Newf(errors.ErrCodeScheduleNotActive, "schedule %s is %s", id, sched.Status)
	}
	return s.schedules.SetStatus(ctx, tenantID, id, schedule.StatusPaused)
}

func (s *service) ResumeSchedule(ctx context.Context, tenantID common.TenantID, id common.ID) error {
	sched, err := s.schedules.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if sched.Status != schedule.StatusPaused {
		return errors.Newf(errors.ErrCodeScheduleNotActive, "schedule %s is %s, not paused", id, sched.Status)
	}
	return s.schedules.SetStatus(ctx, tenantID, id, schedule.StatusActive)
}

func (s *service) CancelSchedule(ctx context.Context, tenantID common.TenantID, id common.ID) error {
	sched, err := s.schedules.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if sched.Status == schedule.StatusCancelled {
		// Cancelling twice is a no-op, not a conflict.
		return nil
	}

	now := s.clock.Now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.schedules.SetStatus(ctx, tenantID, id, schedule.StatusCancelled); err != nil {
			return err
		}
		open, err := s.deadlines.ListOpenBySchedule(ctx, tenantID, id)
		if err != nil {
			return err
		}
		for _, d := range open {
			if err := d.Cancel(now); err != nil {
				return err
			}
			if err := s.deadlines.Update(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("schedule cancelled", logging.String("schedule_id", id.String()))
	return nil
}

func (s *service) RecordEvent(ctx context.Context, req RecordEventRequest) (*obligation.RecurrenceEvent, error) {
	if !obligation.ValidEventType(req.Type) {
		return nil, errors.Newf(errors.ErrCodeRecurrenceEventInvalid, "unknown event type %q", req.Type)
	}
	if req.OccurredAt.IsZero() {
		return nil, errors.InvalidParam("occurred_at is required")
	}

	now := s.clock.Now()
	ev := &obligation.RecurrenceEvent{
		ID:          common.NewID(),
		TenantID:    req.TenantID,
		SiteID:      req.SiteID,
		Type:        req.Type,
		OccurredAt:  req.OccurredAt.UTC(),
		Description: req.Description,
		CreatedAt:   now,
	}
	if err := s.events.Save(ctx, ev); err != nil {
		return nil, err
	}

	// Re-anchor the event-triggered schedules bound to this event type.
	bound, err := s.schedules.ListActiveByEventType(ctx, req.TenantID, req.SiteID, req.Type)
	if err != nil {
		return nil, err
	}
	for _, sched := range bound {
		res, err := s.calc.NextDueDate(schedule.CalcInput{
			Frequency:             sched.Frequency,
			BaseDate:              sched.BaseDate,
			AdjustForBusinessDays: sched.AdjustForBusinessDays,
			EventDate:             &ev.OccurredAt,
		})
		if err != nil || !res.HasDueDate {
			continue
		}
		sched := sched
		txErr := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.schedules.SetNextDueDate(ctx, req.TenantID, sched.ID, res.DueDate); err != nil {
				return err
			}
			d := deadline.New(sched.TenantID, sched.ID, sched.ObligationID, sched.SiteID, res.DueDate, now)
			_, err := s.deadlines.Upsert(ctx, d)
			return err
		})
		if txErr != nil {
			s.logger.Warn("event fan-out failed for schedule",
				logging.String("schedule_id", sched.ID.String()),
				logging.Err(txErr))
		}
	}

	return ev, nil
}
