// Package lifecycle owns the deadline state machine at the orchestration
// level: explicit completion with schedule regeneration, the periodic
// idempotent sweep, and the listing surface.
package lifecycle

import (
	"context"
	"time"

	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"

	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/domain/schedule"
	"github.com/ecocomply/compliance-engine/internal/domain/storage"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/prometheus"
)

// CompleteDeadlineRequest carries an explicit completion.
type CompleteDeadlineRequest struct {
	TenantID    common.TenantID `json:"-"`
	DeadlineID  common.ID       `json:"-"`
	CompletedBy common.UserID   `json:"completed_by"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// ListDeadlinesRequest is the paged read surface.
type ListDeadlinesRequest struct {
	TenantID common.TenantID
	Filter   deadline.ListFilter
	Page     common.Page
}

// ListDeadlinesResponse carries one page plus the cursor for the next.
type ListDeadlinesResponse struct {
	Deadlines  []*deadline.Deadline `json:"deadlines"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// Service is the deadline lifecycle contract.
type Service interface {
	// CompleteDeadline marks the deadline completed and, for recurring
	// schedules, generates the successor instance in the same transaction.
	// Completion is accepted from any open state, OVERDUE included.
	CompleteDeadline(ctx context.Context, req CompleteDeadlineRequest) (*deadline.Deadline, error)

	GetDeadline(ctx context.Context, tenantID common.TenantID, id common.ID) (*deadline.Deadline, error)
	ListDeadlines(ctx context.Context, req ListDeadlinesRequest) (*ListDeadlinesResponse, error)

	// Sweep runs one idempotent pass over all open deadlines.
	Sweep(ctx context.Context) (*SweepReport, error)
}

// Config bounds the retry of transient persistence failures.
type Config struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

type service struct {
	deadlines deadline.Repository
	schedules schedule.Repository
	calc      *schedule.Calculator
	tx        storage.TxRunner
	notifier  Notifier
	clock     common.Clock
	metrics   *prometheus.Metrics
	logger    logging.Logger
	cfg       Config
}

// NewService wires the lifecycle service.  Nil clock and notifier fall back
// to the system clock and a no-op sink.
func NewService(
	deadlines deadline.Repository,
	schedules schedule.Repository,
	calc *schedule.Calculator,
	tx storage.TxRunner,
	notifier Notifier,
	clock common.Clock,
	metrics *prometheus.Metrics,
	logger logging.Logger,
	cfg Config,
) Service {
	if clock == nil {
		clock = common.SystemClock{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	return &service{
		deadlines: deadlines,
		schedules: schedules,
		calc:      calc,
		tx:        tx,
		notifier:  notifier,
		clock:     clock,
		metrics:   metrics,
		logger:    logger.Named("lifecycle"),
		cfg:       cfg,
	}
}

func (s *service) CompleteDeadline(ctx context.Context, req CompleteDeadlineRequest) (*deadline.Deadline, error) {
	if req.CompletedBy == "" {
		return nil, errors.InvalidParam("completed_by is required")
	}

	d, err := s.deadlines.FindByID(ctx, req.TenantID, req.DeadlineID)
	if err != nil {
		return nil, err
	}

	at := s.clock.Now()
	if req.CompletedAt != nil {
		at = req.CompletedAt.UTC()
	}
	if err := d.Complete(req.CompletedBy, at); err != nil {
		return nil, err
	}

	sched, err := s.schedules.FindByID(ctx, req.TenantID, d.ScheduleID)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}

	// The completion, the successor deadline, and the schedule progress
	// move in one transaction: either all persist or none do, so an
	// exhausted retry leaves state cleanly retryable.
	err = retryTransient(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.deadlines.Update(ctx, d); err != nil {
				return err
			}
			if sched == nil {
				return nil
			}
			return s.advanceSchedule(ctx, sched, d, at)
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.DeadlineCompleted(ctx, d); err != nil {
		s.logger.Warn("completion signal dropped",
			logging.String("deadline_id", d.ID.String()), logging.Err(err))
	}

	s.logger.Info("deadline completed",
		logging.String("deadline_id", d.ID.String()),
		logging.Bool("was_late", d.WasLate))
	return d, nil
}

// advanceSchedule regenerates the next instance after a completion.
// ONE_TIME schedules deactivate instead; paused and cancelled schedules
// record progress but generate nothing.
func (s *service) advanceSchedule(ctx context.Context, sched *schedule.Schedule, d *deadline.Deadline, at time.Time) error {
	if sched.Frequency == schedule.FrequencyOneTime {
		if err := s.schedules.UpdateProgress(ctx, sched.TenantID, sched.ID, at, d.DueDate); err != nil {
			return err
		}
		if sched.IsActive() {
			return s.schedules.SetStatus(ctx, sched.TenantID, sched.ID, schedule.StatusCancelled)
		}
		return nil
	}
	if !sched.IsActive() || !sched.Frequency.IsRecurring() {
		return s.schedules.UpdateProgress(ctx, sched.TenantID, sched.ID, at, sched.NextDueDate)
	}

	res, err := s.calc.NextDueDate(schedule.CalcInput{
		Frequency:             sched.Frequency,
		BaseDate:              sched.BaseDate,
		LastCompleted:         &at,
		PrevDueDate:           &d.DueDate,
		IsRolling:             sched.IsRolling,
		AdjustForBusinessDays: sched.AdjustForBusinessDays,
	})
	if err != nil {
		return err
	}
	if !res.HasDueDate {
		// EVENT_TRIGGERED has no cadence of its own: the next due date stays
		// unset until the next matching event arrives.
		return s.schedules.UpdateProgress(ctx, sched.TenantID, sched.ID, at, time.Time{})
	}

	next := deadline.New(sched.TenantID, sched.ID, sched.ObligationID, sched.SiteID, res.DueDate, s.clock.Now())
	if _, err := s.deadlines.Upsert(ctx, next); err != nil {
		return err
	}
	return s.schedules.UpdateProgress(ctx, sched.TenantID, sched.ID, at, res.DueDate)
}

func (s *service) GetDeadline(ctx context.Context, tenantID common.TenantID, id common.ID) (*deadline.Deadline, error) {
	return s.deadlines.FindByID(ctx, tenantID, id)
}

func (s *service) ListDeadlines(ctx context.Context, req ListDeadlinesRequest) (*ListDeadlinesResponse, error) {
	items, next, err := s.deadlines.List(ctx, req.TenantID, req.Filter, req.Page.Clamp())
	if err != nil {
		return nil, err
	}
	resp := &ListDeadlinesResponse{Deadlines: items}
	if next != nil {
		resp.NextCursor = next.Encode()
	}
	return resp, nil
}
