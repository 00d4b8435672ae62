package lifecycle

import (
	"context"
	"time"

	"github.com/ecocomply/compliance-engine/pkg/types/common"

	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/domain/schedule"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
)

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	Examined       int `json:"examined"`
	Transitions    int `json:"transitions"`
	RemindersFired int `json:"reminders_fired"`
	Errors         int `json:"errors"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Sweep applies time-driven transitions and reminder emissions across all
// open deadlines.  Each deadline is an independent unit of work: a failure
// is counted and skipped, never aborts the pass.  Every mutation is a
// compare-and-swap or a set-insert, so concurrent sweeps for the same
// instant produce each effect exactly once.
func (s *service) Sweep(ctx context.Context) (*SweepReport, error) {
	started := s.clock.Now()
	report := &SweepReport{StartedAt: started}

	open, err := s.deadlines.ListOpen(ctx, "")
	if err != nil {
		return nil, err
	}
	report.Examined = len(open)

	scheds, err := s.schedulesByID(ctx)
	if err != nil {
		return nil, err
	}

	for _, d := range open {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sched, ok := scheds[d.ScheduleID]
		if !ok || !sched.IsActive() || !sched.TracksDeadlines() {
			continue
		}
		if err := s.sweepOne(ctx, d, sched, started, report); err != nil {
			report.Errors++
			if s.metrics != nil {
				s.metrics.SweepErrorsTotal.Inc()
			}
			s.logger.Warn("sweep failed for deadline",
				logging.String("deadline_id", d.ID.String()), logging.Err(err))
		}
	}

	report.FinishedAt = s.clock.Now()
	if s.metrics != nil {
		s.metrics.SweepRunsTotal.Inc()
		s.metrics.SweepDuration.Observe(report.FinishedAt.Sub(started).Seconds())
		s.metrics.SweepDeadlinesOpen.Set(float64(report.Examined))
	}
	s.logger.Info("sweep finished",
		logging.Int("examined", report.Examined),
		logging.Int("transitions", report.Transitions),
		logging.Int("reminders_fired", report.RemindersFired),
		logging.Int("errors", report.Errors))
	return report, nil
}

func (s *service) schedulesByID(ctx context.Context) (map[common.ID]*schedule.Schedule, error) {
	active, err := s.schedules.ListActive(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make(map[common.ID]*schedule.Schedule, len(active))
	for _, sc := range active {
		out[sc.ID] = sc
	}
	return out, nil
}

func (s *service) sweepOne(ctx context.Context, d *deadline.Deadline, sched *schedule.Schedule, now time.Time, report *SweepReport) error {
	target := d.DeriveStatus(now, sched.MaxReminderDays())
	if target != d.Status && deadline.CanTransition(d.Status, target) {
		changed, err := s.deadlines.UpdateStatusIf(ctx, d.TenantID, d.ID, d.Status, target)
		if err != nil {
			return err
		}
		if changed {
			from := d.Status
			d.Status = target
			report.Transitions++
			if s.metrics != nil {
				s.metrics.SweepTransitions.WithLabelValues(string(target)).Inc()
			}
			s.logger.Debug("deadline transitioned",
				logging.String("deadline_id", d.ID.String()),
				logging.String("from", string(from)),
				logging.String("to", string(target)))
			if target == deadline.StatusOverdue {
				if err := s.notifier.DeadlineOverdue(ctx, d); err != nil {
					s.logger.Warn("overdue signal dropped",
						logging.String("deadline_id", d.ID.String()), logging.Err(err))
				}
			}
		}
		// A lost race means another sweep or a completion got there first;
		// either way the work is done.
	}

	for _, offset := range d.DueReminders(now, sched.ReminderDays) {
		fired, err := s.deadlines.MarkReminderFired(ctx, d.TenantID, d.ID, offset)
		if err != nil {
			return err
		}
		if !fired {
			continue
		}
		d.FiredReminders = append(d.FiredReminders, offset)
		report.RemindersFired++
		if s.metrics != nil {
			s.metrics.SweepRemindersFired.Inc()
		}
		if err := s.notifier.ReminderDue(ctx, d, offset); err != nil {
			s.logger.Warn("reminder signal dropped",
				logging.String("deadline_id", d.ID.String()),
				logging.Int("offset_days", offset), logging.Err(err))
		}
	}
	return nil
}
