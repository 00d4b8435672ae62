package kafka

import (
	"context"
	"time"

	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/domain/risk"
)

const envelopeSource = "compliance-engine"

// Notifier publishes lifecycle and risk signals to their topics.  It
// satisfies both the lifecycle and the risk application notifier ports.
// Events are keyed by tenant so per-tenant ordering survives partitioning.
type Notifier struct {
	producer *Producer
}

func NewNotifier(producer *Producer) *Notifier {
	return &Notifier{producer: producer}
}

func (n *Notifier) ReminderDue(ctx context.Context, d *deadline.Deadline, offsetDays int) error {
	env, err := NewEventEnvelope("reminder.due", envelopeSource, ReminderDuePayload{
		DeadlineID:   d.ID.String(),
		ScheduleID:   d.ScheduleID.String(),
		ObligationID: d.ObligationID.String(),
		SiteID:       d.SiteID.String(),
		TenantID:     string(d.TenantID),
		DueDate:      d.DueDate,
		OffsetDays:   offsetDays,
	})
	if err != nil {
		return err
	}
	return n.producer.Publish(ctx, TopicReminderDue, string(d.TenantID), env)
}

func (n *Notifier) DeadlineOverdue(ctx context.Context, d *deadline.Deadline) error {
	env, err := NewEventEnvelope("deadline.overdue", envelopeSource, DeadlineOverduePayload{
		DeadlineID:   d.ID.String(),
		ScheduleID:   d.ScheduleID.String(),
		ObligationID: d.ObligationID.String(),
		SiteID:       d.SiteID.String(),
		TenantID:     string(d.TenantID),
		DueDate:      d.DueDate,
	})
	if err != nil {
		return err
	}
	return n.producer.Publish(ctx, TopicDeadlineOverdue, string(d.TenantID), env)
}

func (n *Notifier) DeadlineCompleted(ctx context.Context, d *deadline.Deadline) error {
	var completedAt time.Time
	if d.CompletedAt != nil {
		completedAt = *d.CompletedAt
	}
	env, err := NewEventEnvelope("deadline.completed", envelopeSource, DeadlineCompletedPayload{
		DeadlineID:  d.ID.String(),
		ScheduleID:  d.ScheduleID.String(),
		SiteID:      d.SiteID.String(),
		TenantID:    string(d.TenantID),
		CompletedBy: string(d.CompletedBy),
		CompletedAt: completedAt,
		WasLate:     d.WasLate,
	})
	if err != nil {
		return err
	}
	return n.producer.Publish(ctx, TopicDeadlineDone, string(d.TenantID), env)
}

func (n *Notifier) RiskUpdated(ctx context.Context, s *risk.Score) error {
	env, err := NewEventEnvelope("risk.updated", envelopeSource, RiskUpdatedPayload{
		SiteID:     s.SiteID.String(),
		TenantID:   string(s.TenantID),
		ScoreType:  string(s.Type),
		Value:      s.Value,
		Level:      string(s.Level),
		ComputedAt: s.ComputedAt,
	})
	if err != nil {
		return err
	}
	return n.producer.Publish(ctx, TopicRiskUpdated, string(s.TenantID), env)
}
