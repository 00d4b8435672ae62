package lifecycle

import (
	"context"

	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
)

// Notifier is the outbound signal port.  The production implementation
// publishes to Kafka; reminder and overdue signals are consumed by the
// external notification dispatcher.
type Notifier interface {
	ReminderDue(ctx context.Context, d *deadline.Deadline, offsetDays int) error
	DeadlineOverdue(ctx context.Context, d *deadline.Deadline) error
	DeadlineCompleted(ctx context.Context, d *deadline.Deadline) error
}

// NopNotifier drops all signals.  Used when the event stream is disabled.
type NopNotifier struct{}

func (NopNotifier) ReminderDue(context.Context, *deadline.Deadline, int) error { return nil }
func (NopNotifier) DeadlineOverdue(context.Context, *deadline.Deadline) error  { return nil }
func (NopNotifier) DeadlineCompleted(context.Context, *deadline.Deadline) error {
	return nil
}
