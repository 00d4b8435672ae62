package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ecocomply/compliance-engine/pkg/errors"
)

// Topic constants.  Reminder and overdue signals are consumed by the
// external notification dispatcher; risk updates feed dashboards.
const (
	TopicReminderDue     = "compliance.reminder.due"
	TopicDeadlineOverdue = "compliance.deadline.overdue"
	TopicDeadlineDone    = "compliance.deadline.completed"
	TopicRiskUpdated     = "compliance.risk.updated"
)

// EventEnvelope standardizes event messages.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	TraceID       string            `json:"trace_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ReminderDuePayload is emitted once per (deadline, reminder offset).
type ReminderDuePayload struct {
	DeadlineID   string    `json:"deadline_id"`
	ScheduleID   string    `json:"schedule_id"`
	ObligationID string    `json:"obligation_id"`
	SiteID       string    `json:"site_id"`
	TenantID     string    `json:"tenant_id"`
	DueDate      time.Time `json:"due_date"`
	OffsetDays   int       `json:"offset_days"`
}

// DeadlineOverduePayload is emitted when the sweep marks a deadline overdue.
type DeadlineOverduePayload struct {
	DeadlineID   string    `json:"deadline_id"`
	ScheduleID   string    `json:"schedule_id"`
	ObligationID string    `json:"obligation_id"`
	SiteID       string    `json:"site_id"`
	TenantID     string    `json:"tenant_id"`
	DueDate      time.Time `json:"due_date"`
}

// DeadlineCompletedPayload is emitted on explicit completion.
type DeadlineCompletedPayload struct {
	DeadlineID  string    `json:"deadline_id"`
	ScheduleID  string    `json:"schedule_id"`
	SiteID      string    `json:"site_id"`
	TenantID    string    `json:"tenant_id"`
	CompletedBy string    `json:"completed_by"`
	CompletedAt time.Time `json:"completed_at"`
	WasLate     bool      `json:"was_late"`
}

// RiskUpdatedPayload is emitted when a snapshot is replaced.
type RiskUpdatedPayload struct {
	SiteID     string    `json:"site_id,omitempty"`
	TenantID   string    `json:"tenant_id"`
	ScoreType  string    `json:"score_type"`
	Value      int       `json:"value"`
	Level      string    `json:"level"`
	ComputedAt time.Time `json:"computed_at"`
}

// NewEventEnvelope wraps a payload in the standard envelope.
func NewEventEnvelope(eventType string, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the envelope payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeSerialization, "empty payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode payload")
	}
	return nil
}
