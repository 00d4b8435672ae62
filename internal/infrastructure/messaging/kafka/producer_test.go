package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

type mockKafkaWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed    bool
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		return m.writeFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed = true
	return nil
}

func newTestProducer(w WriterInterface) *Producer {
	return &Producer{
		writer:  w,
		config:  ProducerConfig{Brokers: []string{"localhost:9092"}, MaxMessageBytes: 1 << 20},
		logger:  logging.NewNopLogger(),
		metrics: &ProducerMetrics{},
	}
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(ProducerConfig{}, logging.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestPublish_WritesEnvelopeKeyedByTenant(t *testing.T) {
	var captured []kafka.Message
	p := newTestProducer(&mockKafkaWriter{
		writeFunc: func(_ context.Context, msgs ...kafka.Message) error {
			captured = msgs
			return nil
		},
	})

	env, err := NewEventEnvelope("deadline.overdue", "test", DeadlineOverduePayload{
		DeadlineID: "d-1",
		TenantID:   "tenant-1",
	})
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), TopicDeadlineOverdue, "tenant-1", env))

	require.Len(t, captured, 1)
	assert.Equal(t, TopicDeadlineOverdue, captured[0].Topic)
	assert.Equal(t, []byte("tenant-1"), captured[0].Key)

	var got EventEnvelope
	require.NoError(t, json.Unmarshal(captured[0].Value, &got))
	assert.Equal(t, "deadline.overdue", got.EventType)
	assert.Equal(t, "v1", got.SchemaVersion)
	assert.NotEmpty(t, got.EventID)
	assert.Equal(t, int64(1), p.Sent())
}

func TestPublish_WriterFailureCounted(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{
		writeFunc: func(context.Context, ...kafka.Message) error {
			return context.DeadlineExceeded
		},
	})

	env, err := NewEventEnvelope("reminder.due", "test", ReminderDuePayload{DeadlineID: "d-1"})
	require.NoError(t, err)

	err = p.Publish(context.Background(), TopicReminderDue, "tenant-1", env)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
	assert.Equal(t, int64(1), p.metrics.MessagesFailed.Load())
}

func TestPublish_AfterCloseRejected(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	env, err := NewEventEnvelope("risk.updated", "test", RiskUpdatedPayload{TenantID: "tenant-1"})
	require.NoError(t, err)
	assert.ErrorIs(t, p.Publish(context.Background(), TopicRiskUpdated, "tenant-1", env), ErrProducerClosed)
}

func TestNotifier_ReminderDuePayload(t *testing.T) {
	var captured []kafka.Message
	p := newTestProducer(&mockKafkaWriter{
		writeFunc: func(_ context.Context, msgs ...kafka.Message) error {
			captured = msgs
			return nil
		},
	})
	n := NewNotifier(p)

	due := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	d := &deadline.Deadline{
		ID:           common.ID("d-1"),
		TenantID:     common.TenantID("tenant-1"),
		ScheduleID:   common.ID("s-1"),
		ObligationID: common.ID("o-1"),
		SiteID:       common.ID("site-1"),
		DueDate:      due,
		Status:       deadline.StatusDueSoon,
	}

	require.NoError(t, n.ReminderDue(context.Background(), d, 7))
	require.Len(t, captured, 1)
	assert.Equal(t, TopicReminderDue, captured[0].Topic)

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(captured[0].Value, &env))
	var payload ReminderDuePayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "d-1", payload.DeadlineID)
	assert.Equal(t, 7, payload.OffsetDays)
	assert.True(t, payload.DueDate.Equal(due))
}
