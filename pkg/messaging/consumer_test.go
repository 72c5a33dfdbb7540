package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/agrostock/agrostock-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type recordingAck struct {
	acked    bool
	nacked   bool
	requeue  bool
	rejected bool
}

func (r *recordingAck) Ack(tag uint64, multiple bool) error {
	r.acked = true
	return nil
}

func (r *recordingAck) Nack(tag uint64, multiple, requeue bool) error {
	r.nacked = true
	r.requeue = requeue
	return nil
}

func (r *recordingAck) Reject(tag uint64, requeue bool) error {
	r.rejected = true
	r.requeue = requeue
	return nil
}

func newTestConsumer() *Consumer {
	return &Consumer{
		queueName: "test",
		handlers:  make(map[string]MessageHandler),
		logger:    logger.Nop(),
	}
}

func delivery(t *testing.T, ack *recordingAck, eventType string, data interface{}, headers amqp.Table) amqp.Delivery {
	t.Helper()
	event, err := NewEvent(eventType, "test", "corr-1", data)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, Headers: headers}
}

func TestConsumer_HandleMessage(t *testing.T) {
	t.Run("dispatches to handler and acks", func(t *testing.T) {
		c := newTestConsumer()
		var got StockAdjustedEvent
		var corr string
		c.RegisterHandler(EventStockAdjusted, func(ctx context.Context, e *Event) error {
			corr = CorrelationID(ctx)
			return e.UnmarshalData(&got)
		})

		ack := &recordingAck{}
		c.handleMessage(context.Background(), delivery(t, ack, EventStockAdjusted, StockAdjustedEvent{ProductID: "p-1", Delta: -3}, nil))

		assert.True(t, ack.acked)
		assert.Equal(t, "p-1", got.ProductID)
		assert.Equal(t, -3.0, got.Delta)
		assert.Equal(t, "corr-1", corr)
	})

	t.Run("acks events without a handler", func(t *testing.T) {
		c := newTestConsumer()
		ack := &recordingAck{}
		c.handleMessage(context.Background(), delivery(t, ack, "unknown.event", map[string]string{}, nil))
		assert.True(t, ack.acked)
	})

	t.Run("rejects malformed body without requeue", func(t *testing.T) {
		c := newTestConsumer()
		ack := &recordingAck{}
		c.handleMessage(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})
		assert.True(t, ack.rejected)
		assert.False(t, ack.requeue)
	})

	t.Run("requeues on handler failure", func(t *testing.T) {
		c := newTestConsumer()
		c.RegisterHandler(EventStockAdjusted, func(ctx context.Context, e *Event) error {
			return errors.New("boom")
		})
		ack := &recordingAck{}
		c.handleMessage(context.Background(), delivery(t, ack, EventStockAdjusted, StockAdjustedEvent{}, nil))
		assert.True(t, ack.nacked)
		assert.True(t, ack.requeue)
	})

	t.Run("dead-letters after max retries", func(t *testing.T) {
		c := newTestConsumer()
		c.RegisterHandler(EventStockAdjusted, func(ctx context.Context, e *Event) error {
			return errors.New("boom")
		})
		headers := amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(3)}}}
		ack := &recordingAck{}
		c.handleMessage(context.Background(), delivery(t, ack, EventStockAdjusted, StockAdjustedEvent{}, headers))
		assert.True(t, ack.rejected)
		assert.False(t, ack.requeue)
	})
}

func TestNewEvent(t *testing.T) {
	e, err := NewEvent(EventAlertNotification, "alert-service", "", AlertNotificationEvent{AlertID: "a-1", Recipients: []string{"ops@farm.test"}})
	require.NoError(t, err)
	assert.Len(t, e.ID, 36)
	assert.Equal(t, EventAlertNotification, e.Type)

	var data AlertNotificationEvent
	require.NoError(t, e.UnmarshalData(&data))
	assert.Equal(t, "a-1", data.AlertID)
	assert.Equal(t, []string{"ops@farm.test"}, data.Recipients)
}

func TestTraceHeaders_RoundTrip(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := injectTrace(ctx)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", headers["traceparent"])

	got := trace.SpanContextFromContext(extractTrace(context.Background(), headers))
	assert.Equal(t, traceID, got.TraceID())
	assert.Equal(t, spanID, got.SpanID())
}

func TestExtractTrace_NoHeaders(t *testing.T) {
	ctx := extractTrace(context.Background(), nil)
	assert.False(t, trace.SpanContextFromContext(ctx).IsValid())
}
