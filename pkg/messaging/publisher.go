package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/metrics"
	"github.com/agrostock/agrostock-backend/pkg/telemetry"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// EventPublisher is satisfied by Publisher and by test doubles
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Publisher handles publishing events to RabbitMQ
type Publisher struct {
	rmq      *RabbitMQ
	exchange string
	source   string
	logger   *logger.Logger
}

// NewPublisher creates a new publisher for the given exchange
func NewPublisher(rmq *RabbitMQ, exchange, source string, log *logger.Logger) (*Publisher, error) {
	if err := rmq.DeclareExchange(exchange); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &Publisher{
		rmq:      rmq,
		exchange: exchange,
		source:   source,
		logger:   log,
	}, nil
}

// Publish publishes an event to the exchange, routed by its type. The current
// trace context travels in the message headers.
func (p *Publisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	ctx, span := telemetry.StartSpan(ctx, "messaging.publish",
		attribute.String("messaging.destination", p.exchange),
		attribute.String("messaging.event_type", eventType),
	)
	defer span.End()

	if err := p.publish(ctx, eventType, data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.EventsPublishedTotal.WithLabelValues(eventType, "error").Inc()
		return err
	}
	metrics.EventsPublishedTotal.WithLabelValues(eventType, "ok").Inc()
	return nil
}

func (p *Publisher) publish(ctx context.Context, eventType string, data interface{}) error {
	correlationID := CorrelationID(ctx)

	event, err := NewEvent(eventType, p.source, correlationID, data)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := amqp.Publishing{
		Headers:       injectTrace(ctx),
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: correlationID,
		MessageId:     event.ID,
		Timestamp:     event.Timestamp,
		AppId:         p.source,
		Body:          body,
	}
	if err := p.rmq.Channel().PublishWithContext(ctx, p.exchange, eventType, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}

	p.logger.Debug().
		Str("event_type", eventType).
		Str("event_id", event.ID).
		Str("correlation_id", correlationID).
		Msg("event published")

	return nil
}

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationID retrieves the correlation ID from context
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}
