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

// maxDeliveries is how many dead-letter round trips a message gets before it is dropped to the DLQ
const maxDeliveries = 3

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Consumer handles consuming events from RabbitMQ
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger
}

// NewConsumer creates a new consumer for the given queue
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	_, err := rmq.DeclareQueue(queueName)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log,
	}, nil
}

// Subscribe subscribes to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")

	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start starts consuming messages from the queue. After a reconnect the
// consumer resumes on the new channel.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.consume(ctx); err != nil {
		return err
	}

	c.rmq.OnReconnect(func() {
		if ctx.Err() != nil {
			return
		}
		if err := c.consume(ctx); err != nil {
			c.logger.Error().Err(err).Str("queue", c.queueName).Msg("failed to resume consumer")
		}
	})
	return nil
}

func (c *Consumer) consume(ctx context.Context) error {
	msgs, err := c.rmq.Channel().Consume(
		c.queueName, // queue
		"",          // consumer tag (auto-generated)
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Str("queue", c.queueName).Msg("delivery channel closed")
					return
				}
				c.handleMessage(ctx, msg)
			}
		}
	}()

	return nil
}

// outcome is how a delivery was settled
type outcome string

const (
	outcomeAcked     outcome = "acked"
	outcomeUnhandled outcome = "unhandled"
	outcomeRequeued  outcome = "requeued"
	outcomeDead      outcome = "dead_lettered"
)

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.MessageId).Msg("failed to unmarshal event")
		_ = msg.Reject(false)
		metrics.MessagesConsumedTotal.WithLabelValues("unknown", string(outcomeDead)).Inc()
		return
	}

	ctx = WithCorrelationID(extractTrace(ctx, msg.Headers), event.CorrelationID)
	ctx, span := telemetry.StartSpan(ctx, "messaging.consume",
		attribute.String("messaging.source", c.queueName),
		attribute.String("messaging.event_type", event.Type),
		attribute.String("messaging.message_id", event.ID),
	)
	defer span.End()

	result, err := c.dispatch(ctx, &event, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("messaging.outcome", string(result)))
	metrics.MessagesConsumedTotal.WithLabelValues(event.Type, string(result)).Inc()
}

// dispatch runs the registered handler and settles the delivery
func (c *Consumer) dispatch(ctx context.Context, event *Event, msg amqp.Delivery) (outcome, error) {
	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().Str("event_type", event.Type).Msg("no handler registered for event type")
		_ = msg.Ack(false)
		return outcomeUnhandled, nil
	}

	log := c.logger.With().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Logger()
	log.Debug().Msg("processing event")

	err := handler(ctx, event)
	if err == nil {
		_ = msg.Ack(false)
		return outcomeAcked, nil
	}

	log.Error().Err(err).Msg("failed to process event")

	if retries := getRetryCount(msg); retries >= maxDeliveries {
		log.Warn().Int("retry_count", retries).Msg("max retries exceeded, sending to DLQ")
		_ = msg.Reject(false)
		return outcomeDead, err
	}

	_ = msg.Nack(false, true)
	return outcomeRequeued, err
}

func getRetryCount(msg amqp.Delivery) int {
	if msg.Headers == nil {
		return 0
	}

	if deaths, ok := msg.Headers["x-death"].([]interface{}); ok {
		for _, death := range deaths {
			if d, ok := death.(amqp.Table); ok {
				if count, ok := d["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}

	return 0
}
