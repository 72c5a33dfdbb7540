package events

import (
	"context"
	"errors"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/messaging"
	"github.com/agrostock/agrostock-backend/pkg/metrics"
)

// ServiceName is the event source recorded on published events
const ServiceName = "alert-service"

var errNoPublisher = errors.New("notification publisher not configured")

// AlertEventPublisher publishes alert lifecycle events and notification requests.
// A nil publisher drops lifecycle events and fails notifications.
type AlertEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewAlertEventPublisher creates a publisher bound to the alerts exchange
func NewAlertEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*AlertEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeAlertEvents, ServiceName, log)
	if err != nil {
		return nil, err
	}
	return NewAlertEventPublisherWith(publisher, log), nil
}

// NewAlertEventPublisherWith wraps an existing event publisher
func NewAlertEventPublisherWith(publisher messaging.EventPublisher, log *logger.Logger) *AlertEventPublisher {
	return &AlertEventPublisher{
		publisher: publisher,
		logger:    log.WithComponent("alert-events"),
	}
}

// Send asks the delivery service to notify recipients about the alert
func (p *AlertEventPublisher) Send(ctx context.Context, alert *domain.Alert, recipients []string) error {
	if p == nil {
		metrics.NotificationsTotal.WithLabelValues("unavailable").Inc()
		return errNoPublisher
	}

	data := messaging.AlertNotificationEvent{
		AlertID:    alert.ID,
		Kind:       string(alert.Kind),
		Level:      string(alert.Level),
		Title:      alert.Title,
		Message:    alert.Message,
		Recipients: recipients,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertNotification, data); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	return nil
}

// PublishAlertCreated publishes an alert created event
func (p *AlertEventPublisher) PublishAlertCreated(ctx context.Context, alert *domain.Alert) {
	if p == nil {
		return
	}

	data := messaging.AlertCreatedEvent{
		AlertID:       alert.ID,
		Kind:          string(alert.Kind),
		Level:         string(alert.Level),
		ProductID:     deref(alert.ProductID),
		SupplierID:    deref(alert.SupplierID),
		AutoGenerated: alert.AutoGenerated,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertCreated, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert created event")
	}
}

// PublishAlertResolved publishes an alert resolved event
func (p *AlertEventPublisher) PublishAlertResolved(ctx context.Context, alert *domain.Alert) {
	if p == nil {
		return
	}

	data := messaging.AlertResolvedEvent{
		AlertID:   alert.ID,
		Kind:      string(alert.Kind),
		ProductID: deref(alert.ProductID),
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertResolved, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert resolved event")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
