package consumers

import (
	"context"

	"github.com/agrostock/agrostock-backend/internal/alerting/service"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/messaging"
)

// QueueStockEvents is the queue the alert service reads inventory events from
const QueueStockEvents = "alert-service.stock-events"

// ProductChecker re-evaluates one product's stock alerts. Implemented by service.Engine.
type ProductChecker interface {
	CheckProduct(ctx context.Context, productID string) (*service.ProductCheck, error)
}

// StockEventConsumer checks a product's alerts whenever its stock changes
type StockEventConsumer struct {
	consumer *messaging.Consumer
	checker  ProductChecker
	logger   *logger.Logger
}

// NewStockEventConsumer creates a new stock event consumer
func NewStockEventConsumer(rmq *messaging.RabbitMQ, checker ProductChecker, log *logger.Logger) (*StockEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, QueueStockEvents, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeInventoryEvents, "inventory.stock.#"); err != nil {
		return nil, err
	}

	c := &StockEventConsumer{
		consumer: consumer,
		checker:  checker,
		logger:   log.WithComponent("stock-consumer"),
	}
	consumer.RegisterHandler(messaging.EventStockAdjusted, c.handleStockAdjusted)

	return c, nil
}

// Start starts consuming messages
func (c *StockEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *StockEventConsumer) handleStockAdjusted(ctx context.Context, event *messaging.Event) error {
	var data messaging.StockAdjustedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if data.ProductID == "" {
		c.logger.Warn().Str("event_id", event.ID).Msg("stock event without product, ignoring")
		return nil
	}

	log := c.logger.WithProduct(data.ProductID)
	log.Debug().
		Float64("delta", data.Delta).
		Float64("new_quantity", data.NewQuantity).
		Msg("received stock adjusted event")

	check, err := c.checker.CheckProduct(ctx, data.ProductID)
	if err != nil {
		// Deleted products cannot recover on retry
		if errors.Is(err, errors.ErrNotFound) {
			log.Warn().Msg("product no longer exists, ignoring stock event")
			return nil
		}
		return err
	}

	if len(check.Created) > 0 || len(check.Resolved) > 0 {
		log.Info().
			Int("created", len(check.Created)).
			Int("resolved", len(check.Resolved)).
			Msg("stock alerts updated")
	}
	return nil
}
