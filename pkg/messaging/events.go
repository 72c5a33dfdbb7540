package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Inventory events consumed by the alert service
	EventStockAdjusted = "inventory.stock.adjusted"

	// Alert events
	EventAlertCreated      = "agro.alert.created"
	EventAlertResolved     = "agro.alert.resolved"
	EventAlertNotification = "agro.alert.notification"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangeAlertEvents     = "alerts.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Inventory Events

// StockAdjustedEvent is published by the movement subsystem after a stock delta
type StockAdjustedEvent struct {
	ProductID   string  `json:"product_id"`
	MovementID  string  `json:"movement_id,omitempty"`
	Delta       float64 `json:"delta"`
	NewQuantity float64 `json:"new_quantity"`
	PerformedBy string  `json:"performed_by,omitempty"`
}

// Alert Events

// AlertCreatedEvent is published when an alert is opened
type AlertCreatedEvent struct {
	AlertID       string `json:"alert_id"`
	Kind          string `json:"kind"`
	Level         string `json:"level"`
	ProductID     string `json:"product_id,omitempty"`
	SupplierID    string `json:"supplier_id,omitempty"`
	AutoGenerated bool   `json:"auto_generated"`
}

// AlertResolvedEvent is published when the review closes an alert whose condition cleared
type AlertResolvedEvent struct {
	AlertID   string `json:"alert_id"`
	Kind      string `json:"kind"`
	ProductID string `json:"product_id,omitempty"`
}

// AlertNotificationEvent asks the delivery service to notify recipients about an alert
type AlertNotificationEvent struct {
	AlertID    string   `json:"alert_id"`
	Kind       string   `json:"kind"`
	Level      string   `json:"level"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
