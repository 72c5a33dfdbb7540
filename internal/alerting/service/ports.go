package service

import (
	"context"
	"time"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/internal/alerting/repository"
)

// AlertStore persists alerts. Implemented by repository.AlertRepository.
type AlertStore interface {
	Create(ctx context.Context, a *domain.Alert) error
	GetByID(ctx context.Context, id string) (*domain.Alert, error)
	ExistsActive(ctx context.Context, productID string, kind domain.Kind) (bool, error)
	ListActiveStock(ctx context.Context, productID string) ([]*domain.Alert, error)
	Mutate(ctx context.Context, id string, changedBy *string, now time.Time, fn func(*domain.Alert) error) (*domain.Alert, []domain.HistoryEntry, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, f repository.AlertFilter) ([]*domain.Alert, int64, error)
	ListUrgentPending(ctx context.Context, now time.Time) ([]*domain.Alert, error)
	Summary(ctx context.Context, now time.Time) (*domain.Summary, error)
	PurgeClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryStore reads alert history
type HistoryStore interface {
	ListByAlert(ctx context.Context, alertID string) ([]*domain.HistoryEntry, error)
	List(ctx context.Context, f repository.HistoryFilter) ([]*domain.HistoryEntry, int64, error)
}

// ConfigStore persists per-kind configuration
type ConfigStore interface {
	Get(ctx context.Context, kind domain.Kind) (*domain.Configuration, bool, error)
	List(ctx context.Context, f repository.ConfigFilter) ([]*domain.Configuration, error)
	Save(ctx context.Context, c *domain.Configuration) error
	ResetDefaults(ctx context.Context, updatedBy *string, now time.Time) (int64, error)
	Seed(ctx context.Context, kinds []domain.Kind, now time.Time) (int, error)
	MinReviewInterval(ctx context.Context) (time.Duration, bool, error)
}

// Ledger is the product stock ledger
type Ledger interface {
	FindCritical(ctx context.Context) ([]*domain.Product, error)
	FindDepleted(ctx context.Context) ([]*domain.Product, error)
	FindExpiringBetween(ctx context.Context, from, to time.Time) ([]*domain.Product, error)
	FindExpiredBefore(ctx context.Context, day time.Time) ([]*domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Exists(ctx context.Context, id string) (bool, error)
	AdjustStock(ctx context.Context, id string, delta float64, note string, by *string, now time.Time) (*domain.StockAdjustment, error)
}

// SupplierDirectory answers supplier existence checks
type SupplierDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Notifier delivers an alert to recipients
type Notifier interface {
	Send(ctx context.Context, a *domain.Alert, recipients []string) error
}

// EventSink receives alert lifecycle events
type EventSink interface {
	PublishAlertCreated(ctx context.Context, a *domain.Alert)
	PublishAlertResolved(ctx context.Context, a *domain.Alert)
}

// Clock returns the current time
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}
