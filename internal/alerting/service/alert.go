package service

import (
	"context"
	"strings"
	"time"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/internal/alerting/repository"
	"github.com/agrostock/agrostock-backend/pkg/actor"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/metrics"
)

// DefaultRetentionDays is how long closed alerts are kept
const DefaultRetentionDays = 90

// CreateAlertInput is a manual alert request
type CreateAlertInput struct {
	Kind       domain.Kind      `json:"kind" validate:"required"`
	Level      domain.Level     `json:"level" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Title      string           `json:"title" validate:"required,max=200"`
	Message    string           `json:"message" validate:"required"`
	ProductID  *string          `json:"product_id" validate:"omitempty,uuid"`
	SupplierID *string          `json:"supplier_id" validate:"omitempty,uuid"`
	MovementID *string          `json:"movement_id" validate:"omitempty,uuid"`
	ExtraData  domain.ExtraData `json:"extra_data"`
	Notify     bool             `json:"notify"`
}

// UpdateAlertInput is an edit of status and/or level
type UpdateAlertInput struct {
	Status *domain.Status `json:"status" validate:"omitempty,oneof=PENDING READ HANDLED DISMISSED"`
	Level  *domain.Level  `json:"level" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
}

// AlertService handles manual alerts, lifecycle transitions and queries
type AlertService struct {
	alerts        AlertStore
	history       HistoryStore
	configs       ConfigStore
	products      Ledger
	suppliers     SupplierDirectory
	notifier      Notifier
	events        EventSink
	logger        *logger.Logger
	retentionDays int
	now           Clock
}

// NewAlertService creates a new alert service. notifier and events may be nil.
func NewAlertService(
	alerts AlertStore,
	history HistoryStore,
	configs ConfigStore,
	products Ledger,
	suppliers SupplierDirectory,
	notifier Notifier,
	events EventSink,
	log *logger.Logger,
) *AlertService {
	return &AlertService{
		alerts:        alerts,
		history:       history,
		configs:       configs,
		products:      products,
		suppliers:     suppliers,
		notifier:      notifier,
		events:        events,
		logger:        log.WithComponent("alert-service"),
		retentionDays: DefaultRetentionDays,
		now:           utcNow,
	}
}

// WithClock replaces the service's time source
func (s *AlertService) WithClock(now Clock) *AlertService {
	s.now = now
	return s
}

// WithRetentionDays overrides how long closed alerts are kept
func (s *AlertService) WithRetentionDays(days int) *AlertService {
	if days > 0 {
		s.retentionDays = days
	}
	return s
}

// CreateManual records a user-created alert. Nothing is persisted when validation fails.
func (s *AlertService) CreateManual(ctx context.Context, in CreateAlertInput) (*domain.Alert, error) {
	if err := httputil.Validate(&in); err != nil {
		return nil, err
	}
	if !in.Kind.Valid() {
		return nil, errors.ValidationField("kind", "unknown alert kind "+string(in.Kind))
	}

	productID := trimmed(in.ProductID)
	supplierID := trimmed(in.SupplierID)
	if productID == nil && supplierID == nil {
		return nil, errors.Validation(map[string]string{
			"product_id":  "a product or supplier reference is required",
			"supplier_id": "a product or supplier reference is required",
		})
	}

	if productID != nil {
		exists, err := s.products.Exists(ctx, *productID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, errors.ValidationField("product_id", "product does not exist")
		}
	}
	if supplierID != nil {
		exists, err := s.suppliers.Exists(ctx, *supplierID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, errors.ValidationField("supplier_id", "supplier does not exist")
		}
	}

	cfg, found, err := s.configs.Get(ctx, in.Kind)
	if err != nil {
		return nil, err
	}

	level := in.Level
	if level == "" && found {
		level = cfg.DefaultLevel
	}

	a := domain.NewAlert(in.Kind, level, strings.TrimSpace(in.Title), in.Message, s.now())
	a.ProductID = productID
	a.SupplierID = supplierID
	a.MovementID = trimmed(in.MovementID)
	a.CreatedBy = actor.FromContext(ctx).UserID()
	a.NotifyRequested = in.Notify
	if in.ExtraData != nil {
		a.ExtraData = in.ExtraData
	}

	if err := s.alerts.Create(ctx, a); err != nil {
		return nil, err
	}

	metrics.AlertsCreatedTotal.WithLabelValues(string(a.Kind), "manual").Inc()
	s.logger.WithAlert(a.ID, string(a.Kind)).Info().
		Str("created_by", actor.FromContext(ctx).String()).
		Msg("manual alert created")

	if s.events != nil {
		s.events.PublishAlertCreated(ctx, a)
	}
	if in.Notify {
		var recipients []string
		if found {
			recipients = cfg.Recipients()
		}
		dispatch(ctx, s.alerts, s.notifier, s.logger, s.now, a, recipients)
	}
	return a, nil
}

// Get returns one alert
func (s *AlertService) Get(ctx context.Context, id string) (*domain.Alert, error) {
	return s.alerts.GetByID(ctx, id)
}

// List pages through alerts
func (s *AlertService) List(ctx context.Context, f repository.AlertFilter) ([]*domain.Alert, int64, error) {
	return s.alerts.List(ctx, f)
}

// ListUrgent lists urgent alerts as of now, filtered like List
func (s *AlertService) ListUrgent(ctx context.Context, f repository.AlertFilter) ([]*domain.Alert, int64, error) {
	now := s.now()
	f.UrgentAt = &now
	return s.alerts.List(ctx, f)
}

// ListUrgentPending returns PENDING alerts that are urgent now, most severe first
func (s *AlertService) ListUrgentPending(ctx context.Context) ([]*domain.Alert, error) {
	return s.alerts.ListUrgentPending(ctx, s.now())
}

// Summary aggregates alert counts
func (s *AlertService) Summary(ctx context.Context) (*domain.Summary, error) {
	return s.alerts.Summary(ctx, s.now())
}

// History returns the change history of an alert, newest first
func (s *AlertService) History(ctx context.Context, alertID string) ([]*domain.HistoryEntry, error) {
	if _, err := s.alerts.GetByID(ctx, alertID); err != nil {
		return nil, err
	}
	return s.history.ListByAlert(ctx, alertID)
}

// ListHistory pages through history across alerts
func (s *AlertService) ListHistory(ctx context.Context, f repository.HistoryFilter) ([]*domain.HistoryEntry, int64, error) {
	return s.history.List(ctx, f)
}

// MarkRead marks a PENDING alert as read by the current actor. Other statuses are left unchanged.
func (s *AlertService) MarkRead(ctx context.Context, id string) (*domain.Alert, error) {
	return s.mutate(ctx, id, "read", func(a *domain.Alert, by *string, now time.Time) error {
		a.MarkRead(by, now)
		return nil
	})
}

// MarkHandled closes the alert as handled by the current actor
func (s *AlertService) MarkHandled(ctx context.Context, id string) (*domain.Alert, error) {
	return s.mutate(ctx, id, "handled", func(a *domain.Alert, by *string, now time.Time) error {
		a.MarkHandled(by, now)
		return nil
	})
}

// Dismiss closes the alert without handling it
func (s *AlertService) Dismiss(ctx context.Context, id string) (*domain.Alert, error) {
	return s.mutate(ctx, id, "dismissed", func(a *domain.Alert, by *string, now time.Time) error {
		a.Dismiss(by, now)
		return nil
	})
}

// Reactivate reopens the alert as PENDING
func (s *AlertService) Reactivate(ctx context.Context, id string) (*domain.Alert, error) {
	return s.mutate(ctx, id, "reactivated", func(a *domain.Alert, _ *string, _ time.Time) error {
		a.Reactivate()
		return nil
	})
}

// Update applies a validated status and/or level edit
func (s *AlertService) Update(ctx context.Context, id string, in UpdateAlertInput) (*domain.Alert, error) {
	if err := httputil.Validate(&in); err != nil {
		return nil, err
	}
	if in.Status == nil && in.Level == nil {
		return nil, errors.BadRequest("nothing to update")
	}

	return s.mutate(ctx, id, "updated", func(a *domain.Alert, by *string, now time.Time) error {
		if in.Level != nil {
			if err := a.ChangeLevel(*in.Level); err != nil {
				return err
			}
		}
		if in.Status != nil && *in.Status != a.Status {
			return a.ChangeStatus(*in.Status, by, now)
		}
		return nil
	})
}

func (s *AlertService) mutate(ctx context.Context, id, action string, fn func(a *domain.Alert, by *string, now time.Time) error) (*domain.Alert, error) {
	by := actor.FromContext(ctx).UserID()
	now := s.now()

	a, changes, err := s.alerts.Mutate(ctx, id, by, now, func(a *domain.Alert) error {
		return fn(a, by, now)
	})
	if err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		s.logger.WithAlert(a.ID, string(a.Kind)).Info().
			Str("action", action).
			Str("status", string(a.Status)).
			Str("changed_by", actor.FromContext(ctx).String()).
			Int("changes", len(changes)).
			Msg("alert updated")
	}
	return a, nil
}

// PurgeExpired deletes HANDLED and DISMISSED alerts older than the retention window
func (s *AlertService) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	n, err := s.alerts.PurgeClosedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("purged closed alerts")
	return n, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
