package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/internal/alerting/repository"
	"github.com/agrostock/agrostock-backend/internal/alerting/service"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// AlertService is the alert use-case surface the handler depends on
type AlertService interface {
	CreateManual(ctx context.Context, in service.CreateAlertInput) (*domain.Alert, error)
	Get(ctx context.Context, id string) (*domain.Alert, error)
	List(ctx context.Context, f repository.AlertFilter) ([]*domain.Alert, int64, error)
	ListUrgent(ctx context.Context, f repository.AlertFilter) ([]*domain.Alert, int64, error)
	ListUrgentPending(ctx context.Context) ([]*domain.Alert, error)
	Summary(ctx context.Context) (*domain.Summary, error)
	History(ctx context.Context, alertID string) ([]*domain.HistoryEntry, error)
	ListHistory(ctx context.Context, f repository.HistoryFilter) ([]*domain.HistoryEntry, int64, error)
	MarkRead(ctx context.Context, id string) (*domain.Alert, error)
	MarkHandled(ctx context.Context, id string) (*domain.Alert, error)
	Dismiss(ctx context.Context, id string) (*domain.Alert, error)
	Reactivate(ctx context.Context, id string) (*domain.Alert, error)
	Update(ctx context.Context, id string, in service.UpdateAlertInput) (*domain.Alert, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// ReviewTrigger runs one locked review cycle. Implemented by service.ReviewScheduler.
type ReviewTrigger interface {
	RunCycle(ctx context.Context) *service.ReviewResult
}

// AlertHandler handles alert endpoints
type AlertHandler struct {
	alerts AlertService
	review ReviewTrigger
	logger *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts AlertService, review ReviewTrigger, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		review: review,
		logger: log,
	}
}

// Routes mounts the alert endpoints
func (h *AlertHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/summary", h.Summary)
	r.Get("/urgent", h.Urgent)
	r.Post("/review", h.Review)
	r.Post("/purge", h.Purge)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Get("/history", h.History)
		r.Post("/read", h.MarkRead)
		r.Post("/handle", h.MarkHandled)
		r.Post("/dismiss", h.Dismiss)
		r.Post("/reactivate", h.Reactivate)
	})
}

// List lists alerts. Only active alerts are returned unless include_inactive=true or
// active is given explicitly.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	f := alertFilter(r)

	list := h.alerts.List
	if urgent := httputil.QueryBool(r, "urgent"); urgent != nil && *urgent {
		list = h.alerts.ListUrgent
	}

	alerts, total, err := list(r.Context(), f)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, httputil.PageMeta(f.Page, f.PerPage, total))
}

func alertFilter(r *http.Request) repository.AlertFilter {
	q := r.URL.Query()
	page, perPage := httputil.Pagination(r)

	f := repository.AlertFilter{
		Status:        domain.Status(strings.ToUpper(q.Get("status"))),
		Level:         domain.Level(strings.ToUpper(q.Get("level"))),
		Kind:          domain.Kind(strings.ToUpper(q.Get("kind"))),
		ProductID:     q.Get("product_id"),
		SupplierID:    q.Get("supplier_id"),
		Search:        q.Get("search"),
		Active:        httputil.QueryBool(r, "active"),
		AutoGenerated: httputil.QueryBool(r, "auto_generated"),
		Page:          page,
		PerPage:       perPage,
	}

	if f.Active == nil {
		if inc := httputil.QueryBool(r, "include_inactive"); inc == nil || !*inc {
			active := true
			f.Active = &active
		}
	}
	return f
}

// Create creates a manual alert
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateAlertInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.alerts.CreateManual(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, a)
}

// Get returns one alert
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.alerts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, a)
}

// Update edits status and/or level
func (h *AlertHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateAlertInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.alerts.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, a)
}

// MarkRead marks an alert as read
func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.alerts.MarkRead)
}

// MarkHandled marks an alert as handled
func (h *AlertHandler) MarkHandled(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.alerts.MarkHandled)
}

// Dismiss dismisses an alert
func (h *AlertHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.alerts.Dismiss)
}

// Reactivate reopens an alert
func (h *AlertHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.alerts.Reactivate)
}

func (h *AlertHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*domain.Alert, error)) {
	a, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, a)
}

// History returns the change history of one alert
func (h *AlertHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.alerts.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, entries)
}

// ListHistory pages through history across alerts
func (h *AlertHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := httputil.Pagination(r)
	f := repository.HistoryFilter{
		AlertID:   q.Get("alert_id"),
		ChangedBy: q.Get("changed_by"),
		FieldName: q.Get("field_name"),
		Page:      page,
		PerPage:   perPage,
	}

	entries, total, err := h.alerts.ListHistory(r.Context(), f)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, entries, httputil.PageMeta(page, perPage, total))
}

// Urgent lists PENDING alerts that need immediate attention
func (h *AlertHandler) Urgent(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.ListUrgentPending(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, alerts)
}

// Summary returns alert statistics
func (h *AlertHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.alerts.Summary(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, summary)
}

// Review runs a full review now
func (h *AlertHandler) Review(w http.ResponseWriter, r *http.Request) {
	result := h.review.RunCycle(r.Context())
	if result == nil {
		httputil.Error(w, errors.Locked("a review is already running"))
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

// Purge deletes closed alerts past retention
func (h *AlertHandler) Purge(w http.ResponseWriter, r *http.Request) {
	n, err := h.alerts.PurgeExpired(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
