package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/metrics"
	"github.com/agrostock/agrostock-backend/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Review pass names, in execution order
const (
	PassCriticalStock = "critical_stock"
	PassDepletedStock = "depleted_stock"
	PassExpiringSoon  = "expiring_soon"
	PassExpired       = "expired"
	PassAutoResolve   = "auto_resolve"
)

// errAlreadyClosed aborts an auto-resolve mutation when the alert was closed concurrently
var errAlreadyClosed = stderrors.New("alert already closed")

// PassResult counts what one review pass did
type PassResult struct {
	// Candidates is the number of products (or alerts, for auto-resolve) examined
	Candidates int  `json:"candidates"`
	Created    int  `json:"created"`
	Existing   int  `json:"existing"`
	Resolved   int  `json:"resolved"`
	Failed     int  `json:"failed"`
	Skipped    bool `json:"skipped"`
}

// ReviewResult is the outcome of a full review run
type ReviewResult struct {
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Created    int                   `json:"created"`
	Resolved   int                   `json:"resolved"`
	Errors     []string              `json:"errors"`
	Passes     map[string]PassResult `json:"passes"`
}

// ProductCheck is the outcome of checking a single product after a stock change
type ProductCheck struct {
	ProductID string          `json:"product_id"`
	Created   []*domain.Alert `json:"created"`
	Resolved  []*domain.Alert `json:"resolved"`
}

// Engine scans the ledger, opens deduplicated alerts and closes stock alerts whose
// condition cleared. Passes run sequentially; a failing pass or product is recorded
// and the run continues.
type Engine struct {
	alerts   AlertStore
	configs  ConfigStore
	ledger   Ledger
	notifier Notifier
	events   EventSink
	logger   *logger.Logger
	now      Clock
}

// NewEngine creates a review engine. notifier and events may be nil.
func NewEngine(alerts AlertStore, configs ConfigStore, ledger Ledger, notifier Notifier, events EventSink, log *logger.Logger) *Engine {
	return &Engine{
		alerts:   alerts,
		configs:  configs,
		ledger:   ledger,
		notifier: notifier,
		events:   events,
		logger:   log.WithComponent("review-engine"),
		now:      utcNow,
	}
}

// WithClock replaces the engine's time source
func (e *Engine) WithClock(now Clock) *Engine {
	e.now = now
	return e
}

// RunFullReview runs every pass and aggregates the results
func (e *Engine) RunFullReview(ctx context.Context) *ReviewResult {
	ctx, span := telemetry.StartSpan(ctx, "alerts.review")
	defer span.End()

	now := e.now()
	result := &ReviewResult{
		StartedAt: now,
		Errors:    []string{},
		Passes:    make(map[string]PassResult),
	}

	passes := []struct {
		name string
		fn   func(context.Context, time.Time, *ReviewResult) (PassResult, error)
	}{
		{PassCriticalStock, e.reviewCriticalStock},
		{PassDepletedStock, e.reviewDepletedStock},
		{PassExpiringSoon, e.reviewExpiringSoon},
		{PassExpired, e.reviewExpired},
		{PassAutoResolve, e.autoResolve},
	}

	for _, pass := range passes {
		passCtx, passSpan := telemetry.StartSpan(ctx, "alerts.review."+pass.name)
		pr, err := pass.fn(passCtx, now, result)
		if err != nil {
			e.logger.Error().Err(err).Str("pass", pass.name).Msg("review pass failed")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", pass.name, err))
			metrics.ReviewErrorsTotal.WithLabelValues(pass.name).Inc()
			passSpan.RecordError(err)
			passSpan.SetStatus(codes.Error, err.Error())
		}
		passSpan.SetAttributes(
			attribute.Int("alerts.created", pr.Created),
			attribute.Int("alerts.resolved", pr.Resolved),
			attribute.Bool("alerts.skipped", pr.Skipped),
		)
		passSpan.End()

		result.Passes[pass.name] = pr
		result.Created += pr.Created
		result.Resolved += pr.Resolved
	}

	result.FinishedAt = e.now()
	outcome := "ok"
	if len(result.Errors) > 0 {
		outcome = "partial"
	}
	metrics.ReviewRunsTotal.WithLabelValues(outcome).Inc()
	metrics.ReviewDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	span.SetAttributes(
		attribute.Int("alerts.created", result.Created),
		attribute.Int("alerts.resolved", result.Resolved),
		attribute.Int("alerts.errors", len(result.Errors)),
	)

	e.logger.Info().
		Int("created", result.Created).
		Int("resolved", result.Resolved).
		Int("errors", len(result.Errors)).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("alert review completed")

	return result
}

// reviewConfig returns the configuration for kind when its pass should run, nil otherwise
func (e *Engine) reviewConfig(ctx context.Context, kind domain.Kind) (*domain.Configuration, error) {
	cfg, found, err := e.configs.Get(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("load %s configuration: %w", kind, err)
	}
	if !found {
		e.logger.Warn().Str("kind", string(kind)).Msg("no alert configuration, skipping pass")
		return nil, nil
	}
	if !cfg.Reviewable() {
		e.logger.Debug().Str("kind", string(kind)).Msg("alert kind disabled for review, skipping pass")
		return nil, nil
	}
	return cfg, nil
}

// draft is an alert the review wants to open for a product
type draft func(p *domain.Product) *domain.Alert

// openForProducts opens one alert per product unless an active one exists
func (e *Engine) openForProducts(ctx context.Context, pass string, cfg *domain.Configuration, products []*domain.Product, build draft, result *ReviewResult) PassResult {
	pr := PassResult{Candidates: len(products)}
	for _, p := range products {
		created, err := e.open(ctx, cfg, p, build(p))
		if err != nil {
			e.logger.WithProduct(p.ID).Error().Err(err).Str("pass", pass).Msg("failed to open alert")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: product %s: %v", pass, p.ID, err))
			metrics.ReviewErrorsTotal.WithLabelValues(pass).Inc()
			pr.Failed++
			continue
		}
		if created {
			pr.Created++
		} else {
			pr.Existing++
		}
	}
	return pr
}

// open creates an automatic alert for p. It returns false when an active alert of the
// same kind already exists and the configuration is not repeatable.
func (e *Engine) open(ctx context.Context, cfg *domain.Configuration, p *domain.Product, a *domain.Alert) (bool, error) {
	if !cfg.Repeatable {
		exists, err := e.alerts.ExistsActive(ctx, p.ID, a.Kind)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	productID := p.ID
	a.ProductID = &productID
	a.AutoGenerated = true
	a.Repeatable = cfg.Repeatable
	a.NotifyRequested = cfg.NotifyEnabled

	if err := e.alerts.Create(ctx, a); err != nil {
		// A concurrent run opened it between the check and the insert
		if errors.Is(err, errors.ErrConflict) {
			return false, nil
		}
		return false, err
	}

	metrics.AlertsCreatedTotal.WithLabelValues(string(a.Kind), "review").Inc()
	e.logger.WithAlert(a.ID, string(a.Kind)).Info().
		Str("product_id", p.ID).
		Str("level", string(a.Level)).
		Msg("alert opened")

	if e.events != nil {
		e.events.PublishAlertCreated(ctx, a)
	}
	if cfg.NotifyEnabled {
		dispatch(ctx, e.alerts, e.notifier, e.logger, e.now, a, cfg.Recipients())
	}
	return true, nil
}

func (e *Engine) reviewCriticalStock(ctx context.Context, now time.Time, result *ReviewResult) (PassResult, error) {
	cfg, err := e.reviewConfig(ctx, domain.KindStockCritical)
	if err != nil || cfg == nil {
		return PassResult{Skipped: err == nil}, err
	}

	products, err := e.ledger.FindCritical(ctx)
	if err != nil {
		return PassResult{}, fmt.Errorf("find critical products: %w", err)
	}
	return e.openForProducts(ctx, PassCriticalStock, cfg, products, criticalDraft(cfg, now), result), nil
}

func (e *Engine) reviewDepletedStock(ctx context.Context, now time.Time, result *ReviewResult) (PassResult, error) {
	cfg, err := e.reviewConfig(ctx, domain.KindStockDepleted)
	if err != nil || cfg == nil {
		return PassResult{Skipped: err == nil}, err
	}

	products, err := e.ledger.FindDepleted(ctx)
	if err != nil {
		return PassResult{}, fmt.Errorf("find depleted products: %w", err)
	}
	return e.openForProducts(ctx, PassDepletedStock, cfg, products, depletedDraft(now), result), nil
}

func (e *Engine) reviewExpiringSoon(ctx context.Context, now time.Time, result *ReviewResult) (PassResult, error) {
	cfg, err := e.reviewConfig(ctx, domain.KindExpiringSoon)
	if err != nil || cfg == nil {
		return PassResult{Skipped: err == nil}, err
	}

	today := domain.Date(now)
	products, err := e.ledger.FindExpiringBetween(ctx, today, today.AddDate(0, 0, cfg.ExpiringWarningDays))
	if err != nil {
		return PassResult{}, fmt.Errorf("find expiring products: %w", err)
	}
	return e.openForProducts(ctx, PassExpiringSoon, cfg, products, expiringDraft(now), result), nil
}

func (e *Engine) reviewExpired(ctx context.Context, now time.Time, result *ReviewResult) (PassResult, error) {
	cfg, err := e.reviewConfig(ctx, domain.KindExpired)
	if err != nil || cfg == nil {
		return PassResult{Skipped: err == nil}, err
	}

	products, err := e.ledger.FindExpiredBefore(ctx, domain.Date(now))
	if err != nil {
		return PassResult{}, fmt.Errorf("find expired products: %w", err)
	}
	return e.openForProducts(ctx, PassExpired, cfg, products, expiredDraft(now), result), nil
}

// autoResolve closes active stock alerts whose product recovered. History is
// attributed to the system.
func (e *Engine) autoResolve(ctx context.Context, now time.Time, result *ReviewResult) (PassResult, error) {
	alerts, err := e.alerts.ListActiveStock(ctx, "")
	if err != nil {
		return PassResult{}, fmt.Errorf("list active stock alerts: %w", err)
	}

	pr := PassResult{Candidates: len(alerts)}
	for _, a := range alerts {
		resolved, err := e.resolveIfCleared(ctx, a, nil, now)
		if err != nil {
			e.logger.WithAlert(a.ID, string(a.Kind)).Error().Err(err).Msg("failed to auto-resolve alert")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: alert %s: %v", PassAutoResolve, a.ID, err))
			metrics.ReviewErrorsTotal.WithLabelValues(PassAutoResolve).Inc()
			pr.Failed++
			continue
		}
		if resolved != nil {
			pr.Resolved++
		}
	}
	return pr, nil
}

// resolveIfCleared closes a when its product no longer meets the alert condition.
// product may be nil, in which case it is loaded from the ledger.
func (e *Engine) resolveIfCleared(ctx context.Context, a *domain.Alert, product *domain.Product, now time.Time) (*domain.Alert, error) {
	if a.ProductID == nil || !a.Kind.StockKind() {
		return nil, nil
	}

	if product == nil {
		p, err := e.ledger.GetByID(ctx, *a.ProductID)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		product = p
	}
	if !a.CanAutoResolve(product) {
		return nil, nil
	}

	resolved, _, err := e.alerts.Mutate(ctx, a.ID, nil, now, func(cur *domain.Alert) error {
		if !cur.Active {
			return errAlreadyClosed
		}
		cur.MarkHandled(nil, now)
		return nil
	})
	if err != nil {
		if stderrors.Is(err, errAlreadyClosed) || errors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	metrics.AlertsResolvedTotal.WithLabelValues(string(a.Kind)).Inc()
	e.logger.WithAlert(a.ID, string(a.Kind)).Info().Str("product_id", *a.ProductID).Msg("alert auto-resolved")
	if e.events != nil {
		e.events.PublishAlertResolved(ctx, resolved)
	}
	return resolved, nil
}

// CheckProduct runs the stock checks for one product after its stock changed: it opens
// critical or depleted alerts and closes stock alerts that no longer apply.
func (e *Engine) CheckProduct(ctx context.Context, productID string) (*ProductCheck, error) {
	ctx, span := telemetry.StartSpan(ctx, "alerts.check_product", attribute.String("product.id", productID))
	defer span.End()

	p, err := e.ledger.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	check := &ProductCheck{ProductID: productID, Created: []*domain.Alert{}, Resolved: []*domain.Alert{}}

	openAlerts, err := e.alerts.ListActiveStock(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list product alerts: %w", err)
	}
	for _, a := range openAlerts {
		resolved, err := e.resolveIfCleared(ctx, a, p, now)
		if err != nil {
			return nil, err
		}
		if resolved != nil {
			check.Resolved = append(check.Resolved, resolved)
		}
	}

	if !p.Active {
		return check, nil
	}

	var (
		kind  domain.Kind
		build draft
	)
	switch {
	case p.CurrentStock <= 0:
		kind, build = domain.KindStockDepleted, depletedDraft(now)
	case p.CurrentStock <= p.MinimumStock:
		kind = domain.KindStockCritical
	default:
		return check, nil
	}

	cfg, err := e.reviewConfig(ctx, kind)
	if err != nil || cfg == nil {
		return check, err
	}
	if build == nil {
		build = criticalDraft(cfg, now)
	}

	a := build(p)
	created, err := e.open(ctx, cfg, p, a)
	if err != nil {
		return nil, err
	}
	if created {
		check.Created = append(check.Created, a)
	}
	return check, nil
}

func criticalDraft(cfg *domain.Configuration, now time.Time) draft {
	return func(p *domain.Product) *domain.Alert {
		pct := p.StockPercentage()
		a := domain.NewAlert(domain.KindStockCritical, StockLevel(pct, cfg.CriticalStockPercentage),
			"Critical stock - "+p.Name,
			fmt.Sprintf("Product %s (%s) is at critical stock. Current stock: %.2f %s. Minimum stock: %.2f %s.",
				p.Name, p.Code, p.CurrentStock, p.Unit, p.MinimumStock, p.Unit),
			now)
		a.ExtraData = domain.ExtraData{
			"current_stock":    p.CurrentStock,
			"minimum_stock":    p.MinimumStock,
			"stock_percentage": pct,
			"unit":             p.Unit,
		}
		return a
	}
}

func depletedDraft(now time.Time) draft {
	return func(p *domain.Product) *domain.Alert {
		a := domain.NewAlert(domain.KindStockDepleted, domain.LevelUrgent,
			"Depleted stock - "+p.Name,
			fmt.Sprintf("Product %s (%s) is out of stock. Current stock: %.2f %s.",
				p.Name, p.Code, p.CurrentStock, p.Unit),
			now)
		a.ExtraData = domain.ExtraData{
			"current_stock": p.CurrentStock,
			"unit":          p.Unit,
		}
		return a
	}
}

func expiringDraft(now time.Time) draft {
	return func(p *domain.Product) *domain.Alert {
		days := p.DaysUntilExpiration(now)
		expires := expirationDate(p)
		a := domain.NewAlert(domain.KindExpiringSoon, ExpiringLevel(days),
			"Product expiring soon - "+p.Name,
			fmt.Sprintf("Product %s (%s) expires on %s. %d days left.", p.Name, p.Code, expires, days),
			now)
		a.ExtraData = domain.ExtraData{
			"expiration_date": expires,
			"days_remaining":  days,
			"lot":             p.LotOrEmpty(),
		}
		return a
	}
}

func expiredDraft(now time.Time) draft {
	return func(p *domain.Product) *domain.Alert {
		expires := expirationDate(p)
		a := domain.NewAlert(domain.KindExpired, domain.LevelUrgent,
			"Expired product - "+p.Name,
			fmt.Sprintf("Product %s (%s) expired on %s. Remove it from inventory.", p.Name, p.Code, expires),
			now)
		a.ExtraData = domain.ExtraData{
			"expiration_date": expires,
			"lot":             p.LotOrEmpty(),
		}
		return a
	}
}

func expirationDate(p *domain.Product) string {
	if p.ExpirationDate == nil {
		return ""
	}
	return p.ExpirationDate.Format("2006-01-02")
}

// dispatch sends a notification and stamps the alert on success. Failures are logged.
func dispatch(ctx context.Context, store AlertStore, n Notifier, log *logger.Logger, now Clock, a *domain.Alert, recipients []string) {
	l := log.WithAlert(a.ID, string(a.Kind))
	if n == nil {
		l.Warn().Msg("notification requested but no notifier configured")
		return
	}
	if err := n.Send(ctx, a, recipients); err != nil {
		l.Error().Err(err).Msg("failed to send alert notification")
		return
	}

	at := now()
	if err := store.MarkNotified(ctx, a.ID, at); err != nil {
		l.Error().Err(err).Msg("failed to record notification")
		return
	}
	a.MarkNotified(at)
}
