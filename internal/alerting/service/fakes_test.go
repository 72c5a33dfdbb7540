package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/internal/alerting/repository"
	"github.com/agrostock/agrostock-backend/pkg/errors"
)

var testNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func strPtr(s string) *string { return &s }

// memAlerts is an in-memory AlertStore with the same dedup rule as the database index
type memAlerts struct {
	mu        sync.Mutex
	seq       int
	alerts    map[string]*domain.Alert
	history   []domain.HistoryEntry
	createErr map[string]error
	purgedAt  time.Time
}

func newMemAlerts() *memAlerts {
	return &memAlerts{alerts: map[string]*domain.Alert{}, createErr: map[string]error{}}
}

func (m *memAlerts) Create(_ context.Context, a *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ProductID != nil {
		if err := m.createErr[*a.ProductID]; err != nil {
			return err
		}
		if a.AutoGenerated && !a.Repeatable {
			for _, cur := range m.alerts {
				if cur.Active && cur.AutoGenerated && !cur.Repeatable && cur.Kind == a.Kind &&
					cur.ProductID != nil && *cur.ProductID == *a.ProductID {
					return errors.Conflict("an active alert of this kind already exists for the product")
				}
			}
		}
	}

	m.seq++
	a.ID = fmt.Sprintf("alert-%d", m.seq)
	cp := *a
	m.alerts[a.ID] = &cp
	return nil
}

func (m *memAlerts) GetByID(_ context.Context, id string) (*domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, errors.NotFound("alert")
	}
	cp := *a
	return &cp, nil
}

func (m *memAlerts) ExistsActive(_ context.Context, productID string, kind domain.Kind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.Active && a.Kind == kind && a.ProductID != nil && *a.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAlerts) ListActiveStock(_ context.Context, productID string) ([]*domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Alert
	for _, a := range m.sorted() {
		if productID != "" && (a.ProductID == nil || *a.ProductID != productID) {
			continue
		}
		if a.Active && a.ProductID != nil && a.Kind.StockKind() {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAlerts) Mutate(_ context.Context, id string, changedBy *string, now time.Time, fn func(*domain.Alert) error) (*domain.Alert, []domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.alerts[id]
	if !ok {
		return nil, nil, errors.NotFound("alert")
	}
	cp := *cur
	before := cp.Snapshot()
	if err := fn(&cp); err != nil {
		return nil, nil, err
	}
	changes := before.Diff(&cp, changedBy, now)
	m.alerts[id] = &cp
	m.history = append(m.history, changes...)
	out := cp
	return &out, changes, nil
}

func (m *memAlerts) MarkNotified(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return errors.NotFound("alert")
	}
	a.MarkNotified(at)
	return nil
}

func (m *memAlerts) List(_ context.Context, f repository.AlertFilter) ([]*domain.Alert, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Alert
	for _, a := range m.sorted() {
		if f.ProductID != "" && (a.ProductID == nil || *a.ProductID != f.ProductID) {
			continue
		}
		if f.Active != nil && a.Active != *f.Active {
			continue
		}
		if f.Kind != "" && a.Kind != f.Kind {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	total := int64(len(out))
	if f.PerPage > 0 && len(out) > f.PerPage {
		out = out[:f.PerPage]
	}
	return out, total, nil
}

func (m *memAlerts) ListUrgentPending(_ context.Context, now time.Time) ([]*domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Alert
	for _, a := range m.sorted() {
		if a.Status == domain.StatusPending && a.IsUrgent(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAlerts) Summary(_ context.Context, _ time.Time) (*domain.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &domain.Summary{Total: int64(len(m.alerts))}, nil
}

func (m *memAlerts) PurgeClosedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgedAt = cutoff
	var n int64
	for id, a := range m.alerts {
		if a.Status.Closed() && a.CreatedAt.Before(cutoff) {
			delete(m.alerts, id)
			n++
		}
	}
	return n, nil
}

func (m *memAlerts) sorted() []*domain.Alert {
	out := make([]*domain.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memAlerts) all() []*domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted()
}

func (m *memAlerts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func (m *memAlerts) ListByAlert(_ context.Context, alertID string) ([]*domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.HistoryEntry
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].AlertID == alertID {
			h := m.history[i]
			out = append(out, &h)
		}
	}
	return out, nil
}

func (m *memAlerts) historyFor(alertID string) []domain.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.HistoryEntry
	for _, h := range m.history {
		if h.AlertID == alertID {
			out = append(out, h)
		}
	}
	return out
}

// memHistory adapts memAlerts to HistoryStore
type memHistory struct{ *memAlerts }

func (h memHistory) List(ctx context.Context, f repository.HistoryFilter) ([]*domain.HistoryEntry, int64, error) {
	entries, err := h.ListByAlert(ctx, f.AlertID)
	return entries, int64(len(entries)), err
}

// memConfigs is an in-memory ConfigStore
type memConfigs struct {
	mu      sync.Mutex
	configs map[domain.Kind]*domain.Configuration
	saved   int
	getErr  error
}

func newMemConfigs(kinds ...domain.Kind) *memConfigs {
	m := &memConfigs{configs: map[domain.Kind]*domain.Configuration{}}
	for _, k := range kinds {
		cfg := domain.DefaultConfiguration(k)
		m.configs[k] = &cfg
	}
	return m
}

func (m *memConfigs) set(kind domain.Kind, fn func(c *domain.Configuration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[kind]
	if !ok {
		d := domain.DefaultConfiguration(kind)
		cfg = &d
		m.configs[kind] = cfg
	}
	fn(cfg)
}

func (m *memConfigs) Get(_ context.Context, kind domain.Kind) (*domain.Configuration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	cfg, ok := m.configs[kind]
	if !ok {
		return nil, false, nil
	}
	cp := *cfg
	return &cp, true, nil
}

func (m *memConfigs) List(_ context.Context, _ repository.ConfigFilter) ([]*domain.Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Configuration
	for _, k := range domain.AllKinds {
		if cfg, ok := m.configs[k]; ok {
			cp := *cfg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memConfigs) Save(_ context.Context, c *domain.Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[c.Kind]; !ok {
		return errors.NotFound("alert configuration")
	}
	cp := *c
	m.configs[c.Kind] = &cp
	m.saved++
	return nil
}

func (m *memConfigs) ResetDefaults(_ context.Context, by *string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.configs {
		cfg := domain.DefaultConfiguration(k)
		cfg.UpdatedAt = now
		cfg.UpdatedBy = by
		m.configs[k] = &cfg
	}
	return int64(len(m.configs)), nil
}

func (m *memConfigs) Seed(_ context.Context, kinds []domain.Kind, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, k := range kinds {
		if _, ok := m.configs[k]; ok {
			continue
		}
		cfg := domain.DefaultConfiguration(k)
		cfg.UpdatedAt = now
		m.configs[k] = &cfg
		n++
	}
	return n, nil
}

func (m *memConfigs) MinReviewInterval(_ context.Context) (time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	minHours := 0
	for _, cfg := range m.configs {
		if cfg.Enabled && (minHours == 0 || cfg.ReviewIntervalHours < minHours) {
			minHours = cfg.ReviewIntervalHours
		}
	}
	if minHours == 0 {
		return 0, false, nil
	}
	return time.Duration(minHours) * time.Hour, true, nil
}

// memLedger is an in-memory Ledger
type memLedger struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	findErr  error
}

func newMemLedger(products ...*domain.Product) *memLedger {
	l := &memLedger{products: map[string]*domain.Product{}}
	for _, p := range products {
		l.products[p.ID] = p
	}
	return l
}

func (l *memLedger) setStock(id string, stock float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.products[id].CurrentStock = stock
}

func (l *memLedger) filter(fn func(p *domain.Product) bool) ([]*domain.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.findErr != nil {
		return nil, l.findErr
	}
	var out []*domain.Product
	for _, p := range l.products {
		if p.Active && fn(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (l *memLedger) FindCritical(_ context.Context) ([]*domain.Product, error) {
	return l.filter(func(p *domain.Product) bool {
		return p.CurrentStock > 0 && p.CurrentStock <= p.MinimumStock
	})
}

func (l *memLedger) FindDepleted(_ context.Context) ([]*domain.Product, error) {
	return l.filter(func(p *domain.Product) bool { return p.CurrentStock <= 0 })
}

func (l *memLedger) FindExpiringBetween(_ context.Context, from, to time.Time) ([]*domain.Product, error) {
	from, to = domain.Date(from), domain.Date(to)
	return l.filter(func(p *domain.Product) bool {
		if p.ExpirationDate == nil {
			return false
		}
		d := domain.Date(*p.ExpirationDate)
		return !d.Before(from) && !d.After(to)
	})
}

func (l *memLedger) FindExpiredBefore(_ context.Context, day time.Time) ([]*domain.Product, error) {
	day = domain.Date(day)
	return l.filter(func(p *domain.Product) bool {
		return p.ExpirationDate != nil && domain.Date(*p.ExpirationDate).Before(day)
	})
}

func (l *memLedger) GetByID(_ context.Context, id string) (*domain.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.products[id]
	if !ok {
		return nil, errors.NotFound("product")
	}
	cp := *p
	return &cp, nil
}

func (l *memLedger) Exists(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.products[id]
	return ok, nil
}

func (l *memLedger) AdjustStock(_ context.Context, id string, delta float64, _ string, _ *string, _ time.Time) (*domain.StockAdjustment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.products[id]
	if !ok {
		return nil, errors.NotFound("product")
	}
	if p.CurrentStock+delta < 0 {
		return nil, errors.ValidationField("quantity", "stock cannot go below zero")
	}
	p.CurrentStock += delta
	cp := *p
	return &domain.StockAdjustment{Product: &cp, MovementID: "mov-1", Delta: delta}, nil
}

type memSuppliers map[string]bool

func (s memSuppliers) Exists(_ context.Context, id string) (bool, error) {
	return s[id], nil
}

// recordingNotifier captures Send calls
type recordingNotifier struct {
	mu    sync.Mutex
	err   error
	sends map[string][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sends: map[string][]string{}}
}

func (n *recordingNotifier) Send(_ context.Context, a *domain.Alert, recipients []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sends[a.ID] = recipients
	return nil
}

func (n *recordingNotifier) sent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sends)
}

// recordingEvents captures lifecycle events
type recordingEvents struct {
	mu       sync.Mutex
	created  []string
	resolved []string
}

func (e *recordingEvents) PublishAlertCreated(_ context.Context, a *domain.Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = append(e.created, a.ID)
}

func (e *recordingEvents) PublishAlertResolved(_ context.Context, a *domain.Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolved = append(e.resolved, a.ID)
}

func product(id, code string, stock, minimum float64) *domain.Product {
	return &domain.Product{
		ID:           id,
		Code:         code,
		Name:         "Product " + code,
		Unit:         "kg",
		CurrentStock: stock,
		MinimumStock: minimum,
		Active:       true,
	}
}

func expiringProduct(id, code string, days int) *domain.Product {
	p := product(id, code, 100, 10)
	exp := domain.Date(testNow).AddDate(0, 0, days)
	p.ExpirationDate = &exp
	lot := "LOT-" + code
	p.Lot = &lot
	return p
}
