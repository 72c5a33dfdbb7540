package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the category of condition an alert represents
type Kind string

const (
	KindStockCritical    Kind = "STOCK_CRITICAL"
	KindStockDepleted    Kind = "STOCK_DEPLETED"
	KindExpiringSoon     Kind = "EXPIRING_SOON"
	KindExpired          Kind = "EXPIRED"
	KindStockExcess      Kind = "STOCK_EXCESS"
	KindPriceChange      Kind = "PRICE_CHANGE"
	KindOrderPending     Kind = "ORDER_PENDING"
	KindLowInventory     Kind = "LOW_INVENTORY"
	KindNoRecentMovement Kind = "NO_RECENT_MOVEMENT"
)

// AllKinds lists every kind in declaration order
var AllKinds = []Kind{
	KindStockCritical,
	KindStockDepleted,
	KindExpiringSoon,
	KindExpired,
	KindStockExcess,
	KindPriceChange,
	KindOrderPending,
	KindLowInventory,
	KindNoRecentMovement,
}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// StockKind reports whether alerts of this kind close themselves once stock recovers
func (k Kind) StockKind() bool {
	return k == KindStockCritical || k == KindStockDepleted
}

// Level is the severity of an alert
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
	LevelUrgent Level = "URGENT"
)

// Rank orders levels from LOW (1) to URGENT (4). Unknown levels rank 0.
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	case LevelUrgent:
		return 4
	default:
		return 0
	}
}

// Valid reports whether l is a known level
func (l Level) Valid() bool {
	return l.Rank() > 0
}

// Status is the lifecycle state of an alert
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRead      Status = "READ"
	StatusHandled   Status = "HANDLED"
	StatusDismissed Status = "DISMISSED"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRead, StatusHandled, StatusDismissed:
		return true
	}
	return false
}

// Closed reports whether the status ends the active lifecycle
func (s Status) Closed() bool {
	return s == StatusHandled || s == StatusDismissed
}

// ExtraData is context captured when the alert is created. It is stored as JSONB
// and never recomputed.
type ExtraData map[string]interface{}

// Value implements driver.Valuer
func (e ExtraData) Value() (driver.Value, error) {
	if e == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e)
}

// Scan implements sql.Scanner
func (e *ExtraData) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*e = ExtraData{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("extra_data: unsupported type %T", src)
	}
	m := ExtraData{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("extra_data: %w", err)
	}
	*e = m
	return nil
}

// Alert is a detected inventory condition requiring attention
type Alert struct {
	ID        string    `json:"id" db:"id"`
	Kind      Kind      `json:"kind" db:"kind"`
	Level     Level     `json:"level" db:"level"`
	Status    Status    `json:"status" db:"status"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	ExtraData ExtraData `json:"extra_data" db:"extra_data"`

	ProductID  *string `json:"product_id,omitempty" db:"product_id"`
	MovementID *string `json:"movement_id,omitempty" db:"movement_id"`
	SupplierID *string `json:"supplier_id,omitempty" db:"supplier_id"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ReadAt     *time.Time `json:"read_at,omitempty" db:"read_at"`
	HandledAt  *time.Time `json:"handled_at,omitempty" db:"handled_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`

	CreatedBy *string `json:"created_by,omitempty" db:"created_by"`
	ReadBy    *string `json:"read_by,omitempty" db:"read_by"`
	HandledBy *string `json:"handled_by,omitempty" db:"handled_by"`

	Active        bool `json:"active" db:"active"`
	AutoGenerated bool `json:"auto_generated" db:"auto_generated"`
	Repeatable    bool `json:"repeatable" db:"repeatable"`

	NotifyRequested bool       `json:"notify_requested" db:"notify_requested"`
	NotifySent      bool       `json:"notify_sent" db:"notify_sent"`
	NotifySentAt    *time.Time `json:"notify_sent_at,omitempty" db:"notify_sent_at"`
}

// NewAlert builds a PENDING, active alert
func NewAlert(kind Kind, level Level, title, message string, now time.Time) *Alert {
	if level == "" {
		level = LevelMedium
	}
	return &Alert{
		Kind:      kind,
		Level:     level,
		Status:    StatusPending,
		Title:     title,
		Message:   message,
		ExtraData: ExtraData{},
		CreatedAt: now,
		Active:    true,
	}
}

// MarkRead moves a PENDING alert to READ. Any other status is left untouched.
func (a *Alert) MarkRead(by *string, now time.Time) {
	if a.Status != StatusPending {
		return
	}
	a.Status = StatusRead
	a.ReadAt = &now
	a.ReadBy = by
}

// MarkHandled closes the alert as handled regardless of its current status
func (a *Alert) MarkHandled(by *string, now time.Time) {
	a.Status = StatusHandled
	a.HandledAt = &now
	a.HandledBy = by
	a.Active = false
}

// Dismiss closes the alert without handling it
func (a *Alert) Dismiss(by *string, now time.Time) {
	a.Status = StatusDismissed
	a.ResolvedAt = &now
	a.HandledBy = by
	a.Active = false
}

// Reactivate returns the alert to PENDING and clears every read/handle trace
func (a *Alert) Reactivate() {
	a.Status = StatusPending
	a.Active = true
	a.ReadAt = nil
	a.HandledAt = nil
	a.ResolvedAt = nil
	a.ReadBy = nil
	a.HandledBy = nil
}

// MarkNotified records a successful notification dispatch
func (a *Alert) MarkNotified(now time.Time) {
	a.NotifySent = true
	a.NotifySentAt = &now
}

// DaysPending is the number of whole days since creation while PENDING, 0 otherwise
func (a *Alert) DaysPending(now time.Time) int {
	if a.Status != StatusPending {
		return 0
	}
	d := now.Sub(a.CreatedAt)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// IsUrgent reports whether the alert needs immediate attention
func (a *Alert) IsUrgent(now time.Time) bool {
	switch a.Level {
	case LevelUrgent:
		return true
	case LevelHigh:
		return a.DaysPending(now) > 2
	case LevelMedium:
		return a.DaysPending(now) > 7
	default:
		return false
	}
}

// CanAutoResolve evaluates the live product against the alert's stock condition
func (a *Alert) CanAutoResolve(p *Product) bool {
	if p == nil || a.ProductID == nil {
		return false
	}
	switch a.Kind {
	case KindStockCritical:
		return p.CurrentStock > p.MinimumStock
	case KindStockDepleted:
		return p.CurrentStock > 0
	default:
		return false
	}
}
