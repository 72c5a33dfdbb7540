package domain

import (
	"strings"
	"time"
)

// Configuration bounds
const (
	MinWarningDays          = 1
	MaxWarningDays          = 365
	MinCriticalPercentage   = 1
	MaxCriticalPercentage   = 100
	MinReviewIntervalHours  = 1
	MaxReviewIntervalHours  = 168
	DefaultWarningDays      = 30
	DefaultCriticalPct      = 20
	DefaultReviewIntervalHr = 24
)

// Configuration holds the per-kind settings read by the review engine
type Configuration struct {
	Kind                    Kind      `json:"kind" db:"kind"`
	Enabled                 bool      `json:"enabled" db:"enabled"`
	AutoGenerate            bool      `json:"auto_generate" db:"auto_generate"`
	DefaultLevel            Level     `json:"default_level" db:"default_level"`
	NotifyEnabled           bool      `json:"notify_enabled" db:"notify_enabled"`
	NotifyRecipients        string    `json:"notify_recipients" db:"notify_recipients"`
	ExpiringWarningDays     int       `json:"expiring_warning_days" db:"expiring_warning_days"`
	CriticalStockPercentage float64   `json:"critical_stock_percentage" db:"critical_stock_percentage"`
	ReviewIntervalHours     int       `json:"review_interval_hours" db:"review_interval_hours"`
	Repeatable              bool      `json:"repeatable" db:"repeatable"`
	UpdatedAt               time.Time `json:"updated_at" db:"updated_at"`
	UpdatedBy               *string   `json:"updated_by,omitempty" db:"updated_by"`
}

// DefaultConfiguration is the seeded and reset state for a kind
func DefaultConfiguration(kind Kind) Configuration {
	return Configuration{
		Kind:                    kind,
		Enabled:                 true,
		AutoGenerate:            true,
		DefaultLevel:            LevelMedium,
		NotifyEnabled:           false,
		NotifyRecipients:        "",
		ExpiringWarningDays:     DefaultWarningDays,
		CriticalStockPercentage: DefaultCriticalPct,
		ReviewIntervalHours:     DefaultReviewIntervalHr,
		Repeatable:              false,
	}
}

// Reviewable reports whether the review engine should run a pass for this configuration
func (c *Configuration) Reviewable() bool {
	return c != nil && c.Enabled && c.AutoGenerate
}

// Recipients splits the comma-delimited recipient list, dropping blanks
func (c *Configuration) Recipients() []string {
	return SplitRecipients(c.NotifyRecipients)
}

// SplitRecipients splits a comma-delimited email list
func SplitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ConfigurationPatch is a partial update. Nil fields are left unchanged.
type ConfigurationPatch struct {
	Enabled                 *bool    `json:"enabled"`
	AutoGenerate            *bool    `json:"auto_generate"`
	DefaultLevel            *Level   `json:"default_level" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	NotifyEnabled           *bool    `json:"notify_enabled"`
	NotifyRecipients        *string  `json:"notify_recipients" validate:"omitempty,max=1000"`
	ExpiringWarningDays     *int     `json:"expiring_warning_days" validate:"omitempty,gte=1,lte=365"`
	CriticalStockPercentage *float64 `json:"critical_stock_percentage" validate:"omitempty,gte=1,lte=100"`
	ReviewIntervalHours     *int     `json:"review_interval_hours" validate:"omitempty,gte=1,lte=168"`
	Repeatable              *bool    `json:"repeatable"`
}

// Apply copies set fields onto c
func (p *ConfigurationPatch) Apply(c *Configuration) {
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.AutoGenerate != nil {
		c.AutoGenerate = *p.AutoGenerate
	}
	if p.DefaultLevel != nil {
		c.DefaultLevel = *p.DefaultLevel
	}
	if p.NotifyEnabled != nil {
		c.NotifyEnabled = *p.NotifyEnabled
	}
	if p.NotifyRecipients != nil {
		c.NotifyRecipients = strings.Join(SplitRecipients(*p.NotifyRecipients), ",")
	}
	if p.ExpiringWarningDays != nil {
		c.ExpiringWarningDays = *p.ExpiringWarningDays
	}
	if p.CriticalStockPercentage != nil {
		c.CriticalStockPercentage = *p.CriticalStockPercentage
	}
	if p.ReviewIntervalHours != nil {
		c.ReviewIntervalHours = *p.ReviewIntervalHours
	}
	if p.Repeatable != nil {
		c.Repeatable = *p.Repeatable
	}
}
