package domain

import (
	"strconv"
	"time"
)

// HistoryEntry is one recorded field change on an alert. ChangedBy nil means the system.
type HistoryEntry struct {
	ID        string    `json:"id" db:"id"`
	AlertID   string    `json:"alert_id" db:"alert_id"`
	FieldName string    `json:"field_name" db:"field_name"`
	OldValue  string    `json:"old_value" db:"old_value"`
	NewValue  string    `json:"new_value" db:"new_value"`
	ChangedAt time.Time `json:"changed_at" db:"changed_at"`
	ChangedBy *string   `json:"changed_by,omitempty" db:"changed_by"`
}

// Tracked field names
const (
	FieldStatus = "status"
	FieldLevel  = "level"
	FieldActive = "active"
)

// Snapshot is the before-image of the audited alert fields
type Snapshot struct {
	Status Status
	Level  Level
	Active bool
}

// Snapshot captures the audited fields
func (a *Alert) Snapshot() Snapshot {
	return Snapshot{Status: a.Status, Level: a.Level, Active: a.Active}
}

// Diff returns one entry per audited field that differs between s and the alert's current state
func (s Snapshot) Diff(a *Alert, changedBy *string, at time.Time) []HistoryEntry {
	var entries []HistoryEntry
	add := func(field, oldValue, newValue string) {
		entries = append(entries, HistoryEntry{
			AlertID:   a.ID,
			FieldName: field,
			OldValue:  oldValue,
			NewValue:  newValue,
			ChangedAt: at,
			ChangedBy: changedBy,
		})
	}

	if s.Status != a.Status {
		add(FieldStatus, string(s.Status), string(a.Status))
	}
	if s.Level != a.Level {
		add(FieldLevel, string(s.Level), string(a.Level))
	}
	if s.Active != a.Active {
		add(FieldActive, strconv.FormatBool(s.Active), strconv.FormatBool(a.Active))
	}
	return entries
}
