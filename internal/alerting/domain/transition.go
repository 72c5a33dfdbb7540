package domain

import (
	"time"

	"github.com/agrostock/agrostock-backend/pkg/errors"
)

// transitions is the table enforced on edit paths. Self-transitions are absent.
var transitions = map[Status][]Status{
	StatusPending:   {StatusRead, StatusHandled, StatusDismissed},
	StatusRead:      {StatusHandled, StatusDismissed, StatusPending},
	StatusHandled:   {StatusRead, StatusPending},
	StatusDismissed: {StatusRead, StatusPending},
}

// CanTransition reports whether from -> to is allowed on an edit path
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a validation error for a disallowed edit
func ValidateTransition(from, to Status) error {
	if !to.Valid() {
		return errors.ValidationField("status", "unknown status "+string(to))
	}
	if !CanTransition(from, to) {
		return errors.ValidationField("status", "cannot change status from "+string(from)+" to "+string(to))
	}
	return nil
}

// ChangeStatus applies a validated status edit using the matching lifecycle operation.
// Moving a closed alert to READ reopens it first so the active flag stays consistent.
func (a *Alert) ChangeStatus(to Status, by *string, now time.Time) error {
	if err := ValidateTransition(a.Status, to); err != nil {
		return err
	}

	switch to {
	case StatusPending:
		a.Reactivate()
	case StatusRead:
		if a.Status.Closed() {
			a.Reactivate()
		}
		a.MarkRead(by, now)
	case StatusHandled:
		a.MarkHandled(by, now)
	case StatusDismissed:
		a.Dismiss(by, now)
	}
	return nil
}

// ChangeLevel sets a new severity
func (a *Alert) ChangeLevel(level Level) error {
	if !level.Valid() {
		return errors.ValidationField("level", "unknown level "+string(level))
	}
	a.Level = level
	return nil
}
