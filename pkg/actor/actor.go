// Package actor identifies the user or system performing an action.
//
// Alert transitions and configuration edits record the acting user; background
// work (the review engine, event consumers) runs without one and is recorded
// as the system.
package actor

import (
	"context"
)

// Actor represents the entity performing an action in the system.
type Actor struct {
	// ID is the unique identifier of the actor (user ID)
	ID string `json:"id"`

	// Name is a display name, optional
	Name string `json:"name,omitempty"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a.IsSystem() {
		return "system"
	}
	if a.Name != "" {
		return a.Name + " (" + a.ID + ")"
	}
	return a.ID
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	return a == nil || a.ID == ""
}

// UserID returns the actor's id for nullable "by" columns; nil means the system.
func (a *Actor) UserID() *string {
	if a.IsSystem() {
		return nil
	}
	id := a.ID
	return &id
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// System returns nil, the actor used for background jobs and scheduled tasks.
func System() *Actor {
	return nil
}
