package database

import (
	"strings"

	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/lib/pq"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "warning_days"):
		return errors.ValidationField("expiring_warning_days", "must be between 1 and 365")

	case strings.Contains(constraint, "stock_percentage"):
		return errors.ValidationField("critical_stock_percentage", "must be between 1 and 100")

	case strings.Contains(constraint, "review_interval"):
		return errors.ValidationField("review_interval_hours", "must be between 1 and 168")

	case strings.Contains(constraint, "inactive_closed"):
		return errors.ValidationField("active", "inactive alerts must be handled or dismissed")

	case strings.Contains(constraint, "stock_non_negative"):
		return errors.ValidationField("quantity", "stock cannot go below zero")

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "alerts_active_dedup"):
		return "an active alert of this kind already exists for the product"
	case strings.Contains(constraint, "alert_configurations_pkey"):
		return "a configuration for this alert kind already exists"
	default:
		return "a record with these values already exists"
	}
}
