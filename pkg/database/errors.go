package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Serialization failure (40001) / deadlock detected (40P01):
	// two writers raced on the same rows, the caller should retry.
	case "40001", "40P01":
		return errors.Conflict("concurrent update detected, retry the operation")

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

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Validation(map[string]string{
			"quantity": "must not be negative",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: in_stock, exhausted, empty, quarantine, withdrawn, expired",
		})

	case strings.Contains(constraint, "movement_type_valid"):
		return errors.Validation(map[string]string{
			"movement_type": "must be one of: entry, exit, adjustment",
		})

	case strings.Contains(constraint, "session_type_valid"):
		return errors.Validation(map[string]string{
			"session_type": "must be one of: full, partial, cyclic, targeted",
		})

	default:
		return errors.Validation(map[string]string{
			"constraint": pqErr.Constraint,
		})
	}
}

// formatConstraintMessage builds a readable message for unique violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	if pqErr.Constraint != "" {
		return "duplicate value violates " + pqErr.Constraint
	}
	return "duplicate value"
}
