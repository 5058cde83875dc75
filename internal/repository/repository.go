// Package repository implements the durable store behind the domain
// services on database/sql, working against both PostgreSQL and SQLite.
package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/lib/pq"

	"mangahub/pkg/models"
)

// decodeJSONList decodes a JSON-encoded string array column, leaving the
// target nil when the column holds malformed data.
func decodeJSONList(raw string, target *[]string) {
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		*target = nil
	}
}

// mapDBError translates driver errors into the shared error taxonomy so
// handlers never see driver details.
func mapDBError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewNotFoundError("resource not found", err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return models.NewConflictError("resource already exists", err)
		case "23503": // foreign_key_violation
			return models.NewValidationError("invalid relationship")
		}
	}
	// SQLite reports constraint violations by message only.
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return models.NewConflictError("resource already exists", err)
	}
	if strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return models.NewValidationError("invalid relationship")
	}

	return models.NewInternalError("database error during "+operation, err)
}

// isConflict reports whether a mapped error is a uniqueness conflict.
func isConflict(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.ErrCodeConflict
}
