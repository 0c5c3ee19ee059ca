package service

import (
	"database/sql"
	"errors"
	"fmt"

	"casedocs/internal/storage"
)

// Error taxonomy. Callers match with errors.Is; the HTTP layer maps each
// sentinel to a status code.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrNotFound        = errors.New("document not found")
	// ErrIntegrity means a metadata row references a blob that no longer exists.
	ErrIntegrity = errors.New("document content missing")
	ErrStorage   = errors.New("storage failure")
	ErrDatabase  = errors.New("database failure")
)

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// dbError maps a repository error. Missing rows become ErrNotFound.
func dbError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s: %w", ErrDatabase, op, err)
}

func storageError(op string, err error) error {
	if errors.Is(err, storage.ErrInvalidTTL) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
