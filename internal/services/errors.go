package services

import (
	"errors"
	"fmt"

	"github.com/terraincognita07/labnotes/internal/db"
)

var (
	ErrNotFound            = db.ErrNotFound
	ErrConstraintViolation = db.ErrConstraintViolation
	ErrStorage             = db.ErrStorage
)

// ValidationError reports input rejected before any storage write.
type ValidationError struct {
	Field   string
	Message string
}

func (err *ValidationError) Error() string {
	if err.Field == "" {
		return err.Message
	}
	return fmt.Sprintf("%s: %s", err.Field, err.Message)
}

func newValidationError(field string, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

func storageError(action string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, action, err)
}
