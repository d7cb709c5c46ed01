package habits

import (
	"errors"
	"fmt"
)

var (
	ErrHabitNotFound   = errors.New("habit not found")
	ErrRecordNotFound  = errors.New("completion record not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConflictIgnored = errors.New("milestone already recorded")
)

// ValidationError names the offending field. It matches ErrInvalidInput under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
