package automod

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("automod validation failed")
	ErrTriggerNotFound = errors.New("automod trigger not found")
	ErrActionNotFound  = errors.New("automod action not found")
)

// ValidationError rejects a mutation before anything is written.
// errors.Is(err, ErrValidation) holds for every ValidationError.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

var errNoScope = errors.New("automod engine has no scope provider")
