package schema

import (
	"errors"
	"fmt"
)

// ErrInvalidSpec indicates a schema declaration that cannot be compiled
var ErrInvalidSpec = errors.New("invalid schema specification")

// ValidationError reports which declared object failed validation and why
type ValidationError struct {
	Object  string // e.g. "table widgets", "column widgets.name"
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Object, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidSpec
}

func invalid(object, format string, args ...any) error {
	return &ValidationError{Object: object, Message: fmt.Sprintf(format, args...)}
}
