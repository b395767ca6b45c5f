package certfill

import (
	"errors"
	"fmt"
)

// Sentinel errors for editing failures.
var (
	ErrAllStrategiesFailed = errors.New("certfill: all strategies failed")
	ErrEmptyName           = errors.New("certfill: name is empty")
	ErrInvalidTuple        = errors.New("certfill: invalid name tuple")
	ErrNoTemplate          = errors.New("certfill: template is empty")
	ErrInvalidOption       = errors.New("certfill: invalid option")
	ErrNoNameField         = errors.New("certfill: no name form field")
)

// EditError represents a failed editor operation.
// It wraps an underlying error and includes the operation name for context.
type EditError struct {
	Op  string // operation name, e.g. "Edit", "EditFile"
	Err error  // underlying error
}

func (e *EditError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("certfill.%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("certfill.%s: unknown error", e.Op)
}

func (e *EditError) Unwrap() error {
	return e.Err
}

// newEditError creates a new EditError wrapping the given error with operation context.
func newEditError(op string, err error) *EditError {
	return &EditError{Op: op, Err: err}
}
