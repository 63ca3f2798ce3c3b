package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidSchema signals an invalid schema definition.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrEventNotFound signals a missing event document.
	ErrEventNotFound = errors.New("event not found")
	// ErrInvalidEvent signals an event that does not fit its index schema.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")

	// ErrSyntax signals malformed query text.
	ErrSyntax = errors.New("syntax error")
	// ErrValidation signals a request or query rejected before execution.
	ErrValidation = errors.New("validation error")
	// ErrExecution signals a backend failure while executing a query.
	ErrExecution = errors.New("execution error")
	// ErrTimeout signals an exceeded request deadline.
	ErrTimeout = errors.New("timeout")
)

// ValidationError reports a rejected request field or query construct.
// Error returns Message unchanged so callers can match on it verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error for field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ExecutionError wraps a backend failure with the stage that produced it.
type ExecutionError struct {
	Stage int
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: stage %d: %v", ErrExecution.Error(), e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() []error { return []error{ErrExecution, e.Err} }

// NewExecutionError creates an execution error for stage.
func NewExecutionError(stage int, err error) error {
	return &ExecutionError{Stage: stage, Err: err}
}

// TimeoutError reports a request that ran past its deadline or was cancelled.
type TimeoutError struct {
	Stage int
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: stage %d: %v", ErrTimeout.Error(), e.Stage, e.Err)
}

func (e *TimeoutError) Unwrap() []error { return []error{ErrTimeout, e.Err} }

// NewTimeoutError creates a timeout error for stage.
func NewTimeoutError(stage int, err error) error {
	return &TimeoutError{Stage: stage, Err: err}
}
