// Package errs provides the error taxonomy for the reconciliation tool.
// Sentinel errors enable programmatic checks with errors.Is; the typed
// wrappers carry enough context for the run summary and the report.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrapped errors anywhere in the pipeline should satisfy
// errors.Is against exactly one of these.
var (
	// ErrConfig indicates that run configuration (including the mapping
	// source) is missing or malformed. Fatal to the whole run.
	ErrConfig = errors.New("configuration error")

	// ErrNotFound indicates that a requested record does not exist.
	// At order granularity this drives the skipped-not-found outcome.
	ErrNotFound = errors.New("not found")

	// ErrRemote indicates that the external system rejected an operation
	// (validation, permission, conflict). Per-order failure.
	ErrRemote = errors.New("remote error")

	// ErrTransient indicates a network or timeout failure that is eligible
	// for bounded retry with backoff before being treated as ErrRemote.
	ErrTransient = errors.New("transient error")

	// ErrExcluded indicates that an item lookup matched only the configured
	// excluded catalog item. Distinct from ErrNotFound so callers can log
	// the specific reason before keeping the line as an expense.
	ErrExcluded = errors.New("item excluded")
)

// ConfigError wraps a fatal configuration failure with its source path.
type ConfigError struct {
	Source string
	Reason error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Source, e.Reason)
}

// Is implements errors.Is support.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// Unwrap exposes the underlying cause.
func (e *ConfigError) Unwrap() error { return e.Reason }

// NewConfigError creates a ConfigError for the given source file.
func NewConfigError(source string, reason error) *ConfigError {
	return &ConfigError{Source: source, Reason: reason}
}

// RemoteError wraps a rejection from the external order-management system.
type RemoteError struct {
	Operation string
	Status    int
	Message   string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s rejected (status %d): %s", e.Operation, e.Status, e.Message)
	}
	return fmt.Sprintf("%s rejected (status %d)", e.Operation, e.Status)
}

// Is implements errors.Is support.
func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// TransientError wraps a retryable fetch failure.
type TransientError struct {
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Operation, e.Cause)
}

// Is implements errors.Is support.
func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// Unwrap exposes the underlying cause.
func (e *TransientError) Unwrap() error { return e.Cause }
