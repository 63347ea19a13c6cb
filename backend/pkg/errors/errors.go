package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeConfig represents local misconfiguration (missing credentials, bad definitions)
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeRemote represents failed calls to the remote assistant service
	ErrorTypeRemote ErrorType = "remote"
	// ErrorTypeRun represents runs that ended somewhere the pipeline cannot continue from
	ErrorTypeRun ErrorType = "run"
	// ErrorTypeStore represents handle store errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// errorType lets IsErrorType see through the typed wrappers below.
func (e *BaseError) errorType() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// ErrAgentCreationFailed is returned when the remote service refuses to create an agent.
// It belongs to the config family: the pipeline cannot start without its agents.
type ErrAgentCreationFailed struct {
	*BaseError
	Role string
}

func NewAgentCreationFailed(role string, err error) *ErrAgentCreationFailed {
	return &ErrAgentCreationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("failed to create agent %q", role), err),
		Role:      role,
	}
}

// Remote Errors

// ErrRemoteRequestFailed is returned when a call to the assistant service fails
type ErrRemoteRequestFailed struct {
	*BaseError
	Operation string
	// Permanent marks a request the service rejected; sending it again won't help
	Permanent bool
}

func NewRemoteRequestFailed(operation string, err error) *ErrRemoteRequestFailed {
	return &ErrRemoteRequestFailed{
		BaseError: NewBaseError(ErrorTypeRemote, fmt.Sprintf("remote request failed: %s", operation), err),
		Operation: operation,
	}
}

// NewRemoteRequestRejected is a remote failure that is not worth retrying,
// such as bad credentials or a malformed request
func NewRemoteRequestRejected(operation string, err error) *ErrRemoteRequestFailed {
	e := NewRemoteRequestFailed(operation, err)
	e.Message = fmt.Sprintf("remote request rejected: %s", operation)
	e.Permanent = true
	return e
}

// Run Errors

// ErrRunUnexpectedStatus is returned when a run stops in a status the pipeline cannot continue from
type ErrRunUnexpectedStatus struct {
	*BaseError
	RunID  string
	Status string
}

func NewRunUnexpectedStatus(runID, status string) *ErrRunUnexpectedStatus {
	return &ErrRunUnexpectedStatus{
		BaseError: NewBaseError(ErrorTypeRun, fmt.Sprintf("run %s stopped with status %s", runID, status), nil),
		RunID:     runID,
		Status:    status,
	}
}

// ErrToolRoundsExceeded is returned when a run keeps asking for tool outputs
type ErrToolRoundsExceeded struct {
	*BaseError
	RunID  string
	Rounds int
}

func NewToolRoundsExceeded(runID string, rounds int) *ErrToolRoundsExceeded {
	return &ErrToolRoundsExceeded{
		BaseError: NewBaseError(ErrorTypeRun, fmt.Sprintf("run %s still requires action after %d tool rounds", runID, rounds), nil),
		RunID:     runID,
		Rounds:    rounds,
	}
}

// Store Errors

// ErrHandleStoreFailed is returned when a cached handle cannot be read or written
type ErrHandleStoreFailed struct {
	*BaseError
	Key string
}

func NewHandleStoreFailed(key string, err error) *ErrHandleStoreFailed {
	return &ErrHandleStoreFailed{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("handle store failed for key %s", key), err),
		Key:       key,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// ErrContextTimeout is returned when context times out
type ErrContextTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewContextTimeout(operation string, timeout time.Duration, err error) *ErrContextTimeout {
	return &ErrContextTimeout{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context timeout: %s (timeout: %v)", operation, timeout), err),
		Operation: operation,
		Timeout:   timeout,
	}
}

// Helper functions

// IsErrorType checks if an error, or anything it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	if typed, ok := err.(interface{ errorType() ErrorType }); ok && typed.errorType() == errType {
		return true
	}
	switch wrapped := err.(type) {
	case interface{ Unwrap() error }:
		return IsErrorType(wrapped.Unwrap(), errType)
	case interface{ Unwrap() []error }:
		for _, e := range wrapped.Unwrap() {
			if IsErrorType(e, errType) {
				return true
			}
		}
	}
	return false
}

// IsConfigurationError reports whether err belongs to the config family
func IsConfigurationError(err error) bool {
	return IsErrorType(err, ErrorTypeConfig)
}

// IsRemoteRequestError reports whether err is a failed remote call
func IsRemoteRequestError(err error) bool {
	return IsErrorType(err, ErrorTypeRemote)
}

// IsUnexpectedStatus reports whether err describes a run that stopped in a non-completed status
func IsUnexpectedStatus(err error) bool {
	var statusErr *ErrRunUnexpectedStatus
	return stderrors.As(err, &statusErr)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	// A failed remote call may succeed on a second attempt unless the service
	// rejected it outright; everything else is deterministic
	var remote *ErrRemoteRequestFailed
	if stderrors.As(err, &remote) {
		return !remote.Permanent
	}
	return false
}
