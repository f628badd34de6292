package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input
	ErrCatExecution  ErrorCategory = "execution"  // Runtime failure
	ErrCatTimeout    ErrorCategory = "timeout"    // Operation timed out
	ErrCatState      ErrorCategory = "state"      // Invalid state transition
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatConflict   ErrorCategory = "conflict"   // Concurrent modification
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrExecution creates an execution error.
func ErrExecution(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      "NOT_FOUND",
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// ErrUnknownTemplate creates an error for an unregistered template name.
// Suggestions, when present, carry close template names for the caller.
func ErrUnknownTemplate(name string, suggestions []string) *DomainError {
	e := &DomainError{
		Category:  ErrCatNotFound,
		Code:      CodeUnknownTemplate,
		Message:   fmt.Sprintf("workflow template not registered: %s", name),
		Retryable: false,
	}
	if len(suggestions) > 0 {
		e = e.WithDetail("suggestions", suggestions)
	}
	return e
}

// ErrUnknownExecutor creates an error for a step bound to an unregistered executor.
func ErrUnknownExecutor(name string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      CodeUnknownExecutor,
		Message:   fmt.Sprintf("executor not registered: %s", name),
		Retryable: false,
	}
}

// ErrDependencyCycle creates an error for a step graph that is not a DAG.
func ErrDependencyCycle(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      CodeDependencyCycle,
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	CodeUnknownTemplate  = "UNKNOWN_TEMPLATE"
	CodeUnknownExecutor  = "UNKNOWN_EXECUTOR"
	CodeDependencyCycle  = "DEPENDENCY_CYCLE"
	CodeWorkflowNotFound = "WORKFLOW_NOT_FOUND"
	CodeStepNotFound     = "STEP_NOT_FOUND"
	CodeInvalidState     = "INVALID_STATE"
	CodeExecutionStuck   = "EXECUTION_STUCK"
	CodeStepFailed       = "STEP_FAILED"
	CodeAlreadyActive    = "ALREADY_ACTIVE"

	// Validation error codes
	CodeMissingSteps     = "MISSING_STEPS"
	CodeUnknownStepRef   = "UNKNOWN_STEP_REFERENCE"
	CodeDuplicateStep    = "DUPLICATE_STEP"
	CodeSelfDependency   = "SELF_DEPENDENCY"
	CodeInvalidTimeout   = "INVALID_TIMEOUT"
	CodeInvalidPriority  = "INVALID_PRIORITY"
	CodeTemplateConflict = "TEMPLATE_CONFLICT"
)
