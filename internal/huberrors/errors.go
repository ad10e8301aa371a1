// Package huberrors provides sentinel and custom error types for the application.
package huberrors

// ErrNotFound represents a "not found" error.
// Use when a requested video, transcript or collection doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is matches any *NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation before any external call is made.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is matches any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrUnavailable is the sentinel for a model backend that cannot be used at all
// (failed to load, missing credentials). Retrying the request will not help.
var ErrUnavailable = &UnavailableError{}

// UnavailableError wraps the cause of a dependency that could not be initialized.
type UnavailableError struct {
	Dependency string
	Err        error
}

// NewUnavailableError creates an UnavailableError for the named dependency.
func NewUnavailableError(dependency string, err error) *UnavailableError {
	return &UnavailableError{Dependency: dependency, Err: err}
}

func (e *UnavailableError) Error() string {
	msg := "dependency unavailable"
	if e.Dependency != "" {
		msg = e.Dependency + " unavailable"
	}

	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}

	return msg
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is matches any *UnavailableError.
func (e *UnavailableError) Is(target error) bool {
	_, ok := target.(*UnavailableError)

	return ok
}

// ErrConflict is the sentinel for a write refused because the row changed since it was read.
var ErrConflict = &ConflictError{}

// ConflictError reports that resource was modified concurrently.
type ConflictError struct {
	Resource string
	Message  string
}

// NewConflictError creates a ConflictError.
func NewConflictError(resource, message string) *ConflictError {
	return &ConflictError{Resource: resource, Message: message}
}

func (e *ConflictError) Error() string {
	return e.Message
}

// Is matches any *ConflictError.
func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)

	return ok
}
