package apperrors

import "errors"

// Common errors
var (
	// Resource errors
	ErrResourceNotFound      = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource already exists")
	ErrConflict              = errors.New("conflict")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrInvalidFormat      = errors.New("invalid token format")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// Rate limiting
	ErrTooManyRequests = errors.New("too many requests")

	// External services
	ErrExternalService = errors.New("external service failure")
)

// Student errors
var (
	ErrStudentNotFound     = errors.New("student not found")
	ErrRegNoAlreadyExists  = errors.New("registration number already exists")
	ErrEmailAlreadyExists  = errors.New("email already exists")
	ErrStudentVersionStale = errors.New("student record was modified concurrently")
)

// NewConflictError creates a conflict error with a message; cause stays reachable through errors.Is
func NewConflictError(message string, cause error) error {
	return &CustomError{
		Err:     errors.Join(ErrConflict, cause),
		Message: message,
	}
}

// NewValidationError creates a validation error carrying a message and optional details
func NewValidationError(message string, details map[string]interface{}) error {
	return &CustomError{
		Err:     ErrValidationFailed,
		Message: message,
		Details: details,
	}
}

// NewExternalServiceError wraps a failure from a collaborator outside this process
func NewExternalServiceError(message string, cause error) error {
	return &CustomError{
		Err:     errors.Join(ErrExternalService, cause),
		Message: message,
	}
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Details map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}
