// Package errors provides custom error types for the orgsync system.
// These errors let the orchestrator branch on what went wrong (authentication,
// remote API failures, lookup misses, invalid metrics) instead of inspecting
// strings or sentinel return values.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the orgsync system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthenticated indicates that a token could not be issued or was rejected
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrSystemUnavailable indicates that a remote system answered with a server error
	ErrSystemUnavailable = errors.New("system unavailable")

	// ErrRateLimited indicates that the API rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidMetric indicates a completion metric that cannot be computed
	ErrInvalidMetric = errors.New("invalid metric")

	// ErrParentNotFound indicates that a required parent entity is missing
	ErrParentNotFound = errors.New("parent not found")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// NotFoundError represents an expected lookup miss. It is a signal to
// create, not a failure.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// APIError represents a non-success response from a remote system.
// Body always carries the raw response so callers can log the full context;
// Message is the best human-readable extract (the response_message field for
// structured 4xx bodies, the plain text for 500s).
type APIError struct {
	System     string // "lms" or "reporting"
	StatusCode int
	Message    string
	Body       string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "API error from %s", e.System)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Endpoint != "" {
		fmt.Fprintf(&b, " at %s", e.Endpoint)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	return b.String()
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	switch {
	case e.StatusCode == 429:
		return target == ErrRateLimited
	case e.StatusCode == 401 || e.StatusCode == 403:
		return target == ErrUnauthenticated
	case e.StatusCode == 404:
		return target == ErrNotFound
	case e.StatusCode >= 500:
		return target == ErrSystemUnavailable
	}
	return false
}

// IsServerError reports whether the response was a 5xx, whose body is plain
// text rather than the structured error document.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// NewAPIError creates a new APIError
func NewAPIError(system string, statusCode int, message string) *APIError {
	return &APIError{
		System:     system,
		StatusCode: statusCode,
		Message:    message,
	}
}

// AuthenticationError represents a failed token exchange. It is fatal for
// the run.
type AuthenticationError struct {
	System  string
	Method  string // "client_credentials", "password"
	Message string
	Err     error
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	if e.System != "" {
		return fmt.Sprintf("authentication error for %s (%s): %s", e.System, e.Method, e.Message)
	}
	return fmt.Sprintf("authentication error (%s): %s", e.Method, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrUnauthenticated
}

// NewAuthenticationError creates a new AuthenticationError
func NewAuthenticationError(system, method, message string, err error) *AuthenticationError {
	return &AuthenticationError{
		System:  system,
		Method:  method,
		Message: message,
		Err:     err,
	}
}

// InvalidMetricError is returned when a completion percentage cannot be
// computed, e.g. a department with nobody assigned to the course.
type InvalidMetricError struct {
	Assigned int
	Finished int
	Message  string
}

// Error implements the error interface
func (e *InvalidMetricError) Error() string {
	return fmt.Sprintf("invalid metric (assigned=%d, finished=%d): %s", e.Assigned, e.Finished, e.Message)
}

// Is implements errors.Is support
func (e *InvalidMetricError) Is(target error) bool {
	return target == ErrInvalidMetric
}

// NewInvalidMetricError creates a new InvalidMetricError
func NewInvalidMetricError(assigned, finished int, message string) *InvalidMetricError {
	return &InvalidMetricError{Assigned: assigned, Finished: finished, Message: message}
}

// ParentNotFoundError is returned when an entity cannot be created because
// its parent (a division for a department, a course index for a company
// index) does not exist. It aborts the affected subtree only.
type ParentNotFoundError struct {
	Resource string
	ID       string
	Parent   string
}

// Error implements the error interface
func (e *ParentNotFoundError) Error() string {
	return fmt.Sprintf("cannot create %s %s: parent %q not found", e.Resource, e.ID, e.Parent)
}

// Is implements errors.Is support
func (e *ParentNotFoundError) Is(target error) bool {
	return target == ErrParentNotFound
}

// NewParentNotFoundError creates a new ParentNotFoundError
func NewParentNotFoundError(resource, id, parent string) *ParentNotFoundError {
	return &ParentNotFoundError{Resource: resource, ID: id, Parent: parent}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// SyncError represents a phase of a run that could not complete
type SyncError struct {
	Phase    string
	Entities []string
	Err      error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if len(e.Entities) > 0 {
		return fmt.Sprintf("sync error in %s (affected: %v): %v", e.Phase, e.Entities, e.Err)
	}
	return fmt.Sprintf("sync error in %s: %v", e.Phase, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError creates a new SyncError
func NewSyncError(phase string, entities []string, err error) *SyncError {
	return &SyncError{
		Phase:    phase,
		Entities: entities,
		Err:      err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "jwt"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ResourceError represents an error during a create/update/fetch of a
// remote or local resource.
type ResourceError struct {
	Operation string // "create", "update", "enable", "disable", "fetch"
	Resource  string // "user", "department", "index", "measurement"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsAuthError checks if an error is an authentication failure
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsInvalidMetric checks if an error is an invalid metric error
func IsInvalidMetric(err error) bool {
	return errors.Is(err, ErrInvalidMetric)
}

// IsParentNotFound checks if an error reports a missing parent
func IsParentNotFound(err error) bool {
	return errors.Is(err, ErrParentNotFound)
}

// IsSystemUnavailable checks if an error indicates a remote server error
func IsSystemUnavailable(err error) bool {
	return errors.Is(err, ErrSystemUnavailable)
}

// Is is an alias for the standard library errors.Is.
var Is = errors.Is

// As is an alias for the standard library errors.As.
var As = errors.As

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}
