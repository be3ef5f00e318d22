package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeSchema         = "SCHEMA_ERROR"
	ErrCodeUpstream       = "UPSTREAM_ERROR"
	ErrCodePersistence    = "PERSISTENCE_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeAuthentication = "AUTHENTICATION_ERROR"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// ErrNotFound is the sentinel returned by store lookups with no match.
var ErrNotFound = errors.New("not found")

// APIError is the standardized error shape returned to API callers.
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError represents input validation failures. These are raised
// before any network call is made.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// SchemaError reports a required column missing from a prediction payload.
type SchemaError struct {
	Column string `json:"column"`
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	return fmt.Sprintf("required column '%s' missing from prediction data", e.Column)
}

// UpstreamError wraps a failure from one of the external services with
// enough context to be actionable: which stage, the status code, and a
// snippet of the response body.
type UpstreamError struct {
	Stage      string `json:"stage"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Err        error  `json:"-"`
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Stage, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s request failed: %v", e.Stage, e.Err)
}

// Unwrap exposes the transport-level cause, if any.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamStatusError builds an UpstreamError for a non-success HTTP
// response, truncating the body to a readable snippet.
func NewUpstreamStatusError(stage string, status int, body []byte) *UpstreamError {
	const snippetLimit = 256
	snippet := string(body)
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}
	return &UpstreamError{Stage: stage, StatusCode: status, Body: snippet}
}

// NewUpstreamTransportError builds an UpstreamError for a transport-level
// failure (connection refused, timeout, cancelled context).
func NewUpstreamTransportError(stage string, err error) *UpstreamError {
	return &UpstreamError{Stage: stage, Err: err}
}

// PersistenceError distinguishes storage failures from pipeline failures so
// a generated-but-unsaved report can still reach the caller.
type PersistenceError struct {
	Op   string `json:"op"`
	Path string `json:"path,omitempty"`
	Err  error  `json:"-"`
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("persistence failed during %s (%s): %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying I/O error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
