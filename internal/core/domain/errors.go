package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Every operation exposed by the storage and gatekeeping layers reports
// failures as one of the sentinel errors below rather than leaking
// engine-internal error types.
type DomainError struct {
	Code    string // Error code (e.g., "KS-STOR-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Storage errors (STOR).
var (
	// ErrAlreadyExists indicates a record with the same key already exists.
	ErrAlreadyExists = NewDomainError("KS-STOR-4090", "already exists")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = NewDomainError("KS-STOR-4040", "not found")

	// ErrCorruptRecord indicates stored bytes failed validation on decode.
	// Never retryable; surfaced to the operator.
	ErrCorruptRecord = NewDomainError("KS-STOR-5002", "corrupt record")

	// ErrStorageBusy indicates a transient engine condition (write conflict,
	// lock timeout). Safe for the caller to retry with backoff.
	ErrStorageBusy = NewDomainError("KS-STOR-5030", "storage busy, retry later")

	// ErrStorageError indicates a non-transient engine or I/O fault. Fatal to
	// the in-flight operation but not to the process.
	ErrStorageError = NewDomainError("KS-STOR-5001", "storage error")
)

// Gatekeeping errors (GATE).
var (
	// ErrUnauthorized indicates missing or invalid credentials. The message
	// is identical whether the username is unknown or the secret is wrong.
	ErrUnauthorized = NewDomainError("KS-GATE-4010", "invalid credentials")

	// ErrRateLimited indicates the request was rejected by admission control.
	ErrRateLimited = NewDomainError("KS-GATE-4290", "too many requests")
)

// Input errors (ARG).
var (
	// ErrInvalidArgument indicates a malformed or missing input value.
	ErrInvalidArgument = NewDomainError("KS-ARG-4000", "invalid argument")
)
