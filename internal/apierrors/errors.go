// Package apierrors defines the error taxonomy shared by the market data
// client and the services built on top of it. Every expected failure mode is
// a *Error with a Kind, so callers branch on the kind instead of matching
// message strings.
package apierrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies the failure class of an Error
type Kind string

const (
	// KindNetwork is a transport-level failure (timeout, connection reset,
	// HTTP 5xx). Transient and retryable.
	KindNetwork Kind = "network"
	// KindUpstream is a non-zero application code returned by the upstream
	// API. Not retried.
	KindUpstream Kind = "upstream_api"
	// KindCircuitOpen is a fast-fail result produced without any network
	// attempt because the endpoint's circuit is open.
	KindCircuitOpen Kind = "circuit_open"
	// KindNormalization is an unexpected token metadata or response shape.
	KindNormalization Kind = "normalization"
	// KindDatabase is a connection or transaction failure in the store.
	KindDatabase Kind = "database"
)

// Error is the single error type carried across the client/service boundary.
type Error struct {
	Kind       Kind
	Endpoint   string
	Code       string
	Message    string
	RetryAfter time.Duration
	Cause      error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewNetworkError creates a transport-level error for an endpoint
func NewNetworkError(endpoint string, cause error) *Error {
	return &Error{
		Kind:     KindNetwork,
		Endpoint: endpoint,
		Message:  fmt.Sprintf("transport failure calling %s", endpoint),
		Cause:    cause,
	}
}

// NewUpstreamError creates an error for a non-zero upstream response code
func NewUpstreamError(endpoint, code, msg string) *Error {
	if msg == "" {
		msg = "unknown upstream error"
	}
	return &Error{
		Kind:     KindUpstream,
		Endpoint: endpoint,
		Code:     code,
		Message:  msg,
	}
}

// NewCircuitOpenError creates a short-circuit error carrying the cooldown hint
func NewCircuitOpenError(endpoint string, retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindCircuitOpen,
		Endpoint:   endpoint,
		Message:    fmt.Sprintf("circuit open for %s", endpoint),
		RetryAfter: retryAfter,
	}
}

// NewNormalizationError creates an error for unexpected upstream data shapes
func NewNormalizationError(endpoint, msg string, cause error) *Error {
	return &Error{
		Kind:     KindNormalization,
		Endpoint: endpoint,
		Message:  msg,
		Cause:    cause,
	}
}

// NewDatabaseError creates an error for a failed store operation
func NewDatabaseError(operation string, cause error) *Error {
	return &Error{
		Kind:    KindDatabase,
		Message: fmt.Sprintf("database error during %s", operation),
		Cause:   cause,
	}
}

// KindOf returns the Kind of err, or "" if err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As unwraps err into an *Error if possible
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsRetryable reports whether the failure is transient. Only transport-level
// failures are retried; upstream application errors are authoritative.
func IsRetryable(err error) bool {
	return KindOf(err) == KindNetwork
}

// IsCircuitOpen reports whether err is a fast-fail short circuit
func IsCircuitOpen(err error) bool {
	return KindOf(err) == KindCircuitOpen
}
