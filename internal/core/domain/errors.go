// Package domain defines the core domain models for ncabridge.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error code categories, the middle part of NCA-{CATEGORY}-{NUMBER}.
const (
	CategoryConnection = "CONN"
	CategoryProtocol   = "PROT"
	CategoryAgent      = "AGNT"
	CategorySign       = "SIGN"
	CategoryPortal     = "HTTP"
	CategoryArgument   = "ARG"
	CategoryAuth       = "AUTH"
	CategorySystem     = "SYS"
)

// DomainError represents a domain error with a structured error code.
// Codes have the form NCA-{CATEGORY}-{NUMBER}.
type DomainError struct {
	Code    string // Error code (e.g., "NCA-CONN-4090")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
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

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Category returns the category of an NCA-{CATEGORY}-{NUMBER} code, or ""
// for anything else.
func Category(code string) string {
	rest, ok := strings.CutPrefix(code, "NCA-")
	if !ok {
		return ""
	}
	cat, num, ok := strings.Cut(rest, "-")
	if !ok || cat == "" || num == "" {
		return ""
	}
	return cat
}

// ErrorCategory returns the category of err's code, or "" when err is not
// a DomainError.
func ErrorCategory(err error) string {
	return Category(GetErrorCode(err))
}

// ============================================================================
// Agent connection errors (CONN)
// ============================================================================

var (
	// ErrConnection indicates the handshake with the local agent failed
	// or the socket errored before opening.
	ErrConnection = NewDomainError("NCA-CONN-5020", "agent connection failed")

	// ErrNotConnected indicates a send was attempted while not connected.
	ErrNotConnected = NewDomainError("NCA-CONN-4090", "agent not connected")

	// ErrConnectionClosed indicates the connection dropped while a request
	// was outstanding.
	ErrConnectionClosed = NewDomainError("NCA-CONN-4990", "agent connection closed")
)

// ============================================================================
// Protocol errors (PROT, AGNT, SIGN)
// ============================================================================

var (
	// ErrProtocolParse indicates an inbound frame was not valid JSON.
	ErrProtocolParse = NewDomainError("NCA-PROT-4000", "malformed agent message")

	// ErrAgentRejected indicates the agent answered with an error response.
	ErrAgentRejected = NewDomainError("NCA-AGNT-5000", "agent rejected request")

	// ErrSignTimeout indicates no matching response arrived before the deadline.
	ErrSignTimeout = NewDomainError("NCA-SIGN-4080", "signing request timed out")
)

// ============================================================================
// Portal errors (HTTP)
// ============================================================================

var (
	// ErrRemote indicates a portal endpoint returned a failure.
	ErrRemote = NewDomainError("NCA-HTTP-5020", "portal request failed")
)

// ============================================================================
// Argument errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("NCA-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("NCA-ARG-1002", "missing required argument")
)

// ============================================================================
// System errors (SYS)
// ============================================================================

var (
	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = NewDomainError("NCA-SYS-5000", "internal error")

	// ErrServiceUnavailable indicates the local agent is unavailable.
	ErrServiceUnavailable = NewDomainError("NCA-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("NCA-SYS-4000", "bad request")

	// ErrUnauthorized indicates a missing or wrong bridge API token.
	ErrUnauthorized = NewDomainError("NCA-AUTH-4010", "authentication required")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("NCA-SYS-4290", "too many requests")

	// ErrUnsupportedMediaType indicates a request body that is not JSON.
	ErrUnsupportedMediaType = NewDomainError("NCA-SYS-4150", "unsupported media type")
)
