package accessor

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every failure the accessor can return.
type Kind string

const (
	// Unauthorized means the session is absent or expired.
	Unauthorized Kind = "UNAUTHORIZED"
	// NotFound means the resource does not exist.
	NotFound Kind = "NOT_FOUND"
	// Validation means the server rejected the input of a mutation.
	Validation Kind = "VALIDATION"
	// Transport means the network or the server is unreachable.
	Transport Kind = "TRANSPORT"
	// Unknown is the catch-all, including malformed payloads.
	Unknown Kind = "UNKNOWN"
)

// DefaultMessage is shown when the server gives no error string.
const DefaultMessage = "Something went wrong"

// AccessError is the only error type returned across the accessor boundary.
type AccessError struct {
	Kind Kind
	// Status is the HTTP status code, 0 when no response was received.
	Status  int
	Message string
	Cause   error
}

func (e *AccessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AccessError) Unwrap() error {
	return e.Cause
}

// KindOf returns the Kind of err, Unknown for foreign errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *AccessError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Unknown
}

// IsUnauthorized reports whether err means the session is gone.
func IsUnauthorized(err error) bool {
	return KindOf(err) == Unauthorized
}

// MessageOf returns the user-facing message carried by err.
func MessageOf(err error) string {
	var ae *AccessError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return DefaultMessage
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return Unauthorized
	case code == http.StatusNotFound:
		return NotFound
	case code >= 400 && code < 500:
		return Validation
	case code >= 500:
		return Transport
	default:
		return Unknown
	}
}

func transportError(msg string, cause error) *AccessError {
	return &AccessError{Kind: Transport, Message: msg, Cause: cause}
}

func malformed(status int, cause error) *AccessError {
	return &AccessError{Kind: Unknown, Status: status, Message: "malformed payload", Cause: cause}
}
