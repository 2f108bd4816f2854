package types

import (
	"errors"
	"fmt"
)

// ErrorKind tags every error surfaced by a paid request or the API client
type ErrorKind string

const (
	ErrConfiguration    ErrorKind = "ConfigurationError"
	ErrPaymentFailed    ErrorKind = "PaymentFailed"
	ErrNetwork          ErrorKind = "NetworkError"
	ErrInvalidInput     ErrorKind = "InvalidInput"
	ErrExtractionFailed ErrorKind = "ExtractionFailed"
	ErrRobotsBlocked    ErrorKind = "RobotsBlocked"
)

// Error is the single error type for the payment flow. Optional fields are
// left zero when they do not apply.
type Error struct {
	Kind       ErrorKind
	Message    string
	Network    string
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func NewConfigurationError(message string, err error) *Error {
	return &Error{Kind: ErrConfiguration, Message: message, Err: err}
}

func NewPaymentFailedError(network, message string, err error) *Error {
	return &Error{Kind: ErrPaymentFailed, Network: network, Message: message, Err: err}
}

func NewNetworkError(message string, statusCode int, err error) *Error {
	return &Error{Kind: ErrNetwork, Message: message, StatusCode: statusCode, Err: err}
}

func NewInvalidInputError(url, message string) *Error {
	return &Error{Kind: ErrInvalidInput, URL: url, Message: message}
}

func NewExtractionFailedError(message string, statusCode int, err error) *Error {
	return &Error{Kind: ErrExtractionFailed, Message: message, StatusCode: statusCode, Err: err}
}

func NewRobotsBlockedError(url, message string) *Error {
	return &Error{Kind: ErrRobotsBlocked, URL: url, Message: message}
}
