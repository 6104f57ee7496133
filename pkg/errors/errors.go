package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur during a crawl
type ErrorType string

const (
	ErrorTypeItem       ErrorType = "item"
	ErrorTypeNoProgress ErrorType = "no_progress"
	ErrorTypeStuck      ErrorType = "stuck"
	ErrorTypeDriver     ErrorType = "driver"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// Error carries a type tag and the operation that produced it
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s error: %s", e.Op, e.Type, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by type so sentinel values compare with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Op == "" || t.Op == e.Op) && t.Message == "" && t.Err == nil
}

// New creates a typed error
func New(t ErrorType, op, message string) *Error {
	return &Error{Type: t, Op: op, Message: message}
}

// Wrap attaches a type and operation to err. A nil err stays nil.
func Wrap(t ErrorType, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Op: op, Err: err}
}

// TypeOf returns the type of the first *Error in err's chain
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type anywhere in its chain
func IsType(err error, t ErrorType) bool {
	return stderrors.Is(err, &Error{Type: t})
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeDriver, ErrorTypeStuck, ErrorTypeItem:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeConfig, ErrorTypeNoProgress:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable media fetch
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0, 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
