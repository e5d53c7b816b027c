// Package feederr defines the error taxonomy shared by the store adapter,
// repository and engagement engine. Failures cross package boundaries as
// values of this type; callers branch on Kind, never on message text.
package feederr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Validation marks malformed input: empty content, length violation.
	// Terminal, never retried.
	Validation Kind = iota + 1
	// NotFound marks a reference to an absent post or comment. Terminal.
	NotFound
	// Forbidden marks an authorization failure (non-author mutating a post).
	// Terminal, never silently ignored.
	Forbidden
	// Unavailable marks a store transport/connectivity failure. The retry
	// decision belongs to the caller; nothing retries internally.
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error carries a kind, a human readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, or 0 when err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// MessageOf returns the human readable message, falling back to err.Error().
func MessageOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return KindOf(err) == Validation }

// IsNotFound reports whether err refers to an absent document.
func IsNotFound(err error) bool { return KindOf(err) == NotFound }

// IsForbidden reports whether err is an authorization failure.
func IsForbidden(err error) bool { return KindOf(err) == Forbidden }

// IsUnavailable reports whether err is a store connectivity failure.
func IsUnavailable(err error) bool { return KindOf(err) == Unavailable }
