// Package syncerr defines the error taxonomy shared by the synchronization
// engine, the registration client and the token provider adapter.
//
// Every terminal failure carries a Kind and a human-readable message. Callers
// branch on the kind with errors.Is against the sentinel values:
//
//	if errors.Is(err, syncerr.ErrValidation) {
//	    // bad interest name, nothing was sent
//	}
package syncerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind uint8

const (
	// KindUnknown is the kind of errors not created by this package.
	KindUnknown Kind = iota

	// KindPrecondition - the instance is in the wrong lifecycle state.
	KindPrecondition

	// KindValidation - malformed interest name or oversized set.
	KindValidation

	// KindConfiguration - missing token provider or conflicting instance ID.
	KindConfiguration

	// KindRetryable - transient network or server fault.
	KindRetryable

	// KindUnauthorized - the user token was rejected.
	KindUnauthorized

	// KindPermanentRejection - the server no longer accepts the registration.
	KindPermanentRejection

	// KindSuperseded - a newer call or a stop replaced this operation.
	KindSuperseded

	// KindTimedOut - the token provider did not answer in time.
	KindTimedOut

	// KindProvider - the token provider reported a failure.
	KindProvider
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "PRECONDITION"
	case KindValidation:
		return "VALIDATION"
	case KindConfiguration:
		return "CONFIGURATION"
	case KindRetryable:
		return "RETRYABLE"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindPermanentRejection:
		return "PERMANENT_REJECTION"
	case KindSuperseded:
		return "SUPERSEDED"
	case KindTimedOut:
		return "TIMED_OUT"
	case KindProvider:
		return "PROVIDER"
	default:
		return "UNKNOWN"
	}
}

// Error is a classified error.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. This makes the
// sentinel values below usable with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// Sentinel errors, one per kind.
var (
	ErrPrecondition       = &Error{Kind: KindPrecondition}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrConfiguration      = &Error{Kind: KindConfiguration}
	ErrRetryable          = &Error{Kind: KindRetryable}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrPermanentRejection = &Error{Kind: KindPermanentRejection}
	ErrSuperseded         = &Error{Kind: KindSuperseded}
	ErrTimedOut           = &Error{Kind: KindTimedOut}
	ErrProvider           = &Error{Kind: KindProvider}
)

// New creates an Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err returns nil.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is worth retrying unchanged.
func IsRetryable(err error) bool {
	return KindOf(err) == KindRetryable
}
