// Package status defines the closed set of failure kinds the settlement
// engine reports to its callers.
package status

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientFunds
	KindInsufficientStock
	KindUnauthorized
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error carries a Kind plus a message that is safe to show to the caller.
// The wrapped Err is for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against the bare sentinels below, so callers can write
// errors.Is(err, status.ErrInsufficientFunds).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInternal          = &Error{Kind: KindInternal}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrConflict          = &Error{Kind: KindConflict}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// Message returns the caller-safe message of err.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Kind != KindInternal {
		if se.Message != "" {
			return se.Message
		}
		return se.Kind.String()
	}
	return "internal error"
}
