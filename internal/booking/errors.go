package booking

import (
	"errors"
	"fmt"
)

// Kind classifies a booking failure for callers. Every error crossing the
// package boundary is an *Error carrying exactly one Kind.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindNotFound        Kind = "not_found"
	KindSlotUnavailable Kind = "slot_unavailable"
	KindExternal        Kind = "external_service_error"
	KindPersistence     Kind = "persistence_error"
)

// Error is the structured failure result of a booking operation.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds field-level validation messages, set only for
	// KindValidation.
	Fields map[string]string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// AsError extracts a booking *Error from err.
func AsError(err error) (*Error, bool) {
	var be *Error
	ok := errors.As(err, &be)
	return be, ok
}

func validationErr(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

func notFoundErr(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func slotUnavailableErr() *Error {
	return &Error{Kind: KindSlotUnavailable, Message: "requested slot is not available"}
}

func externalErr(msg string, cause error) *Error {
	return &Error{Kind: KindExternal, Message: msg, cause: cause}
}

func persistenceErr(msg string, cause error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, cause: cause}
}
