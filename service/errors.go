package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures for retry policy and API responses
type ErrorKind string

const (
	// KindValidation marks bad input rejected at the boundary, never enqueued
	KindValidation ErrorKind = "validation"
	// KindTransient marks retryable collaborator failures (timeouts, rate limits)
	KindTransient ErrorKind = "transient"
	// KindStructural marks terminal failures (bad PDF, malformed model output)
	KindStructural ErrorKind = "structural"
	// KindNotFound marks lookups with no matching data
	KindNotFound ErrorKind = "not_found"
	// KindInternal is the fallback for unclassified errors
	KindInternal ErrorKind = "internal"
)

// Error is a classified service error. Stage names the pipeline stage or
// component that produced it, e.g. "extraction", "audit", "embedding",
// "retrieval".
type Error struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationErr rejects bad input with a caller-facing message
func ValidationErr(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// TransientErr wraps a retryable collaborator failure
func TransientErr(stage string, err error) error {
	return &Error{Kind: KindTransient, Stage: stage, Err: err}
}

// StructuralErr wraps a terminal, non-retryable failure
func StructuralErr(stage string, err error) error {
	return &Error{Kind: KindStructural, Stage: stage, Err: err}
}

// NotFoundErr reports a clean no-data condition
func NotFoundErr(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// KindOf classifies any error, defaulting to internal
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsTransient reports whether err is retryable
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsStructural reports whether err is terminal for its document
func IsStructural(err error) bool {
	return KindOf(err) == KindStructural
}

// IsNotFound reports whether err is a no-data condition
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// ErrorDetail renders an error as the "kind: message" form stored on failed
// documents and returned to the dashboard
func ErrorDetail(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", KindOf(err), err.Error())
}
