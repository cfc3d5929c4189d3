// Package apperr defines the error taxonomy shared by every service and the
// structured Result handed to collaborators.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so callers can react without parsing messages.
type Kind string

const (
	KindPermissionDenied Kind = "permission_denied"
	KindNotFound         Kind = "not_found"
	KindValidation       Kind = "validation"
	KindConflict         Kind = "conflict"
	KindExpired          Kind = "expired"
	KindIntegrity        Kind = "integrity"
	KindStorage          Kind = "storage"
)

// Sentinels usable with errors.Is.
var (
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrExpired          = &Error{Kind: KindExpired}
	ErrIntegrity        = &Error{Kind: KindIntegrity}
	ErrStorage          = &Error{Kind: KindStorage}
)

// Error is the only error type returned across the service boundary.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of op or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func Denied(op string) *Error {
	return &Error{Kind: KindPermissionDenied, Op: op, Message: "permission denied"}
}

func NotFound(op, what string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: what + " not found"}
}

func Invalid(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

// InvalidFields reports per-field violations.
func InvalidFields(op string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: "invalid input", Fields: fields}
}

func Conflict(op, msg string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: msg}
}

func Expired(op, what string) *Error {
	return &Error{Kind: KindExpired, Op: op, Message: what + " expired"}
}

func Integrity(op, msg string) *Error {
	return &Error{Kind: KindIntegrity, Op: op, Message: msg}
}

// Storage wraps a backend failure. ids are rendered as key=value pairs for
// observability, e.g. Storage("add_expense", err, "user", 1, "project", 2).
func Storage(op string, err error, ids ...any) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	msg := "storage failure"
	if len(ids) > 0 {
		parts := make([]string, 0, len(ids)/2)
		for i := 0; i+1 < len(ids); i += 2 {
			parts = append(parts, fmt.Sprintf("%v=%v", ids[i], ids[i+1]))
		}
		msg += " (" + strings.Join(parts, " ") + ")"
	}
	return &Error{Kind: KindStorage, Op: op, Message: msg, Err: err}
}

// KindOf returns the kind of err, or "" when err is nil or foreign.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if err != nil {
		return KindStorage
	}
	return ""
}

// Retryable reports whether retrying the same call could succeed.
func Retryable(err error) bool {
	return KindOf(err) == KindStorage
}
