// Package apperr defines the error taxonomy shared by every state-machine
// service. Callers branch on Kind, never on message text.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind standardizes failure semantics across aggregates.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindInvalidState      Kind = "invalid_state"
	KindValidation        Kind = "validation"
	KindDependencyFailure Kind = "dependency_failure"
)

// Error is the canonical error returned by core operations.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Kind)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Kind)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an error with an explicit kind and operation.
func New(kind Kind, op, message string, cause error) error {
	return &Error{
		Kind:    kind,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with a kind. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(kind, op, err.Error(), err)
}

func NotFound(op, format string, args ...any) error {
	return New(KindNotFound, op, fmt.Sprintf(format, args...), nil)
}

func Conflict(op, format string, args ...any) error {
	return New(KindConflict, op, fmt.Sprintf(format, args...), nil)
}

func InvalidTransition(op, format string, args ...any) error {
	return New(KindInvalidTransition, op, fmt.Sprintf(format, args...), nil)
}

func InvalidState(op, format string, args ...any) error {
	return New(KindInvalidState, op, fmt.Sprintf(format, args...), nil)
}

func Validation(op, format string, args ...any) error {
	return New(KindValidation, op, fmt.Sprintf(format, args...), nil)
}

// Dependency marks a collaborator failure (store, lock, notifier) so callers
// can apply a retry policy distinct from domain errors.
func Dependency(op string, err error) error {
	return Wrap(KindDependencyFailure, op, err)
}

// Is reports whether err (or anything it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf extracts the kind when available.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// Ensure passes err through when it already carries a kind and otherwise
// classifies it as a dependency failure.
func Ensure(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Dependency(op, err)
}
