// Package apperr defines the error taxonomy shared by the board engine.
//
// Every error returned by a mutation is either a domain error (caller input
// problem, safe to surface as 4xx) or a storage-unavailable condition
// (transient, safe to retry). Match kinds with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrMissingDependency  = errors.New("dependency not found")
	ErrCircularDependency = errors.New("circular dependency")
	ErrInvalidProgress    = errors.New("invalid progress")
	ErrValidation         = errors.New("validation failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvariantViolation = errors.New("invariant violation")
)

// Error carries the kind of failure plus the entity and ids involved.
type Error struct {
	Kind   error
	Entity string
	IDs    []string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Is lets a missing dependency also match ErrNotFound.
func (e *Error) Is(target error) bool {
	return e.Kind == ErrMissingDependency && target == ErrNotFound
}

// NotFound reports a missing board, list or card.
func NotFound(entity string, ids ...string) error {
	return &Error{
		Kind:   ErrNotFound,
		Entity: entity,
		IDs:    ids,
		Msg:    fmt.Sprintf("%s %s", entity, strings.Join(ids, ", ")),
	}
}

// MissingDependency reports proposed dependency ids that do not resolve.
func MissingDependency(ids []string) error {
	return &Error{
		Kind:   ErrMissingDependency,
		Entity: "card",
		IDs:    ids,
		Msg:    strings.Join(ids, ", "),
	}
}

// CircularDependency reports a cycle; path starts and ends at the candidate.
func CircularDependency(path []string) error {
	msg := "cycle"
	if len(path) > 0 {
		msg = strings.Join(path, " -> ")
	}
	return &Error{
		Kind:   ErrCircularDependency,
		Entity: "card",
		IDs:    path,
		Msg:    msg,
	}
}

// InvalidProgress reports a progress value that is out of range or lower
// than the stored one.
func InvalidProgress(cardID string, current, next int) error {
	return &Error{
		Kind:   ErrInvalidProgress,
		Entity: "card",
		IDs:    []string{cardID},
		Msg:    fmt.Sprintf("card %s: progress %d -> %d", cardID, current, next),
	}
}

// Validationf reports malformed input.
func Validationf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// Invariantf reports a broken stored invariant.
func Invariantf(format string, args ...any) error {
	return &Error{Kind: ErrInvariantViolation, Msg: fmt.Sprintf(format, args...)}
}

// Unavailable wraps an infrastructure failure. Wrapping an error that is
// already unavailable returns it unchanged.
func Unavailable(op string, err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return &Error{Kind: ErrStorageUnavailable, Msg: op, Err: err}
}

// IsDomain reports whether err is caused by caller input rather than by
// infrastructure or a broken invariant.
func IsDomain(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrCircularDependency, ErrInvalidProgress, ErrValidation} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IDs returns the ids attached to err, if any.
func IDs(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.IDs
	}
	return nil
}
