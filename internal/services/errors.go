package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrorKind classifies domain failures. The HTTP layer maps each kind to a status code.
type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not_found"
	KindInvalidState    ErrorKind = "invalid_state"
	KindInvalidSource   ErrorKind = "invalid_source"
	KindInvalidTarget   ErrorKind = "invalid_target"
	KindSelfAction      ErrorKind = "self_action"
	KindConflict        ErrorKind = "conflict"
	KindValidation      ErrorKind = "validation"
)

// Error is a typed domain failure. Fields carries per-field messages for KindValidation.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+" "+msg)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(parts, ", "))
}

// Is lets errors.Is match on kind, e.g. errors.Is(err, &Error{Kind: KindConflict}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func ErrUnauthenticated() *Error {
	return newError(KindUnauthenticated, "authentication required")
}

func ErrForbidden(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

func ErrNotFound(entity string) *Error {
	return newError(KindNotFound, "%s not found", entity)
}

func ErrInvalidState(format string, args ...any) *Error {
	return newError(KindInvalidState, format, args...)
}

func ErrInvalidSource(format string, args ...any) *Error {
	return newError(KindInvalidSource, format, args...)
}

func ErrInvalidTarget(format string, args ...any) *Error {
	return newError(KindInvalidTarget, format, args...)
}

func ErrSelfAction(format string, args ...any) *Error {
	return newError(KindSelfAction, format, args...)
}

func ErrConflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

// ValidationErrors collects field errors before failing.
type ValidationErrors map[string]string

func (v ValidationErrors) Add(field, msg string) {
	if _, exists := v[field]; !exists {
		v[field] = msg
	}
}

// Err returns nil when nothing was collected.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, Message: "invalid input", Fields: v}
}

// KindOf returns the domain kind of err, or "" for unexpected failures.
func KindOf(err error) ErrorKind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return ""
}

// isUniqueViolation detects a unique constraint failure from either driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
