// Package errors defines the typed errors returned by the storage core.
//
// Callers never compare error strings. Every type has a constructor and an
// Is* predicate built on errors.As, so wrapped errors are still classified
// correctly by the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError reports a missing row or a missing physical table.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func NewTableNotFoundError(logicalName string) *NotFoundError {
	return &NotFoundError{Resource: "table for entity " + logicalName}
}

func IsResourceNotFoundError(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// AmbiguousSchemaError is returned when more than one candidate table exists
// for an entity that has no documented preference.
type AmbiguousSchemaError struct {
	Entity  string
	Matches []string
}

func (e *AmbiguousSchemaError) Error() string {
	return fmt.Sprintf("entity %s is backed by several tables (%s) and has no preferred table", e.Entity, strings.Join(e.Matches, ", "))
}

func NewAmbiguousSchemaError(entity string, matches []string) *AmbiguousSchemaError {
	return &AmbiguousSchemaError{Entity: entity, Matches: matches}
}

func IsAmbiguousSchemaError(err error) bool {
	var e *AmbiguousSchemaError
	return errors.As(err, &e)
}

// ParseError is raised by the SQL text interpreter for any construct outside
// its grammar.
type ParseError struct {
	Construct string
	Pos       int
	Msg       string
}

func (e *ParseError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("unsupported SQL construct %s at offset %d: %s", e.Construct, e.Pos, e.Msg)
	}
	return fmt.Sprintf("unsupported SQL construct %s at offset %d", e.Construct, e.Pos)
}

func NewParseError(construct string, pos int, msg string) *ParseError {
	return &ParseError{Construct: construct, Pos: pos, Msg: msg}
}

func IsParseError(err error) bool {
	var e *ParseError
	return errors.As(err, &e)
}

// ValidationError reports caller input that is rejected before storage is touched.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Msg
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Msg)
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

func NewMissingFilterError(op string) *ValidationError {
	return &ValidationError{Msg: op + " requires at least one filter"}
}

func NewMissingFieldError(table, field string) *ValidationError {
	return &ValidationError{Field: field, Msg: "required on " + table}
}

func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// ConflictError reports a concurrent write collision, typically two writers
// claiming the same sequence number.
type ConflictError struct {
	Msg string
	Err error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conflict: %s: %v", e.Msg, e.Err)
	}
	return "conflict: " + e.Msg
}

func (e *ConflictError) Unwrap() error { return e.Err }

func NewConflictError(msg string, err error) *ConflictError {
	return &ConflictError{Msg: msg, Err: err}
}

func IsConflictError(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

// BackendUnavailableError wraps connection and transport failures.
type BackendUnavailableError struct {
	Backend string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s backend unavailable: %v", e.Backend, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

func NewBackendUnavailableError(backend string, err error) *BackendUnavailableError {
	return &BackendUnavailableError{Backend: backend, Err: err}
}

func IsBackendUnavailableError(err error) bool {
	var e *BackendUnavailableError
	return errors.As(err, &e)
}

// Kind returns a short, storage-agnostic label for err. It is what callers
// outside the core see instead of driver messages.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsResourceNotFoundError(err):
		return "not found"
	case IsValidationError(err):
		return "validation error"
	case IsParseError(err):
		return "parse error"
	case IsConflictError(err):
		return "conflict"
	case IsAmbiguousSchemaError(err):
		return "ambiguous schema"
	case IsBackendUnavailableError(err):
		return "backend unavailable"
	default:
		return "internal error"
	}
}
