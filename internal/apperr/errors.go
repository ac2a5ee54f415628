// Package apperr holds the error taxonomy shared by the services. Messages are
// operator-facing (Spanish); causes of persistence failures are never exposed
// through Error() and must be logged by whoever produces them.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError: missing or malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ReferentialIntegrityError: a delete is blocked by dependent rows.
type ReferentialIntegrityError struct {
	Entity  string // what was being deleted
	Blocker string // dependent table
	Count   int64
	Message string
}

func (e *ReferentialIntegrityError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("No se puede borrar %s: tiene %d %s asociados.", e.Entity, e.Count, e.Blocker)
}

// NotFoundError: the addressed row does not exist.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s #%d no encontrado", e.Entity, e.ID)
}

func NotFound(entity string, id uint) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// PersistenceError wraps a store failure. Error() returns only the generic
// operator message; Unwrap exposes the cause for logging.
type PersistenceError struct {
	Op      string
	Message string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Error interno, intente nuevamente"
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func Persistence(op, message string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Message: message, Err: err}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsReferentialIntegrity(err error) bool {
	var ri *ReferentialIntegrityError
	return errors.As(err, &ri)
}
