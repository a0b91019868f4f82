package draw

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStateConflict marks an operation attempted against a draw that is not
// in the state the operation requires (a duplicate trigger firing, or an
// edit after lock-in). Callers treat it as a silent idempotent no-op, never
// as a hard failure.
var ErrStateConflict = errors.New("draw state conflict")

// ErrNotFound marks a lookup for a topic with no draw.
var ErrNotFound = errors.New("draw not found")

// FieldError is a single user-correctable validation failure.
type FieldError struct {
	// Field names the offending parameter, or "base" for rule failures
	// not attributable to one field (permissions, disabled engine).
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// FieldErrors accumulates every violated validation rule for one request.
// Validation is multi-error by design: all rules are checked and reported
// together rather than failing on the first.
type FieldErrors []FieldError

// Add appends a failure for the named field.
func (e *FieldErrors) Add(field, reason string) {
	*e = append(*e, FieldError{Field: field, Reason: reason})
}

// Addf appends a formatted failure for the named field.
func (e *FieldErrors) Addf(field, format string, args ...any) {
	e.Add(field, fmt.Sprintf(format, args...))
}

// Error joins all failures into one message.
func (e FieldErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// OrNil returns the accumulated errors as an error value, or nil when
// every rule passed. FieldErrors must not be returned directly: a typed
// nil slice in an error interface is non-nil.
func (e FieldErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// AsFieldErrors extracts FieldErrors from an error chain.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
