package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scriptgate/scriptgate/internal/models"
)

// Kind classifies a lifecycle failure for the caller.
type Kind string

const (
	// KindValidation means the input was malformed or out of range. The
	// caller must fix the request; retrying as-is will not help.
	KindValidation Kind = "validation"
	// KindNotFound means the website or token does not exist.
	KindNotFound Kind = "not_found"
	// KindInvalidState means the operation is illegal for the token's
	// current status.
	KindInvalidState Kind = "invalid_state"
	// KindConflict means a concurrent transition on the same website was
	// detected. The caller should retry the whole operation.
	KindConflict Kind = "conflict"
	// KindPersistence means the store or audit write failed. The transition
	// was rolled back in full and may be retried.
	KindPersistence Kind = "persistence"
)

// Error is a structured lifecycle failure. Field is set for validation
// errors; Err carries the underlying cause for persistence failures.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the operation unchanged.
func (e *Error) Retryable() bool {
	return e.Kind == KindConflict || e.Kind == KindPersistence
}

// KindOf extracts the failure kind from an error chain. Unclassified errors
// are treated as persistence failures.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindPersistence
}

func notFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func persistence(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

// validationFrom folds per-field violations into one error so every problem
// reaches the caller in a single round trip.
func validationFrom(errs []*models.ValidationError) *Error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return &Error{Kind: KindValidation, Field: errs[0].Field, Message: errs[0].Reason}
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return &Error{Kind: KindValidation, Field: errs[0].Field, Message: strings.Join(msgs, "; ")}
}
