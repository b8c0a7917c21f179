package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by the engine. Callers match them with errors.Is.
var (
	ErrValidation           = errors.New("invalid form definition")
	ErrFormNotFound         = errors.New("form not found")
	ErrFormFrozen           = errors.New("form is frozen")
	ErrFormClosed           = errors.New("form is closed")
	ErrForbiddenRole        = errors.New("role may not submit this form")
	ErrUnitMismatch         = errors.New("evaluator is not assigned to unit")
	ErrDuplicateSubmission  = errors.New("duplicate submission")
	ErrIncompleteSubmission = errors.New("incomplete submission")
	ErrInvalidAnswer        = errors.New("invalid answer")
	ErrNoScore              = errors.New("no scorable answers")
	ErrSubmissionNotFound   = errors.New("submission not found")
	ErrForbidden            = errors.New("administrator capability required")
	ErrStorageUnavailable   = errors.New("storage unavailable")
)

// FieldError names one offending part of a form definition.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists everything wrong with a form definition.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add appends a field failure.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// OrNil returns the error only when at least one field failed.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IncompleteSubmissionError names the required questions left unanswered.
type IncompleteSubmissionError struct {
	Missing []string
}

func (e *IncompleteSubmissionError) Error() string {
	return fmt.Sprintf("%s: missing answers for %s", ErrIncompleteSubmission, strings.Join(e.Missing, ", "))
}

func (e *IncompleteSubmissionError) Unwrap() error { return ErrIncompleteSubmission }

// InvalidAnswerError names the question whose answer does not fit its type.
type InvalidAnswerError struct {
	QuestionID string
	Reason     string
}

func (e *InvalidAnswerError) Error() string {
	return fmt.Sprintf("%s for question %s: %s", ErrInvalidAnswer, e.QuestionID, e.Reason)
}

func (e *InvalidAnswerError) Unwrap() error { return ErrInvalidAnswer }

// StorageError wraps a backend failure so it matches ErrStorageUnavailable.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
