package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownKind       = errors.New("unknown import kind")
	ErrSessionNotFound   = errors.New("import session not found")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrImportInProgress  = errors.New("import already in progress")
	ErrTooManyImports    = errors.New("too many imports in progress")
	ErrImportCancelled   = errors.New("import cancelled")
	ErrPresetNotFound    = errors.New("mapping preset not found")
	ErrPresetsDisabled   = errors.New("mapping presets are not configured")
	ErrPresetExists      = errors.New("duplicate key: mapping preset already exists")
	ErrNoFile            = errors.New("no file provided")
	ErrMappingMismatch   = errors.New("mapping mismatch")
	ErrUnknownField      = errors.New("unknown target field")
)

// ParseError means the uploaded file could not be turned into a table.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Reason
}

// MissingRequiredFieldsError lists labels of required fields that no column maps to.
type MissingRequiredFieldsError struct {
	Labels []string
}

func (e *MissingRequiredFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Labels, ", ")
}

// BatchSubmissionFailure wraps a transport-level failure of one batch.
// Batch is 1-based.
type BatchSubmissionFailure struct {
	Batch int
	Rows  int
	Err   error
}

func (e *BatchSubmissionFailure) Error() string {
	return fmt.Sprintf("Batch %d: %v", e.Batch, e.Err)
}

func (e *BatchSubmissionFailure) Unwrap() error {
	return e.Err
}

// TransitionError reports a session operation attempted in the wrong state.
type TransitionError struct {
	Op    string
	State SessionState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while session is in %s state", e.Op, e.State)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
