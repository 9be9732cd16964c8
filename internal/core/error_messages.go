// Package core provides the business logic for mapped file imports.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum upload size
//	          Patterns: "file too large", "request body too large"
//	FILE002 - Unreadable file: File could not be read as a table
//	          Patterns: "parse error"
//	FILE003 - Encoding error: File contains invalid characters
//	          Patterns: "encoding error"
//	FILE004 - No file: No file was selected
//	          Patterns: "no file provided"
//	FILE005 - Empty file: The uploaded file is empty
//	          Patterns: "empty file"
//	FILE006 - Unsupported format: Legacy or unknown spreadsheet format
//	          Patterns: "unsupported file format"
//
// # Mapping Errors (MAP001-MAP099)
//
//	MAP001 - Required fields not mapped (message lists the field labels)
//	MAP002 - Mapping does not match the file columns
//	         Patterns: "mapping mismatch"
//	MAP003 - Unknown target field
//	         Patterns: "unknown target field"
//	MAP004 - Unknown import kind
//	         Patterns: "unknown import kind"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Import cancelled             Patterns: "import cancelled"
//	IMP002 - System busy                  Patterns: "too many imports"
//	IMP003 - Session expired              Patterns: "import session not found"
//	IMP004 - Wrong step                   Patterns: "invalid session transition", "cannot "
//	IMP005 - Import already running       Patterns: "import already in progress"
//	IMP006 - Preset not found             Patterns: "mapping preset not found"
//	IMP007 - Request cancelled            Patterns: "context canceled"
//	IMP008 - Request timed out            Patterns: "context deadline exceeded"
//	IMP009 - Presets unavailable          Patterns: "presets are not configured"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate preset name         Patterns: "duplicate key", "unique constraint"
//	DB002 - Connection refused            Patterns: "connection refused"
//	DB003 - Timeout                       Patterns: "timeout"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests           Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: check application logs for the technical error.
//
// # Pattern Matching
//
// Typed errors are checked first with errors.As. Remaining errors are matched
// case-insensitively using strings.Contains; the first matching pattern wins,
// so more specific patterns come before general ones.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Order matters: specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header row and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "This file format is not supported",
			Action:  "Save the file as CSV or XLSX and upload again",
			Code:    "FILE006",
		},
	},
	{
		pattern: "parse error",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Ensure the file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},

	// Mapping errors
	{
		pattern: "mapping mismatch",
		msg: UserMessage{
			Message: "The mapping does not match the file columns",
			Action:  "Reload the session and map every column again",
			Code:    "MAP002",
		},
	},
	{
		pattern: "unknown target field",
		msg: UserMessage{
			Message: "A column is mapped to a field that does not exist",
			Action:  "Pick a field from the list or skip the column",
			Code:    "MAP003",
		},
	},
	{
		pattern: "unknown import kind",
		msg: UserMessage{
			Message: "This import type is not supported",
			Action:  "Choose contacts, products, invoices or expenses",
			Code:    "MAP004",
		},
	},

	// Import errors
	{
		pattern: "import cancelled",
		msg: UserMessage{
			Message: "Import was cancelled",
			Action:  "Start a new import when ready",
			Code:    "IMP001",
		},
	},
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import session not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The session may have expired. Please upload the file again",
			Code:    "IMP003",
		},
	},
	{
		pattern: "import already in progress",
		msg: UserMessage{
			Message: "This import is already running",
			Action:  "Wait for the current import to finish",
			Code:    "IMP005",
		},
	},
	{
		pattern: "invalid session transition",
		msg: UserMessage{
			Message: "This step is not available right now",
			Action:  "Refresh the session to see its current step",
			Code:    "IMP004",
		},
	},
	{
		pattern: "mapping preset not found",
		msg: UserMessage{
			Message: "Mapping preset not found",
			Action:  "Choose another preset or map the columns manually",
			Code:    "IMP006",
		},
	},
	{
		pattern: "presets are not configured",
		msg: UserMessage{
			Message: "Saved mappings are not available on this server",
			Action:  "Map the columns manually",
			Code:    "IMP009",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP007",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "IMP008",
		},
	},

	// Database errors
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A preset with this name already exists",
			Action:  "Choose a different name",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "A preset with this name already exists",
			Action:  "Choose a different name",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB003",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	err := &MissingRequiredFieldsError{Labels: []string{"Contact Name"}}
//	msg := MapError(err)
//	// msg.Code == "MAP001"
//	// msg.Message == "Required fields are not mapped: Contact Name"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var missing *MissingRequiredFieldsError
	if errors.As(err, &missing) {
		return UserMessage{
			Message: "Required fields are not mapped: " + strings.Join(missing.Labels, ", "),
			Action:  "Map a column to each required field before continuing",
			Code:    "MAP001",
		}
	}

	errStr := strings.ToLower(err.Error())

	// TransitionError text does not carry the sentinel wording.
	if errors.Is(err, ErrInvalidTransition) {
		errStr = strings.ToLower(ErrInvalidTransition.Error())
	}

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-friendly message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
