// error_messages.go maps technical errors to user messages with codes.
//
// # Error Codes Reference
//
// When a user sees an error in the rule dialog they can quote its code to
// support staff. Codes are grouped by category:
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session already open: Another rule is already being edited
//	         Patterns: "session already open"
//	SES002 - Not editing: No rule is being edited
//	         Patterns: "session is not editing"
//	SES003 - Commit in progress: The rule is being saved
//	         Patterns: "commit in progress"
//	SES004 - Stale resolution: A newer selection replaced this one
//	         Patterns: "stale resolution"
//	SES005 - Session expired: Edit session not found
//	         Patterns: "edit session not found"
//	SES006 - Request cancelled
//	         Patterns: "context canceled"
//	SES007 - Request timeout
//	         Patterns: "context deadline exceeded"
//	SES008 - Commits busy: Too many rules are being saved at once
//	         Patterns: "too many concurrent commits"
//
// # Rule Type Errors (RULE001-RULE099)
//
//	RULE001 - Unknown rule type
//	          Patterns: "unknown rule type"
//	RULE002 - Type locked: The type of an existing rule cannot change
//	          Patterns: "rule type cannot change"
//	RULE003 - Order out of range: The rule position is no longer valid
//	          Patterns: "rule order out of range"
//	RULE004 - No schema field: This rule type has no schema field
//	          Patterns: "no schema field selector"
//	RULE005 - Rule changed: The edited rule was changed by another editor
//	          Patterns: "rule changed since it was opened"
//
// # Join Condition Errors (JC001-JC099)
//
//	JC001 - Duplicate mapping field: blocks the commit
//	        Patterns: "duplicate mapping table field"
//	JC002 - Index out of range
//	        Patterns: "index out of range"
//
// # Metadata Errors (MT001, SCH001-SCH002, DS001)
//
//	MT001  - Mapping table not found
//	SCH001 - Schema not found
//	SCH002 - No schema file: nothing to export
//	DS001  - Dataset not found
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Required field: "required field"
//	VAL002 - Invalid enum: "invalid enum"
//	VAL003 - Column not found: "column not found"
//	VAL004 - Column already exists: "column already exists"
//	VAL005 - Validation failed: "rule validation failed"
//
// # Notification Errors (NTF001-NTF099)
//
//	NTF001 - Buffer full: "notification buffer full"
//	NTF002 - Publish failed: "publish failed"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Unique constraint: "unique constraint"
//	DB002 - Connection refused: "connection refused"
//	DB003 - Connection reset: "connection reset"
//	DB004 - Timeout: "timeout"
//	DB005 - Deadlock: "deadlock"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Rate limited: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Support staff should check the
// application logs for the original technical error.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones. Session patterns come first because wrapped
// errors often carry a context error text as well.

package core

import (
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
// Patterns are matched using strings.Contains, so partial matches work.
// The first matching pattern wins, so order matters:
//   - More specific patterns should come before general ones
//   - Multiple patterns can map to the same error code
//
// To add a new error pattern:
//  1. Choose the appropriate category and code range
//  2. Add the pattern in the correct position (specific before general)
//  3. Update the package documentation at the top of this file
var errorPatterns = []errorPattern{
	// =========================================================================
	// Session Errors (SES001-SES008)
	// These errors occur when the dialog is driven out of order.
	// =========================================================================
	{
		pattern: "session already open",
		msg: UserMessage{
			Message: "Another rule is already being edited",
			Action:  "Finish or cancel the open rule first",
			Code:    "SES001",
		},
	},
	{
		pattern: "session is not editing",
		msg: UserMessage{
			Message: "No rule is being edited",
			Action:  "Open the rule dialog again",
			Code:    "SES002",
		},
	},
	{
		pattern: "commit in progress",
		msg: UserMessage{
			Message: "The rule is being saved",
			Action:  "Wait for the save to finish",
			Code:    "SES003",
		},
	},
	{
		pattern: "stale resolution",
		msg: UserMessage{
			Message: "A newer selection replaced this one",
			Action:  "No action needed",
			Code:    "SES004",
		},
	},
	{
		pattern: "edit session not found",
		msg: UserMessage{
			Message: "Edit session not found",
			Action:  "The dialog may have expired. Please open it again",
			Code:    "SES005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SES006",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "SES007",
		},
	},
	{
		pattern: "too many concurrent commits",
		msg: UserMessage{
			Message: "Too many rules are being saved right now",
			Action:  "Please submit again in a few seconds",
			Code:    "SES008",
		},
	},

	// =========================================================================
	// Rule Type Errors (RULE001-RULE005)
	// These errors occur when a rule type is missing or misused.
	// =========================================================================
	{
		pattern: "unknown rule type",
		msg: UserMessage{
			Message: "Unknown conformance rule type",
			Action:  "Pick one of the listed rule types",
			Code:    "RULE001",
		},
	},
	{
		pattern: "rule type cannot change",
		msg: UserMessage{
			Message: "The type of an existing rule cannot change",
			Action:  "Delete the rule and add a new one instead",
			Code:    "RULE002",
		},
	},
	{
		pattern: "rule order out of range",
		msg: UserMessage{
			Message: "The rule position is no longer valid",
			Action:  "Reload the dataset and try again",
			Code:    "RULE003",
		},
	},
	{
		pattern: "rule changed since it was opened",
		msg: UserMessage{
			Message: "Someone else changed this rule while you were editing it",
			Action:  "Cancel and open the rule again",
			Code:    "RULE005",
		},
	},
	{
		pattern: "no schema field selector",
		msg: UserMessage{
			Message: "This rule type has no schema field",
			Action:  "Type the column name instead",
			Code:    "RULE004",
		},
	},

	// =========================================================================
	// Join Condition Errors (JC001-JC002)
	// These errors occur when editing mapping join conditions.
	// =========================================================================
	{
		pattern: "duplicate mapping table field",
		msg: UserMessage{
			Message: "A mapping table field is joined more than once",
			Action:  "Remove the duplicate join condition",
			Code:    "JC001",
		},
	},
	{
		pattern: "index out of range",
		msg: UserMessage{
			Message: "The selected entry no longer exists",
			Action:  "Reload the dialog and try again",
			Code:    "JC002",
		},
	},

	// =========================================================================
	// Mapping Table and Schema Errors (MT001, SCH001-SCH002, DS001)
	// These errors occur when referenced metadata cannot be found.
	// =========================================================================
	{
		pattern: "mapping table not found",
		msg: UserMessage{
			Message: "Mapping table not found",
			Action:  "Verify the mapping table and version exist",
			Code:    "MT001",
		},
	},
	{
		pattern: "has no stored file",
		msg: UserMessage{
			Message: "This schema version has no definition file to export",
			Action:  "Only schemas created from a file can be exported",
			Code:    "SCH002",
		},
	},
	{
		pattern: "schema not found",
		msg: UserMessage{
			Message: "Schema not found",
			Action:  "Verify the schema version referenced by the dataset or mapping table exists",
			Code:    "SCH001",
		},
	},
	{
		pattern: "dataset not found",
		msg: UserMessage{
			Message: "Dataset not found",
			Action:  "Verify the dataset name and version",
			Code:    "DS001",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL005)
	// These errors occur when a draft rule does not pass validation.
	// =========================================================================
	{
		pattern: "required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Fill in every required field",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid enum",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Pick one of the allowed values",
			Code:    "VAL002",
		},
	},
	{
		pattern: "column not found",
		msg: UserMessage{
			Message: "Column not found in schema",
			Action:  "Pick a column produced by the schema or an earlier rule",
			Code:    "VAL003",
		},
	},
	{
		pattern: "column already exists",
		msg: UserMessage{
			Message: "Output column already exists",
			Action:  "Choose a new output column name",
			Code:    "VAL004",
		},
	},
	{
		pattern: "rule validation failed",
		msg: UserMessage{
			Message: "The rule has invalid fields",
			Action:  "Correct the highlighted fields",
			Code:    "VAL005",
		},
	},

	// =========================================================================
	// Notification Errors (NTF001-NTF002)
	// These errors occur when collaborators could not be told about a change.
	// =========================================================================
	{
		pattern: "notification buffer full",
		msg: UserMessage{
			Message: "Change notification was dropped",
			Action:  "Other editors may need to reload",
			Code:    "NTF001",
		},
	},
	{
		pattern: "publish failed",
		msg: UserMessage{
			Message: "Change notification could not be delivered",
			Action:  "Other editors may need to reload",
			Code:    "NTF002",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB005)
	// These errors occur when persisting the conformance list.
	// =========================================================================
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Reload the dataset and try again",
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
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB004",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// These errors occur when request limits are exceeded.
	// =========================================================================
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
// This is the fallback for unexpected errors. Support staff should check
// application logs for the original technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	err := fmt.Errorf("resolve: %w", ErrMappingTableNotFound)
//	msg := MapError(err)
//	// msg.Code == "MT001"
//	// msg.Message == "Mapping table not found"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
//
// Example output: "Another rule is already being edited (Code: SES001). Finish or cancel the open rule first"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
