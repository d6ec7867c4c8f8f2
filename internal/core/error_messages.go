package core

// error_messages.go maps technical errors and row reasons to operator-facing
// messages with a stable code that can be quoted in a support request.
//
// # Configuration (CFG001-CFG099)
//
//	CFG001 - Unknown entity             "unknown entity"
//	CFG002 - Empty lookup table         "lookup" + "is empty"
//	CFG003 - Invalid rule set           "configuration error"
//
// # Extraction (EXT001-EXT099)
//
//	EXT001 - Source unreadable          "extraction failed"
//	EXT002 - Spreadsheet API failure    "googleapi"
//
// # Files (FILE001-FILE099)
//
//	FILE001 - File too large            "file too large", "request body too large"
//	FILE002 - No file                   "no file provided"
//	FILE003 - Unsupported type          "unsupported file type"
//
// # Row validation (VAL001-VAL099)
//
//	VAL001 - Missing value              "missing "
//	VAL002 - Bad email                  "invalid email format"
//	VAL003 - Not a number               "is not a number"
//	VAL004 - Out of range               "(must be"
//	VAL005 - Unknown reference          "unknown "
//	VAL006 - Bad date                   " date:"
//	VAL007 - Bad code                   " format:"
//
// # Store (STO001-STO099)
//
//	STO001 - Dangling reference         "foreign key constraint", "violates foreign key"
//	STO002 - Referenced row missing     "not found in store"
//	STO003 - Unique violation           "duplicate key", "unique constraint"
//	STO004 - Store unreachable          "connection refused", "connection reset"
//	STO005 - Busy                       "deadlock", "database is locked"
//
// # Runs (RUN001-RUN099)
//
//	RUN001 - Busy                       "too many concurrent runs"
//	RUN002 - Cancelled                  "context canceled"
//	RUN003 - Timed out                  "context deadline exceeded", "timeout"
//	RUN004 - Unknown run                "run not found"
//	RUN005 - Malformed run id           "invalid run id"
//
// ERR000 is the fallback. Patterns are matched case-insensitively with
// strings.Contains and the first match wins, so specific patterns come first.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	also    string // optional second substring that must be present too
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Configuration
	{pattern: "unknown entity", msg: UserMessage{
		Message: "Unknown entity type",
		Action:  "Use one of the entities listed by `etl entities`",
		Code:    "CFG001",
	}},
	{pattern: "lookup", also: "is empty", msg: UserMessage{
		Message: "A reference lookup table is empty",
		Action:  "Seed the department table or fix the rule set before running",
		Code:    "CFG002",
	}},
	{pattern: "configuration error", msg: UserMessage{
		Message: "The rule set or lookup configuration is invalid",
		Action:  "Fix the rule set file and run again",
		Code:    "CFG003",
	}},

	// Files
	{pattern: "file too large", msg: UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{pattern: "request body too large", msg: UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{pattern: "no file provided", msg: UserMessage{
		Message: "No file was selected",
		Action:  "Attach a CSV or XLSX file",
		Code:    "FILE002",
	}},
	{pattern: "unsupported file type", msg: UserMessage{
		Message: "File type is not supported",
		Action:  "Upload a .csv or .xlsx file",
		Code:    "FILE003",
	}},

	// Extraction
	{pattern: "googleapi", msg: UserMessage{
		Message: "The spreadsheet service refused the request",
		Action:  "Check the spreadsheet id, range and sharing settings",
		Code:    "EXT002",
	}},
	{pattern: "extraction failed", msg: UserMessage{
		Message: "The source could not be read",
		Action:  "Check that the file exists and is a valid CSV or workbook",
		Code:    "EXT001",
	}},

	// Runs
	{pattern: "too many concurrent runs", msg: UserMessage{
		Message: "System is busy processing other runs",
		Action:  "Please wait a moment and try again",
		Code:    "RUN001",
	}},
	{pattern: "invalid run id", msg: UserMessage{
		Message: "Run id is malformed",
		Action:  "Use the run_id from a report or from `etl runs`",
		Code:    "RUN005",
	}},
	{pattern: "run not found", msg: UserMessage{
		Message: "Run not found",
		Action:  "Check the run id; old runs are purged after the retention period",
		Code:    "RUN004",
	}},

	// Store
	{pattern: "foreign key constraint", msg: UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Load the referenced department, student or course first",
		Code:    "STO001",
	}},
	{pattern: "violates foreign key", msg: UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Load the referenced department, student or course first",
		Code:    "STO001",
	}},
	{pattern: "not found in store", msg: UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Load students and courses before enrollments",
		Code:    "STO002",
	}},
	{pattern: "duplicate key", msg: UserMessage{
		Message: "A record with this key already exists",
		Action:  "No action needed if the data is unchanged",
		Code:    "STO003",
	}},
	{pattern: "unique constraint", msg: UserMessage{
		Message: "A record with this key already exists",
		Action:  "No action needed if the data is unchanged",
		Code:    "STO003",
	}},
	{pattern: "connection refused", msg: UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "STO004",
	}},
	{pattern: "connection reset", msg: UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "STO004",
	}},
	{pattern: "deadlock", msg: UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "STO005",
	}},
	{pattern: "database is locked", msg: UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "STO005",
	}},

	// Cancellation and timeouts
	{pattern: "context canceled", msg: UserMessage{
		Message: "Run was cancelled",
		Action:  "Re-run the same input; loaded rows are skipped",
		Code:    "RUN002",
	}},
	{pattern: "context deadline exceeded", msg: UserMessage{
		Message: "Run timed out",
		Action:  "Re-run the same input; loaded rows are skipped",
		Code:    "RUN003",
	}},
	{pattern: "timeout", msg: UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "RUN003",
	}},

	// Row validation reasons
	{pattern: "invalid email format", msg: UserMessage{
		Message: "Email address is malformed",
		Action:  "Use the form name@domain.tld",
		Code:    "VAL002",
	}},
	{pattern: "is not a number", msg: UserMessage{
		Message: "Expected a whole number",
		Action:  "Remove text from numeric columns",
		Code:    "VAL003",
	}},
	{pattern: "(must be", msg: UserMessage{
		Message: "Value is outside the allowed range",
		Action:  "Check the allowed values for this field",
		Code:    "VAL004",
	}},
	{pattern: " date:", msg: UserMessage{
		Message: "Invalid date format",
		Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
		Code:    "VAL006",
	}},
	{pattern: " format:", msg: UserMessage{
		Message: "Value has an invalid format",
		Action:  "Use letters, digits, spaces, dots, dashes or underscores",
		Code:    "VAL007",
	}},
	{pattern: "unknown ", msg: UserMessage{
		Message: "Referenced value is not known",
		Action:  "Check the reference against the lookup table",
		Code:    "VAL005",
	}},
	{pattern: "missing ", msg: UserMessage{
		Message: "Required field is empty",
		Action:  "Fill in every required column",
		Code:    "VAL001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the server logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Returns an
// empty UserMessage for nil and the ERR000 fallback when nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	return MapReason(err.Error())
}

// MapReason classifies a reason string from a run report.
func MapReason(reason string) UserMessage {
	s := strings.ToLower(reason)
	for _, ep := range errorPatterns {
		if strings.Contains(s, ep.pattern) && (ep.also == "" || strings.Contains(s, ep.also)) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched a specific pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
