// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Error codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
// Errors related to reading uploaded spreadsheets:
//
//	FILE001 - Unreadable file: The spreadsheet could not be read
//	          Action: Check the file opens in a spreadsheet tool and re-save it as .xlsx or .csv
//	          Patterns: "unreadable file"
//
//	FILE002 - Unsupported type: Only .xlsx, .xls and .csv files are accepted
//	          Action: Save the file as .xlsx or .csv
//	          Patterns: "unsupported file type"
//
//	FILE003 - File too large: File exceeds the upload size limit
//	          Action: Split the file into smaller files
//	          Patterns: "file too large", "request body too large"
//
//	FILE004 - No header row: The first sheet has no header row
//	          Action: Put column headers in the first row of the first sheet
//	          Patterns: "no header row"
//
//	FILE005 - No file: No file was selected
//	          Action: Please select one or more spreadsheets to upload
//	          Patterns: "no files provided"
//
//	FILE006 - Too many files: Too many files in one upload
//	          Action: Upload fewer files at a time
//	          Patterns: "too many files"
//
// # Assistant Errors (LLM001-LLM099)
//
// Errors related to the completion service used for translation and repair:
//
//	LLM001 - Translation unusable: The header translation could not be understood
//	         Action: Try again; if it keeps failing rename headers to English field names
//	         Patterns: "header translation parse"
//
//	LLM002 - Repair unusable: The suggested fix could not be understood
//	         Action: Try again or fix the record manually
//	         Patterns: "record repair parse"
//
//	LLM003 - Assistant unavailable: The completion service could not be reached
//	         Action: Please try again in a few moments
//	         Patterns: "assistant unavailable"
//
//	LLM004 - Assistant not configured: No API key is configured
//	         Action: Set ASSISTANT_API_KEY and restart
//	         Patterns: "api key not configured"
//
// # Ledger Errors (LED001-LED099)
//
// Errors related to the consolidated and exception collections:
//
//	LED001 - Stale index: The exception no longer exists
//	         Action: Refresh the exception list and try again
//	         Patterns: "exception index out of range"
//
//	LED002 - Pipeline busy: Another operation is running
//	         Action: Please wait for the current operation to finish
//	         Patterns: "pipeline busy"
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - No data: There is nothing to export
//	         Action: Process files first
//	         Patterns: "no data to export"
//
// # Storage Errors (DB001-DB099)
//
// Errors from the optional fix-history store:
//
//	DB001 - Connection refused: Unable to connect to database
//	        Action: Fixes are still applied; check DATABASE_URL
//	        Patterns: "connection refused"
//
//	DB002 - Store write failed: The fix could not be saved to history
//	        Action: Fixes are still applied; check the database logs
//	        Patterns: "fix history store"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - Request cancelled: Request was cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
//	UPL002 - Request timeout: Request timed out
//	         Action: Try fewer files at once or check your connection
//	         Patterns: "context deadline exceeded"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones. Wrapped errors carry their cause's text, so an
// "assistant unavailable: context deadline exceeded" maps to LLM003, not UPL002.
//
// # For Support Staff
//
// When a user reports an error code:
//  1. Look up the code in this reference
//  2. Check the associated patterns to understand what triggered it
//  3. Review the suggested action to guide the user
//  4. If ERR000, check application logs for the original technical error

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
	// Assistant Errors (LLM001-LLM004)
	// Checked first: their causes often carry transport or context text.
	// =========================================================================
	{
		pattern: "header translation parse",
		msg: UserMessage{
			Message: "The header translation could not be understood",
			Action:  "Try again; if it keeps failing rename headers to English field names",
			Code:    "LLM001",
		},
	},
	{
		pattern: "record repair parse",
		msg: UserMessage{
			Message: "The suggested fix could not be understood",
			Action:  "Try again or fix the record manually",
			Code:    "LLM002",
		},
	},
	{
		pattern: "api key not configured",
		msg: UserMessage{
			Message: "The assistant is not configured",
			Action:  "Set ASSISTANT_API_KEY and restart",
			Code:    "LLM004",
		},
	},
	{
		pattern: "assistant unavailable",
		msg: UserMessage{
			Message: "The completion service could not be reached",
			Action:  "Please try again in a few moments",
			Code:    "LLM003",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE006)
	// =========================================================================
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Only .xlsx, .xls and .csv files are accepted",
			Action:  "Save the file as .xlsx or .csv",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no header row",
		msg: UserMessage{
			Message: "The first sheet has no header row",
			Action:  "Put column headers in the first row of the first sheet",
			Code:    "FILE004",
		},
	},
	{
		pattern: "unreadable file",
		msg: UserMessage{
			Message: "The spreadsheet could not be read",
			Action:  "Check the file opens in a spreadsheet tool and re-save it as .xlsx or .csv",
			Code:    "FILE001",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the upload size limit",
			Action:  "Split the file into smaller files",
			Code:    "FILE003",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the upload size limit",
			Action:  "Split the file into smaller files",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no files provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select one or more spreadsheets to upload",
			Code:    "FILE005",
		},
	},
	{
		pattern: "too many files",
		msg: UserMessage{
			Message: "Too many files in one upload",
			Action:  "Upload fewer files at a time",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Ledger Errors (LED001-LED002)
	// =========================================================================
	{
		pattern: "exception index out of range",
		msg: UserMessage{
			Message: "The exception no longer exists",
			Action:  "Refresh the exception list and try again",
			Code:    "LED001",
		},
	},
	{
		pattern: "pipeline busy",
		msg: UserMessage{
			Message: "Another operation is running",
			Action:  "Please wait for the current operation to finish",
			Code:    "LED002",
		},
	},

	// =========================================================================
	// Export Errors (EXP001)
	// =========================================================================
	{
		pattern: "no data to export",
		msg: UserMessage{
			Message: "There is nothing to export",
			Action:  "Process files first",
			Code:    "EXP001",
		},
	},

	// =========================================================================
	// Storage Errors (DB001-DB002)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Fixes are still applied; check DATABASE_URL",
			Code:    "DB001",
		},
	},
	{
		pattern: "fix history store",
		msg: UserMessage{
			Message: "The fix could not be saved to history",
			Action:  "Fixes are still applied; check the database logs",
			Code:    "DB002",
		},
	},

	// =========================================================================
	// Upload Errors (UPL001-UPL002)
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try fewer files at once or check your connection",
			Code:    "UPL002",
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
//	msg := MapError(ErrNoData)
//	// msg.Code == "EXP001"
//	// msg.Message == "There is nothing to export"
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
// Example output: "There is nothing to export (Code: EXP001). Process files first"
//
// This is the primary function for displaying errors to end users.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
// Use this to decide whether to show the raw error or the mapped user message.
//
// Example:
//
//	if IsUserFacing(err) {
//	    showToUser(FormatUserError(err))
//	} else {
//	    log.Error(err) // Log technical error
//	    showToUser("An error occurred. Please try again.")
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// WrapWithUserMessage wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
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

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// The returned UserError preserves the original technical error for logging via Unwrap(),
// while providing a clean user message via Error().
//
// Returns nil if err is nil.
//
// Example:
//
//	ue := NewUserError(err)
//	log.Error(ue.Technical)          // Log original error
//	fmt.Println(ue.Error())           // Show "The exception no longer exists"
//	fmt.Println(ue.User.Code)         // Show "LED001"
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
