// Package core provides the business logic for packing-list imports.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: This line item already exists
//	        Patterns: "duplicate key", "violates unique"
//
//	DB003 - Foreign key: Referenced record does not exist
//	        Patterns: "violates foreign key"
//
//	DB004 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//
//	DB005 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//
//	DB006 - Timeout: Operation timed out
//	        Patterns: "timeout"
//
//	DB007 - Deadlock: Database was busy with conflicting operations
//	        Patterns: "deadlock"
//
//	DB008 - Check constraint: A value is outside the allowed range
//	        Patterns: "violates check constraint"
//	        The quantity constraint maps to VAL004 instead.
//
// # Reference Rejections
//
// Raised by the upsert primitive when a natural key no longer resolves. They
// carry no code: matchBackendError turns them into a row message naming the
// offending value.
//
//	Unknown currency      Needles: "CURRENCY", "NOT EXIST"
//	Unknown country       Needles: "COUNTRY CODE", "NOT EXIST"
//	Unknown HS code       Needles: "HS CODE", "NOT EXIST"
//	Unknown regime        Needles: "REGIME", "NOT EXIST"
//	Unknown dossier       Needles: "FILE ID", "NOT EXIST"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - HS code missing or invalid
//	VAL002 - Description missing
//	VAL003 - Currency missing or invalid
//	VAL004 - Invalid quantity
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large         Patterns: "file too large"
//	FILE002 - Invalid workbook       Patterns: "invalid workbook"
//	FILE004 - No file                Patterns: "no file provided"
//	FILE005 - Empty file             Patterns: "empty file"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - System busy             Patterns: "too many imports"
//	IMP002 - Dossier not found       Patterns: "dossier not found"
//	IMP003 - Import aborted          Patterns: "import aborted"
//	IMP004 - Request cancelled       Patterns: "context canceled"
//	IMP005 - Request timeout         Patterns: "context deadline exceeded"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests      Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Support staff should check the
// application logs for the original technical error.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are defined
// before general ones.
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
var errorPatterns = []errorPattern{
	// =========================================================================
	// Import Errors (IMP001-IMP005)
	// Checked first: wrapped import errors may also carry a database cause.
	// =========================================================================
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "dossier not found",
		msg: UserMessage{
			Message: "The target dossier does not exist",
			Action:  "Reload the dossier and try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The import took too long and was rolled back",
			Action:  "Import fewer rows at a time",
			Code:    "IMP005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP004",
		},
	},
	{
		pattern: "import aborted",
		msg: UserMessage{
			Message: "The import was rolled back, no rows were saved",
			Action:  "Preview the file again before retrying",
			Code:    "IMP003",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB008)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "This line item already exists",
			Action:  "Enable update of existing rows or deselect it",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "This line item already exists",
			Action:  "Enable update of existing rows or deselect it",
			Code:    "DB001",
		},
	},
	{
		pattern: "colisages_quantity_positive",
		msg: UserMessage{
			Message: "Quantity must be greater than zero",
			Action:  "Check the Qty column",
			Code:    "VAL004",
		},
	},
	{
		pattern: "violates check constraint",
		msg: UserMessage{
			Message: "A value is outside the allowed range",
			Action:  "Check the numeric columns of this row",
			Code:    "DB008",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Check the reference codes of this row",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL004)
	// =========================================================================
	{
		pattern: strings.ToLower(msgHSCodeInvalid),
		msg: UserMessage{
			Message: "HS code missing or invalid",
			Action:  "Fill in a known HS code or leave it empty for unclassified goods",
			Code:    "VAL001",
		},
	},
	{
		pattern: msgDescriptionMiss,
		msg: UserMessage{
			Message: "Description is empty",
			Action:  "Describe the goods in the Descr column",
			Code:    "VAL002",
		},
	},
	{
		pattern: msgCurrencyInvalid,
		msg: UserMessage{
			Message: "Currency missing or invalid",
			Action:  "Use an ISO currency code such as XOF or EUR",
			Code:    "VAL003",
		},
	},
	{
		pattern: msgQuantityInvalid,
		msg: UserMessage{
			Message: "Quantity must be greater than zero",
			Action:  "Check the Qty column",
			Code:    "VAL004",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE005)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the packing list into smaller workbooks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid workbook",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Save the file as .xlsx and try again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a workbook to import",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Use the template and fill in at least one row",
			Code:    "FILE005",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
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
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
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
	return MapError(err).Code != defaultMessage.Code
}

// backendPattern recognises an upsert primitive rejection. All needles must
// appear in the upper-cased error text.
type backendPattern struct {
	needles []string
	format  func(p UpsertParams) string
}

// backendPatterns are checked in order; the dossier pattern is last since
// its text is the least specific.
var backendPatterns = []backendPattern{
	{
		needles: []string{"CURRENCY", "NOT EXIST"},
		format: func(p UpsertParams) string {
			return fmt.Sprintf("currency %q not found", p.Currency)
		},
	},
	{
		needles: []string{"COUNTRY CODE", "NOT EXIST"},
		format: func(p UpsertParams) string {
			return fmt.Sprintf("country %q not found", p.Country)
		},
	},
	{
		needles: []string{"HS CODE", "NOT EXIST"},
		format: func(p UpsertParams) string {
			return fmt.Sprintf("HS code %q not found", p.HSCode)
		},
	},
	{
		needles: []string{"REGIME", "NOT EXIST"},
		format: func(p UpsertParams) string {
			return fmt.Sprintf("regime %q with ratio %g%% not found", p.Regime, p.RegimeRatio)
		},
	},
	{
		needles: []string{"FILE ID", "NOT EXIST"},
		format: func(p UpsertParams) string {
			return fmt.Sprintf("dossier %d not found", p.DossierID)
		},
	},
}

// matchBackendError translates a known upsert rejection into a row message.
func matchBackendError(err error, p UpsertParams) (string, bool) {
	if err == nil {
		return "", false
	}
	text := strings.ToUpper(err.Error())
	for _, bp := range backendPatterns {
		if containsAll(text, bp.needles) {
			return bp.format(p), true
		}
	}
	return "", false
}

func containsAll(s string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(s, n) {
			return false
		}
	}
	return true
}

// IsReferenceError reports whether err is an upsert rejection for an
// unresolvable natural key.
func IsReferenceError(err error) bool {
	var re *rowError
	if errors.As(err, &re) {
		return true
	}
	_, ok := matchBackendError(err, UpsertParams{})
	return ok
}
