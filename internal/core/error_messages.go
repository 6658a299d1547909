package core

// error_messages.go maps errors to user-friendly messages with codes for
// support reference. The web layer logs the technical error and returns the
// mapped message.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Parse failure: the file could not be read as CSV or Excel
//	FILE002 - Empty file: the file decoded to zero data rows
//	FILE003 - Missing sheet: the workbook has no Quarterly sheet
//	FILE004 - Unsupported format: export format is not csv or xlsx
//
// # Shape Errors (VAL001-VAL099)
//
//	VAL001 - Missing index: no Mnemonic column
//	VAL002 - No time columns: no column labelled like 2022.1
//	VAL003 - Invalid date: a date value or bound could not be parsed
//	VAL004 - Invalid transform: mode is not raw, monthly_change or quarterly_change
//	VAL005 - Invalid request: the request body is malformed or incomplete
//
// # Data Errors (DATA001-DATA099)
//
//	DATA001 - Not found: the dataset or input file id is unknown
//	DATA002 - Unknown series: series name is not in the sheet
//	DATA003 - Unknown label: label is not one of the sheet's time columns
//	DATA004 - Unknown column: column is not in the dataset
//	DATA005 - No row for date: no dataset row carries the edit date
//	DATA006 - Plot selection: zero files or more than the allowed number
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy: too many uploads being parsed
//	UPL002 - Request cancelled
//	UPL003 - Request timeout
//
// # Default Error (ERR000)
//
// Fallback when nothing matches; check the logs for the technical error.

import (
	"context"
	"errors"
	"fmt"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorMapping struct {
	target error
	msg    UserMessage
}

// errorMappings is checked in order with errors.Is; the first match wins.
var errorMappings = []errorMapping{
	{ErrParse, UserMessage{
		Message: "The file could not be read",
		Action:  "Upload a comma-separated .csv or an .xlsx workbook",
		Code:    "FILE001",
	}},
	{ErrEmptyInput, UserMessage{
		Message: "Uploaded file contains no data",
		Action:  "Upload a file with a header row and at least one data row",
		Code:    "FILE002",
	}},
	{ErrNoSheets, UserMessage{
		Message: "The workbook has no Quarterly sheet",
		Action:  "Rename the data sheet to Quarterly",
		Code:    "FILE003",
	}},
	{ErrInvalidFormat, UserMessage{
		Message: "Unsupported export format",
		Action:  "Use format=csv or format=xlsx",
		Code:    "FILE004",
	}},
	{ErrMissingIndex, UserMessage{
		Message: "Input file must include a Mnemonic column",
		Action:  "Add a Mnemonic column naming each series",
		Code:    "VAL001",
	}},
	{ErrNoTimeColumns, UserMessage{
		Message: "No time columns were found",
		Action:  "Label period columns as year.period, for example 2022.1",
		Code:    "VAL002",
	}},
	{ErrInvalidDate, UserMessage{
		Message: "A date could not be parsed",
		Action:  "Use YYYY-MM-DD",
		Code:    "VAL003",
	}},
	{ErrInvalidTransform, UserMessage{
		Message: "Unknown transform",
		Action:  "Use raw, monthly_change or quarterly_change",
		Code:    "VAL004",
	}},
	{ErrInvalidRequest, UserMessage{
		Message: "The request is malformed",
		Action:  "Check the request body against the API fields",
		Code:    "VAL005",
	}},
	{ErrNotFound, UserMessage{
		Message: "The requested item was not found",
		Action:  "Refresh the list and try again",
		Code:    "DATA001",
	}},
	{ErrUnknownSeries, UserMessage{
		Message: "Unknown series name",
		Action:  "Pick a series listed for this file",
		Code:    "DATA002",
	}},
	{ErrUnknownLabel, UserMessage{
		Message: "Unknown label",
		Action:  "Pick a period column listed for this file",
		Code:    "DATA003",
	}},
	{ErrUnknownColumn, UserMessage{
		Message: "Unknown column",
		Action:  "Pick a column listed for this dataset",
		Code:    "DATA004",
	}},
	{ErrNoRowForDate, UserMessage{
		Message: "No row found for the given date",
		Action:  "Edit a date that appears in the dataset",
		Code:    "DATA005",
	}},
	{ErrNoFiles, UserMessage{
		Message: "Select at least one file to plot",
		Action:  "Choose one or more input files",
		Code:    "DATA006",
	}},
	{ErrTooManyFiles, UserMessage{
		Message: "Too many files selected",
		Action:  "Deselect files until the limit is met",
		Code:    "DATA006",
	}},
	{ErrTooManyUploads, UserMessage{
		Message: "The system is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL001",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL002",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "UPL003",
	}},
}

// defaultMessage is returned when no mapping matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message.
// Returns an empty UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
