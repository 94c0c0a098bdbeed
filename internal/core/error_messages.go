package core

// error_messages.go maps errors to messages safe to show API clients.
//
// # Error codes
//
//	FILE001  file too large             split the file or raise the limit
//	FILE002  unsupported file type      upload .csv, .xlsx or .xlsm
//	FILE003  unparseable file           re-export the sheet
//	FILE004  no file provided           attach a file
//	FILE005  empty file                 the file has no data rows
//	SES001   exam session not found     check the session id
//	TSK002   too many tasks running     retry shortly
//	TSK003   task not found             the task expired or never existed
//	RES001   result not found           check the result id
//	VAL001   missing national id        fill the NNI column
//	VAL002   national id too short      check the NNI column
//	VAL003   missing candidate name     fill a name column
//	VAL004   missing decision           fill the decision or score column
//	VAL005   invalid request parameter  fix the query string
//	VAL006   invalid score              fix the score column
//	DB001    duplicate key              a result already exists for this key
//	DB002    foreign key                reference data is missing
//	DB003    connection failure         retry shortly
//	DB004    timeout or deadlock        retry shortly
//	RATE001  rate limited               slow down
//	ERR000   anything else              see server logs
//
// Sentinel errors are matched with errors.Is first. Driver errors carry no
// sentinel and are matched by lower-cased substring, first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// ErrInvalidParameter marks a malformed request parameter.
var ErrInvalidParameter = errors.New("invalid request parameter")

var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrFileTooLarge, UserMessage{"File exceeds the maximum upload size", "Split the file into smaller files", "FILE001"}},
	{ErrUnsupportedFile, UserMessage{"File type is not supported", "Upload a .csv, .xlsx or .xlsm file", "FILE002"}},
	{ErrUnparseableFile, UserMessage{"File could not be read", "Re-export the sheet and upload it again", "FILE003"}},
	{ErrNoFile, UserMessage{"No file was provided", "Attach the results file to the request", "FILE004"}},
	{ErrEmptyFile, UserMessage{"The uploaded file is empty", "Upload a file with a header row and data rows", "FILE005"}},
	{ErrSessionNotFound, UserMessage{"Exam session not found", "Check the session id", "SES001"}},
	{ErrTooManyTasks, UserMessage{"Too many imports are running", "Please wait a moment and try again", "TSK002"}},
	{ErrTaskNotFound, UserMessage{"Import task not found", "The task may have expired. Start a new import", "TSK003"}},
	{ErrResultNotFound, UserMessage{"Result not found", "Check the result id", "RES001"}},
	{ErrMissingNationalID, UserMessage{"National id is missing", "Fill the NNI column", "VAL001"}},
	{ErrNationalIDTooShort, UserMessage{"National id is too short", "Check the NNI column", "VAL002"}},
	{ErrMissingName, UserMessage{"Candidate name is missing", "Fill the French or Arabic name column", "VAL003"}},
	{ErrMissingDecision, UserMessage{"Decision is missing", "Fill the decision column or the score it is computed from", "VAL004"}},
	{ErrInvalidParameter, UserMessage{"A request parameter is invalid", "Correct the request parameters", "VAL005"}},
	{ErrInvalidScore, UserMessage{"Score is not a number", "Fix the score column", "VAL006"}},
}

// errorPatterns match driver and transport errors. Order matters.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"duplicate key", UserMessage{"A result with this key already exists", "Check the file for duplicate national ids", "DB001"}},
	{"unique constraint", UserMessage{"A result with this key already exists", "Check the file for duplicate national ids", "DB001"}},
	{"foreign key", UserMessage{"Referenced data does not exist", "Load the reference data first", "DB002"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB003"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB003"}},
	{"database is locked", UserMessage{"Database is busy", "Please try again", "DB004"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB004"}},
	{"timeout", UserMessage{"Operation timed out", "Please try again later", "DB004"}},
	{"context deadline exceeded", UserMessage{"Operation timed out", "Please try again later", "DB004"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-facing message. A nil error maps to
// the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders MapError as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
