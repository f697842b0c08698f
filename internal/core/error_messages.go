package core

// error_messages.go maps export failures to user-friendly messages with codes
// for support reference.
//
// # Configuration Errors (CFG001)
//
//	CFG001 - Missing or invalid settings
//	         Action: Set the listed environment variables or add them to .env
//
// # Directory Errors (DAV001-DAV099)
//
//	DAV001 - Authentication failed
//	         Action: Check CARDDAV_USER and CARDDAV_PASS
//	         Status: 401, 403 (patterns without a status: "401", "403", "unauthorized", "forbidden")
//
//	DAV002 - Address book not found
//	         Action: Check CARDDAV_URL and CARDDAV_ADDRESS_BOOKS
//	         Status: 404, 410 (patterns without a status: "404", "not found")
//
//	DAV003 - Directory unreachable (any other transport failure)
//	         Action: Check the server address and network, then try again
//
// # Record Errors (VCF001)
//
//	VCF001 - A contact record is malformed; the message names the record
//	         Action: Fix or remove the record in the directory
//
// # Output Errors (OUT001)
//
//	OUT001 - Phonebook file could not be written
//	         Action: Check PHONEBOOK_LOC and directory permissions
//
//	OUT002 - No phonebook has been exported yet (serve mode download)
//	         Action: Trigger an export and try again
//
// # Export Errors (EXP001)
//
//	EXP001 - Another export is running
//	         Action: Wait for it to finish and try again
//
// # Default Error (ERR000)
//
// Fallback when no category matches. Check the logs for the technical error.

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgConfig = UserMessage{
		Message: "Configuration is incomplete or invalid",
		Action:  "Set the listed environment variables or add them to .env",
		Code:    "CFG001",
	}
	msgAuth = UserMessage{
		Message: "The contact server rejected the credentials",
		Action:  "Check CARDDAV_USER and CARDDAV_PASS",
		Code:    "DAV001",
	}
	msgNotFound = UserMessage{
		Message: "The address book was not found on the contact server",
		Action:  "Check CARDDAV_URL and CARDDAV_ADDRESS_BOOKS",
		Code:    "DAV002",
	}
	msgUnreachable = UserMessage{
		Message: "The contact server could not be reached",
		Action:  "Check the server address and network, then try again",
		Code:    "DAV003",
	}
	msgRecord = UserMessage{
		Message: "A contact record could not be read",
		Action:  "Fix or remove the record in the directory",
		Code:    "VCF001",
	}
	msgWrite = UserMessage{
		Message: "The phonebook file could not be written",
		Action:  "Check PHONEBOOK_LOC and directory permissions",
		Code:    "OUT001",
	}
	// MsgNotExported is reported when the phonebook is requested before the
	// first export wrote it.
	MsgNotExported = UserMessage{
		Message: "No phonebook has been exported yet",
		Action:  "Trigger an export and try again",
		Code:    "OUT002",
	}
	msgBusy = UserMessage{
		Message: "Another export is already running",
		Action:  "Wait for it to finish and try again",
		Code:    "EXP001",
	}
)

// defaultMessage is returned when no category matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs",
	Code:    "ERR000",
}

// transportPatterns classify TransportError causes that carry no status
// code. Matched case-insensitively, first match wins.
var transportPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"401", msgAuth},
	{"403", msgAuth},
	{"unauthorized", msgAuth},
	{"forbidden", msgAuth},
	{"404", msgNotFound},
	{"not found", msgNotFound},
}

// MapError converts an error to a user-friendly message.
// Returns an empty UserMessage for nil errors.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		cfgErr   *ConfigError
		dirErr   *TransportError
		parseErr *ParseError
		writeErr *WriteError
	)
	switch {
	case errors.As(err, &cfgErr):
		return msgConfig
	case errors.As(err, &parseErr):
		return msgRecord
	case errors.As(err, &writeErr):
		return msgWrite
	case errors.Is(err, ErrExportInProgress):
		return msgBusy
	case errors.As(err, &dirErr):
		return transportMessage(dirErr)
	}
	return defaultMessage
}

// statusCoder is implemented by transport causes that carry the HTTP status
// the server answered with.
type statusCoder interface {
	StatusCode() int
}

// transportMessage classifies a directory failure by its HTTP status, or
// by the text of its cause when there is none.
func transportMessage(e *TransportError) UserMessage {
	var sc statusCoder
	if e.Err != nil && errors.As(e.Err, &sc) {
		switch sc.StatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return msgAuth
		case http.StatusNotFound, http.StatusGone:
			return msgNotFound
		}
		return msgUnreachable
	}

	lower := strings.ToLower(fmt.Sprint(e.Err))
	for _, p := range transportPatterns {
		if strings.Contains(lower, p.pattern) {
			return p.msg
		}
	}
	return msgUnreachable
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

// IsUserFacing reports whether err belongs to a known category, i.e. maps
// to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
