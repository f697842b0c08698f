package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrExportInProgress is returned when an export is requested while another
// one holds the export slot longer than the caller is willing to wait.
var ErrExportInProgress = errors.New("export already in progress")

// ErrEmptyRecord is the cause of a ParseError for a blank record.
var ErrEmptyRecord = errors.New("empty record")

// ConfigError reports settings that are missing or invalid. All problems
// found are listed, not only the first.
type ConfigError struct {
	Missing []string // Env names of required settings that are not set
	Invalid []string // Human-readable descriptions of invalid values
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		noun := "value"
		if len(e.Missing) > 1 {
			noun = "values"
		}
		parts = append(parts, fmt.Sprintf("missing environment %s: %s", noun, strings.Join(e.Missing, ", ")))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Invalid, "\n  - ")))
	}
	if len(parts) == 0 {
		return "invalid configuration"
	}
	return strings.Join(parts, "; ")
}

// TransportError wraps a failure talking to the contact directory.
type TransportError struct {
	Op   string // discover, list, fetch
	Path string // Server path involved, if any
	Err  error
}

func (e *TransportError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("directory %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("directory %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError identifies the record that could not be parsed.
type ParseError struct {
	Index int    // Position in the input collection, -1 when parsed standalone
	Path  string // Server path of the record, if known
	Err   error
}

func (e *ParseError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("parse vcard: %v", e.Err)
	case e.Path == "":
		return fmt.Sprintf("parse vcard #%d: %v", e.Index, e.Err)
	default:
		return fmt.Sprintf("parse vcard #%d (%s): %v", e.Index, e.Path, e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// WriteError wraps a failure writing the phonebook file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write phonebook %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
