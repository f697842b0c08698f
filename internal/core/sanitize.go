package core

import (
	"regexp"
	"strings"
)

// FieldSeparator delimits the columns of a phonebook row.
const FieldSeparator = ";"

// separatorSubstitute replaces FieldSeparator inside field values.
const separatorSubstitute = "þ"

// htcDataTag matches the proprietary markup HTC devices append to notes.
// '.' does not cross newlines, so only a tag on the final line is removed.
var htcDataTag = regexp.MustCompile(`<HTCData>.*$`)

// Sanitize makes a value safe to place in a phonebook column.
func Sanitize(field string) string {
	if field == "" {
		return ""
	}
	field = strings.ReplaceAll(field, FieldSeparator, separatorSubstitute)
	return htcDataTag.ReplaceAllString(field, "")
}
