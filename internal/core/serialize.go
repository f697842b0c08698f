package core

import (
	"runtime"
	"strings"
)

// ByteOrderMark prefixes every payload so phone import tools detect UTF-8.
const ByteOrderMark = "\ufeff"

// Line ending modes accepted by LineEnding.
const (
	LineEndingNative = "native"
	LineEndingCRLF   = "crlf"
	LineEndingLF     = "lf"
)

// LineEnding resolves a line ending mode to the separator string.
// Unknown modes fall back to the platform separator.
func LineEnding(mode string) string {
	switch strings.ToLower(mode) {
	case LineEndingCRLF:
		return "\r\n"
	case LineEndingLF:
		return "\n"
	}
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// Serialize renders rows as the phonebook payload. Fields are sanitized and
// joined with FieldSeparator, rows are joined with eol, surrounding
// whitespace is trimmed and the byte order mark is prepended last so the
// trim cannot touch it. There is no trailing separator.
func Serialize(rows []Row, eol string) string {
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteString(eol)
		}
		for j, f := range r.Fields() {
			if j > 0 {
				b.WriteString(FieldSeparator)
			}
			b.WriteString(Sanitize(f))
		}
	}
	return ByteOrderMark + strings.TrimSpace(b.String())
}
