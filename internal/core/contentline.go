package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoBegin is the cause of a ParseError for text that does not start
	// with BEGIN:VCARD.
	ErrNoBegin = errors.New("missing BEGIN:VCARD")

	// ErrMalformedLine is the cause of a ParseError for a content line that
	// is not NAME[;PARAM...]:VALUE.
	ErrMalformedLine = errors.New("malformed content line")
)

// contentLine is one unfolded vCard line split into its parts.
type contentLine struct {
	group  string
	name   string
	params []string // As written, without the leading ';'
	value  string
}

func (l contentLine) String() string {
	var b strings.Builder
	if l.group != "" {
		b.WriteString(l.group)
		b.WriteByte('.')
	}
	b.WriteString(l.name)
	for _, p := range l.params {
		b.WriteByte(';')
		b.WriteString(p)
	}
	b.WriteByte(':')
	b.WriteString(l.value)
	return b.String()
}

// quotedPrintable reports whether the value uses 2.1 quoted-printable
// encoding, whose soft line breaks end a physical line with '='.
func (l contentLine) quotedPrintable() bool {
	for _, p := range l.params {
		p = strings.ToUpper(p)
		if p == "QUOTED-PRINTABLE" || p == "ENCODING=QUOTED-PRINTABLE" {
			return true
		}
	}
	return false
}

// physicalLine is a logical line with the 1-based number of its first
// physical line.
type physicalLine struct {
	num  int
	text string
}

// unfold joins continuation lines (leading space or tab) onto the line
// before them.
func unfold(text string) []physicalLine {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]physicalLine, 0, len(raw))
	for i, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		if len(lines) > 0 && l != "" && (l[0] == ' ' || l[0] == '\t') {
			lines[len(lines)-1].text += l[1:]
			continue
		}
		lines = append(lines, physicalLine{num: i + 1, text: l})
	}
	return lines
}

// splitContentLine parses group.NAME;PARAM;...:VALUE. Parameter values may
// be double-quoted and contain ';' or ':' inside the quotes.
func splitContentLine(s string) (contentLine, bool) {
	var l contentLine

	i := strings.IndexAny(s, ".;:")
	if i < 0 {
		return l, false
	}
	if s[i] == '.' {
		l.group, s = s[:i], s[i+1:]
		if !isName(l.group) {
			return l, false
		}
		if i = strings.IndexAny(s, ";:"); i < 0 {
			return l, false
		}
	}
	l.name = s[:i]
	if !isName(l.name) {
		return l, false
	}
	if s[i] == ':' {
		l.value = s[i+1:]
		return l, true
	}

	rest := s[i+1:]
	start, quoted := 0, false
	for j := 0; j < len(rest); j++ {
		switch c := rest[j]; {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == ';':
			l.params = append(l.params, rest[start:j])
			start = j + 1
		case c == ':':
			l.params = append(l.params, rest[start:j])
			l.value = rest[j+1:]
			return l, true
		}
	}
	return l, false
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}

// normalizeParams rewrites bare vCard 2.1 parameters into TYPE= form
// (TEL;CELL;VOICE becomes TEL;TYPE=CELL;TYPE=VOICE) and drops empty ones.
func normalizeParams(params []string) []string {
	out := params[:0]
	for _, p := range params {
		switch {
		case p == "":
		case strings.Contains(p, "="):
			out = append(out, p)
		default:
			out = append(out, "TYPE="+p)
		}
	}
	return out
}

// normalize checks every content line of the first card in text and returns
// the card in a form the decoder reads faithfully: unfolded, with 2.1
// parameters rewritten and quoted-printable soft breaks joined. Lines after
// END:VCARD are ignored.
func normalize(text string) (string, error) {
	lines := unfold(text)

	var (
		out   []string
		begun bool
	)
	for i := 0; i < len(lines); i++ {
		pl := lines[i]
		if strings.TrimSpace(pl.text) == "" {
			continue
		}

		l, ok := splitContentLine(pl.text)
		if !begun {
			if !ok || !strings.EqualFold(l.name, "BEGIN") || !strings.EqualFold(strings.TrimSpace(l.value), "VCARD") {
				return "", ErrNoBegin
			}
			begun = true
			out = append(out, "BEGIN:VCARD")
			continue
		}
		if !ok {
			return "", fmt.Errorf("line %d: %w: %q", pl.num, ErrMalformedLine, truncate(pl.text, 40))
		}

		if l.quotedPrintable() {
			for strings.HasSuffix(l.value, "=") && i+1 < len(lines) {
				i++
				l.value = strings.TrimSuffix(l.value, "=") + lines[i].text
			}
		}
		l.params = normalizeParams(l.params)
		out = append(out, l.String())

		if strings.EqualFold(l.name, "END") {
			break
		}
	}
	if !begun {
		return "", ErrNoBegin
	}
	return strings.Join(out, "\r\n") + "\r\n", nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
