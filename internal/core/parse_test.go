package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// card builds a CRLF-terminated vCard from property lines.
func card(lines ...string) string {
	all := append([]string{"BEGIN:VCARD", "VERSION:3.0"}, lines...)
	all = append(all, "END:VCARD")
	return strings.Join(all, "\r\n") + "\r\n"
}

func TestParse(t *testing.T) {
	raw := card(
		"FN:Jane Doe",
		"N:Doe;Jane;;;",
		"TEL;TYPE=mobile:+49 170 1234567",
		"TEL;TYPE=work,cell:030 123",
		"TEL:0800",
		"EMAIL:jane@example.com",
		"NOTE:Met at the conference",
	)

	c, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", c.DisplayName)
	require.Len(t, c.Phones, 3)
	assert.Equal(t, PhoneEntry{Value: "+49 170 1234567", Labels: []string{"mobile"}}, c.Phones[0])
	assert.Equal(t, PhoneEntry{Value: "030 123", Labels: []string{"work", "cell"}}, c.Phones[1])
	assert.Equal(t, "0800", c.Phones[2].Value)
	assert.Empty(t, c.Phones[2].Labels)
	require.NotNil(t, c.Note)
	assert.Equal(t, "Met at the conference", *c.Note)
	assert.Nil(t, c.Kind)
}

func TestParse_RepeatedTypeParams(t *testing.T) {
	c, err := Parse(card("FN:A", "TEL;TYPE=home;TYPE=voice:1"))
	require.NoError(t, err)
	require.Len(t, c.Phones, 1)
	assert.Equal(t, []string{"home", "voice"}, c.Phones[0].Labels)
}

func TestParse_OptionalFields(t *testing.T) {
	c, err := Parse(card("FN:Nobody"))
	require.NoError(t, err)

	assert.Equal(t, "Nobody", c.DisplayName)
	assert.Empty(t, c.Phones)
	assert.Nil(t, c.Note)
	assert.Equal(t, "", c.NoteText())
	assert.Nil(t, c.Kind)
}

func TestParse_MissingDisplayName(t *testing.T) {
	c, err := Parse(card("TEL:123"))
	require.NoError(t, err)
	assert.Equal(t, "", c.DisplayName)
	require.Len(t, c.Phones, 1)
}

func TestParse_Kind(t *testing.T) {
	c, err := Parse(card("FN:Family", "X-ADDRESSBOOKSERVER-KIND:group"))
	require.NoError(t, err)
	require.NotNil(t, c.Kind)
	assert.Equal(t, "group", *c.Kind)

	c, err = Parse(card("FN:Family", "X-ADDRESSBOOKSERVER-KIND:"))
	require.NoError(t, err)
	assert.Nil(t, c.Kind, "empty kind is treated as absent")
}

func TestParse_LeadingBOM(t *testing.T) {
	c, err := Parse("\ufeff" + card("FN:Bom"))
	require.NoError(t, err)
	assert.Equal(t, "Bom", c.DisplayName)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "whitespace only", raw: " \r\n "},
		{name: "not a vcard", raw: "hello world\r\n"},
		{name: "unterminated", raw: "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Cut Off\r\n"},
		{name: "invalid utf-8", raw: "BEGIN:VCARD\r\nFN:\xff\xfe\r\nEND:VCARD\r\n"},
		{name: "malformed line", raw: card("FN A", "TEL;TYPE=cell:1")},
		{name: "unterminated quoted param", raw: card("FN:A", `TEL;TYPE="cell:1`)},
		{name: "bad property name", raw: card("F N:A")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			require.Error(t, err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
			assert.Equal(t, -1, pe.Index)
		})
	}
}

func TestParse_EmptyRecordCause(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmptyRecord)
}

func TestParse_ErrorCauses(t *testing.T) {
	_, err := Parse("hello world\r\n")
	assert.ErrorIs(t, err, ErrNoBegin)
	assert.NotErrorIs(t, err, ErrEmptyRecord)

	_, err = Parse(card("FN A", "TEL:1"))
	assert.ErrorIs(t, err, ErrMalformedLine)
	assert.Contains(t, err.Error(), "line 3")
}

func TestParse_Version21BareParams(t *testing.T) {
	raw := "BEGIN:VCARD\r\nVERSION:2.1\r\nFN:A\r\nTEL;CELL;VOICE:+4912345\r\nTEL;WORK:+4967890\r\nEND:VCARD\r\n"

	c, err := Parse(raw)
	require.NoError(t, err)

	require.Len(t, c.Phones, 2)
	assert.Equal(t, PhoneEntry{Value: "+4912345", Labels: []string{"CELL", "VOICE"}}, c.Phones[0])
	assert.Equal(t, PhoneEntry{Value: "+4967890", Labels: []string{"WORK"}}, c.Phones[1])

	rows := Expand(c)
	assert.Equal(t, "A (CELL,VOICE)", rows[0].Name)
	assert.Equal(t, "+4912345", rows[0].Phone)
}

func TestParse_Version21QuotedPrintableNote(t *testing.T) {
	raw := "BEGIN:VCARD\r\nVERSION:2.1\r\nFN:A\r\nNOTE;ENCODING=QUOTED-PRINTABLE:first=\r\nsecond\r\nTEL;HOME:1\r\nEND:VCARD\r\n"

	c, err := Parse(raw)
	require.NoError(t, err)
	require.NotNil(t, c.Note)
	assert.Equal(t, "firstsecond", *c.Note)
	require.Len(t, c.Phones, 1)
	assert.Equal(t, []string{"HOME"}, c.Phones[0].Labels)
}

func TestParse_FoldedAndGroupedLines(t *testing.T) {
	raw := card(
		"FN:Very Long",
		" Name",
		"item1.TEL;TYPE=\"work,voice\":030 1",
		"",
	)

	c, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Very LongName", c.DisplayName)
	require.Len(t, c.Phones, 1)
	assert.Equal(t, PhoneEntry{Value: "030 1", Labels: []string{"work", "voice"}}, c.Phones[0])
}

func TestParse_IgnoresTextAfterEnd(t *testing.T) {
	c, err := Parse(card("FN:A") + "trailing junk\r\n")
	require.NoError(t, err)
	assert.Equal(t, "A", c.DisplayName)
}
