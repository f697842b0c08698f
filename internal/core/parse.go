package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-vcard"
	"golang.org/x/text/encoding/unicode"
)

// FieldAddressBookServerKind marks group and category cards created by
// Apple's address book server and servers that mimic it.
const FieldAddressBookServerKind = "X-ADDRESSBOOKSERVER-KIND"

// bomStripper removes a leading UTF-8 byte order mark and leaves the rest
// of the text untouched.
var bomStripper = unicode.UTF8BOM

// Parse decodes a single vCard 2.1, 3.0 or 4.0. Unknown properties are
// ignored; a line that is not NAME[;PARAM...]:VALUE fails the record.
func Parse(raw string) (Contact, error) {
	c, err := parse(raw)
	if err != nil {
		return Contact{}, &ParseError{Index: -1, Err: err}
	}
	return c, nil
}

func parse(raw string) (Contact, error) {
	if !utf8.ValidString(raw) {
		return Contact{}, errors.New("invalid UTF-8 encoding")
	}

	text, err := bomStripper.NewDecoder().String(raw)
	if err != nil {
		return Contact{}, fmt.Errorf("decode: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Contact{}, ErrEmptyRecord
	}

	// The decoder skips lines it cannot read and misreads bare 2.1
	// parameters, so lines are checked and normalized first.
	text, err = normalize(text)
	if err != nil {
		return Contact{}, err
	}

	card, err := vcard.NewDecoder(strings.NewReader(text)).Decode()
	if err != nil {
		return Contact{}, err
	}

	c := Contact{
		DisplayName: card.Value(vcard.FieldFormattedName),
		Phones:      phoneEntries(card[vcard.FieldTelephone]),
	}
	if f := card.Get(vcard.FieldNote); f != nil {
		note := f.Value
		c.Note = &note
	}
	if kind := card.Value(FieldAddressBookServerKind); kind != "" {
		c.Kind = &kind
	}
	return c, nil
}

func phoneEntries(fields []*vcard.Field) []PhoneEntry {
	if len(fields) == 0 {
		return nil
	}
	entries := make([]PhoneEntry, 0, len(fields))
	for _, f := range fields {
		entries = append(entries, PhoneEntry{
			Value:  f.Value,
			Labels: typeLabels(f.Params),
		})
	}
	return entries
}

// typeLabels flattens TYPE parameters. Both "TYPE=work,voice" and
// repeated "TYPE=work;TYPE=voice" forms yield [work voice].
func typeLabels(params vcard.Params) []string {
	var labels []string
	for _, v := range params[vcard.ParamType] {
		for _, label := range strings.Split(v, ",") {
			label = strings.TrimSpace(label)
			if label != "" {
				labels = append(labels, label)
			}
		}
	}
	return labels
}
