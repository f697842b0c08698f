package core

import "strings"

// labelSeparator joins the labels of one phone entry in a row name.
const labelSeparator = ","

// Expand turns a contact into phonebook rows.
//
// Zero phones give a single row without a number. One phone gives a single
// row named exactly as the contact, even when the number has labels. Two or
// more phones give one row per number in input order, each named
// "DisplayName (labels)".
func Expand(c Contact) []Row {
	note := c.NoteText()

	switch len(c.Phones) {
	case 0:
		return []Row{{Name: c.DisplayName, Note: note}}
	case 1:
		return []Row{{Phone: c.Phones[0].Value, Name: c.DisplayName, Note: note}}
	}

	rows := make([]Row, len(c.Phones))
	for i, p := range c.Phones {
		rows[i] = Row{
			Phone: p.Value,
			Name:  c.DisplayName + " (" + strings.Join(p.Labels, labelSeparator) + ")",
			Note:  note,
		}
	}
	return rows
}
