package core

// RawRecord is one vCard as downloaded from the directory.
type RawRecord struct {
	Path string // Object path on the server, used to identify the record in errors
	Data string // vCard text
}

// PhoneEntry is a single TEL property of a contact.
type PhoneEntry struct {
	Value  string   // Number exactly as stored in the directory
	Labels []string // TYPE parameter values in input order
}

// Contact is the parsed form of a vCard, reduced to the fields the
// phonebook needs.
type Contact struct {
	DisplayName string
	Phones      []PhoneEntry
	Note        *string // nil when the record has no NOTE
	Kind        *string // nil unless the record is a group or category
}

// NoteText returns the note, or "" when absent.
func (c Contact) NoteText() string {
	if c.Note == nil {
		return ""
	}
	return *c.Note
}

// Row is one line of the phonebook file.
type Row struct {
	Phone    string
	Name     string
	Reserved string // Always empty; placeholder column of the import format
	Note     string
}

// Fields returns the row's columns in file order.
func (r Row) Fields() [4]string {
	return [4]string{r.Phone, r.Name, r.Reserved, r.Note}
}

// Result summarizes one pipeline run.
type Result struct {
	Rows     []Row
	Records  int // Raw records received
	Contacts int // Records kept by the filter
	Groups   int // Records discarded as groups or categories
}
