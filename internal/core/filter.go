package core

// IsIndividual reports whether a contact describes a person. Group and
// category cards carry a non-empty kind marker and are excluded.
func IsIndividual(c Contact) bool {
	return c.Kind == nil || *c.Kind == ""
}
