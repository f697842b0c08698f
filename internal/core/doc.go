// Package core provides the business logic for phonebook exports.
//
// This package is the heart of the exporter, containing the contact
// transformation independent of the CardDAV transport or the destination
// file. It can be used by the CLI, the HTTP service, or tests without
// modification.
//
// # Pipeline
//
// A run turns raw vCards into a delimited text payload:
//
//  1. [Parse] decodes each [RawRecord] into a [Contact]
//  2. [IsIndividual] drops group and category entries
//  3. [Expand] turns each contact into one or more [Row] values
//  4. [Serialize] joins the rows into the BOM-prefixed payload
//
// [Pipeline] runs steps 1-3 over a whole collection. Parsing is done
// concurrently but results are always recombined in input order.
//
// # Row Expansion
//
// A contact without phone numbers yields one row with an empty number. A
// contact with exactly one number yields one row named after the contact.
// A contact with several numbers yields one row per number, each named
// "Name (label,label)" so the phone shows distinct entries.
//
// # Error Handling
//
// Failures are reported with typed errors ([ConfigError], [TransportError],
// [ParseError], [WriteError]). Each category maps to a support code via
// [MapError]:
//
//   - CFG001: Missing or invalid configuration
//   - DAV001-DAV003: Directory errors (auth, not found, network)
//   - VCF001: Malformed contact record
//   - OUT001: Destination file not writable
//   - EXP001: Export already running
package core
