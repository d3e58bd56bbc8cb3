// Package tabular splits delimited text into a header and fixed-width rows.
//
// It is intentionally not a CSV reader: fields are split on the delimiter only,
// with no quoting or escaping. Every dataset the engine consumes is produced by
// our own export jobs, which never emit quoted fields.
package tabular

import (
	"errors"
	"strings"
)

// ErrNoHeader is returned when the input contains no non-blank line.
var ErrNoHeader = errors.New("tabular: missing header row")

// Row is one data line, already trimmed and guaranteed to have as many fields as
// the header.
type Row []string

// Field returns the value at idx, or "" when idx is out of range (including the
// -1 returned by Table.Column for an absent column).
func (r Row) Field(idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return r[idx]
}

// Table is the parsed form of a delimited document.
type Table struct {
	Header []string
	Rows   []Row

	// Rejected counts data lines dropped because their field count did not
	// match the header.
	Rejected int
}

// Parse splits text into a header and rows. Blank lines are skipped and
// ragged rows are rejected rather than padded.
func Parse(text string, delim rune) (Table, error) {
	sep := string(delim)
	var t Table

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitTrim(line, sep)
		if t.Header == nil {
			t.Header = fields
			continue
		}
		if len(fields) != len(t.Header) {
			t.Rejected++
			continue
		}
		t.Rows = append(t.Rows, Row(fields))
	}

	if t.Header == nil {
		return Table{}, ErrNoHeader
	}
	return t, nil
}

// Column returns the index of the first header matching any of names
// (case-insensitive, surrounding whitespace ignored), or -1.
func (t Table) Column(names ...string) int {
	for _, name := range names {
		for i, h := range t.Header {
			if strings.EqualFold(h, strings.TrimSpace(name)) {
				return i
			}
		}
	}
	return -1
}

func splitTrim(line, sep string) []string {
	parts := strings.Split(line, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
