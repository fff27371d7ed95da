package models

import (
	"strings"
)

// Delimiters holds the separators discovered in an ISA header.
type Delimiters struct {
	Element   rune `json:"element"`
	Segment   rune `json:"segment"`
	Component rune `json:"component"`
}

// DefaultDelimiters returns the conventional X12 separators.
func DefaultDelimiters() Delimiters {
	return Delimiters{Element: '*', Segment: '~', Component: '>'}
}

// Segment is one tokenized X12 segment. Elements[0] is the segment
// identifier, so X12 element positions map directly onto slice indexes.
type Segment struct {
	ID        string   `json:"id"`
	Elements  []string `json:"elements"`
	Index     int      `json:"index"`
	Known     bool     `json:"known"`
	Malformed bool     `json:"malformed,omitempty"`
}

// Element returns the element at position i, or "" when absent.
func (s Segment) Element(i int) string {
	if i < 0 || i >= len(s.Elements) {
		return ""
	}
	return s.Elements[i]
}

// Value returns the element at position i with padding removed.
func (s Segment) Value(i int) string {
	return strings.TrimSpace(s.Element(i))
}

// Count returns the number of data elements after the identifier.
func (s Segment) Count() int {
	if len(s.Elements) == 0 {
		return 0
	}
	return len(s.Elements) - 1
}

// Join renders the segment with the given element separator.
func (s Segment) Join(sep rune) string {
	return strings.Join(s.Elements, string(sep))
}
