// Package acknowledgment builds X12 997 functional acknowledgments for
// processed interchanges and renders them as EDI text.
//
// The generator maps each transaction set to an AK5 status: structural
// defects reject the set, reconciliation discrepancies accept it with
// errors, and everything else is accepted. Group status in AK9 summarizes
// the set statuses. The renderer answers the sender by swapping ISA06/ISA08
// and GS02/GS03, and copies ISA13, GS06 and ST02 verbatim into the
// response so the partner can correlate it.
package acknowledgment

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Config controls acknowledgment content and layout.
type Config struct {
	// ElementSeparator and SegmentTerminator are used unless MirrorDelimiters
	// is set and the source interchange had its own.
	ElementSeparator   string `json:"element_separator" mapstructure:"element_separator"`
	SegmentTerminator  string `json:"segment_terminator" mapstructure:"segment_terminator"`
	ComponentSeparator string `json:"component_separator" mapstructure:"component_separator"`
	MirrorDelimiters   bool   `json:"mirror_delimiters" mapstructure:"mirror_delimiters"`

	// LineEnding follows every segment terminator. Empty writes one line.
	LineEnding string `json:"line_ending" mapstructure:"line_ending"`

	// Version is written to ISA12 when the source carries none.
	Version      string `json:"version" mapstructure:"version"`
	GroupVersion string `json:"group_version" mapstructure:"group_version"`

	// StartingControlNumber numbers the generated ST02 values.
	StartingControlNumber int `json:"starting_control_number" mapstructure:"starting_control_number"`

	// DiscrepancyElementCode is the AK403 code used for amounts that
	// failed reconciliation.
	DiscrepancyElementCode string `json:"discrepancy_element_code" mapstructure:"discrepancy_element_code"`

	Clock func() time.Time `json:"-" mapstructure:"-"`
}

// DefaultConfig returns the layout most partners accept.
func DefaultConfig() *Config {
	return &Config{
		ElementSeparator:       "*",
		SegmentTerminator:      "~",
		ComponentSeparator:     ">",
		MirrorDelimiters:       true,
		LineEnding:             "\n",
		Version:                "00401",
		GroupVersion:           "004010",
		StartingControlNumber:  1001,
		DiscrepancyElementCode: "7",
		Clock:                  time.Now,
	}
}

// Validate checks if the acknowledgment configuration is valid
func (c *Config) Validate() error {
	if len(c.ElementSeparator) != 1 {
		return fmt.Errorf("element separator must be a single character: %q", c.ElementSeparator)
	}
	if len(c.SegmentTerminator) != 1 {
		return fmt.Errorf("segment terminator must be a single character: %q", c.SegmentTerminator)
	}
	if len(c.ComponentSeparator) != 1 {
		return fmt.Errorf("component separator must be a single character: %q", c.ComponentSeparator)
	}
	if c.ElementSeparator == c.SegmentTerminator || c.ElementSeparator == c.ComponentSeparator ||
		c.SegmentTerminator == c.ComponentSeparator {
		return fmt.Errorf("separators must be distinct")
	}
	if c.StartingControlNumber < 1 || c.StartingControlNumber > 999999999 {
		return fmt.Errorf("starting control number out of range: %d", c.StartingControlNumber)
	}
	if len(c.Version) != 5 {
		return fmt.Errorf("version must be five characters: %q", c.Version)
	}
	if c.DiscrepancyElementCode == "" {
		return fmt.Errorf("discrepancy element code is required")
	}
	return nil
}

func (c *Config) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock()
}

// FileName returns the conventional 997 file name for a source file:
// invoices/acme.edi becomes acme_997.edi.
func FileName(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "interchange"
	}
	return base + "_997.edi"
}

// Names hands out 997 file names that are unique per destination. A name
// already taken falls back to one carrying the interchange control number,
// then to a counter.
type Names struct {
	used map[string]bool
}

// NewNames creates an empty name allocator.
func NewNames() *Names {
	return &Names{used: make(map[string]bool)}
}

// Next returns the file name for source within destination.
func (n *Names) Next(destination, source, control string) string {
	name := FileName(source)
	stem := strings.TrimSuffix(name, "_997.edi")

	candidates := []string{name}
	if control = strings.TrimSpace(control); control != "" && isAlphanumeric(control) {
		stem += "_" + control
		candidates = append(candidates, stem+"_997.edi")
	}
	for _, c := range candidates {
		if n.claim(destination, c) {
			return c
		}
	}
	for i := 2; ; i++ {
		c := fmt.Sprintf("%s_%d_997.edi", stem, i)
		if n.claim(destination, c) {
			return c
		}
	}
}

func (n *Names) claim(destination, name string) bool {
	key := destination + "\x00" + name
	if n.used[key] {
		return false
	}
	n.used[key] = true
	return true
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
