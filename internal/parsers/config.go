package parsers

import (
	"fmt"
	"strings"
	"unicode"

	"golang-edi-invoice-service/internal/models"
)

// ParseConfig holds the settings shared by the preprocessor, tokenizer and assembler.
type ParseConfig struct {
	// Delimiters used when the ISA header does not yield recognizable ones
	DefaultElementSeparator  string `json:"default_element_separator" mapstructure:"default_element_separator"`
	DefaultSegmentTerminator string `json:"default_segment_terminator" mapstructure:"default_segment_terminator"`

	// FallbackEncoding is applied when the input is not valid UTF-8.
	// Only "windows-1252" and "none" are recognized.
	FallbackEncoding string `json:"fallback_encoding" mapstructure:"fallback_encoding"`

	// InvoiceDateFormats are tried in order against BIG01
	InvoiceDateFormats []string `json:"invoice_date_formats" mapstructure:"invoice_date_formats"`

	// DefaultCurrency applies when no CUR segment is present
	DefaultCurrency string `json:"default_currency" mapstructure:"default_currency"`
}

// DefaultParseConfig returns the conventional X12 settings.
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		DefaultElementSeparator:  "*",
		DefaultSegmentTerminator: "~",
		FallbackEncoding:         "windows-1252",
		InvoiceDateFormats:       []string{"20060102", "060102"},
		DefaultCurrency:          "USD",
	}
}

// Validate checks if the parse configuration is valid
func (c *ParseConfig) Validate() error {
	if !validDelimiter(c.DefaultElementSeparator) {
		return fmt.Errorf("default element separator must be a single non-alphanumeric character, got %q", c.DefaultElementSeparator)
	}
	if !validDelimiter(c.DefaultSegmentTerminator) {
		return fmt.Errorf("default segment terminator must be a single non-alphanumeric character, got %q", c.DefaultSegmentTerminator)
	}
	if c.DefaultElementSeparator == c.DefaultSegmentTerminator {
		return fmt.Errorf("element separator and segment terminator must differ")
	}

	switch strings.ToLower(c.FallbackEncoding) {
	case "windows-1252", "none":
	default:
		return fmt.Errorf("unsupported fallback encoding: %s", c.FallbackEncoding)
	}

	if len(c.InvoiceDateFormats) == 0 {
		return fmt.Errorf("at least one invoice date format is required")
	}
	if len(strings.TrimSpace(c.DefaultCurrency)) != 3 {
		return fmt.Errorf("default currency must be a three-letter code, got %q", c.DefaultCurrency)
	}
	return nil
}

func validDelimiter(s string) bool {
	r := []rune(s)
	return len(r) == 1 && isDelimiterRune(r[0])
}

// isDelimiterRune accepts punctuation and control characters alike; many
// trading partners separate with 0x1D, 0x1C and 0x1F.
func isDelimiterRune(r rune) bool {
	return r != unicode.ReplacementChar && !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}

func (c *ParseConfig) defaults() models.Delimiters {
	d := models.DefaultDelimiters()
	if validDelimiter(c.DefaultElementSeparator) {
		d.Element = []rune(c.DefaultElementSeparator)[0]
	}
	if validDelimiter(c.DefaultSegmentTerminator) {
		d.Segment = []rune(c.DefaultSegmentTerminator)[0]
	}
	return d
}
