package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Discrepancy is one mismatch between a declared and a computed amount.
// Delta is Declared minus Computed.
type Discrepancy struct {
	Field           string          `json:"field"`
	SegmentID       string          `json:"segment_id"`
	SegmentPosition int             `json:"segment_position"`
	ElementPosition int             `json:"element_position"`
	LineNumber      string          `json:"line_number,omitempty"`
	Declared        decimal.Decimal `json:"declared"`
	Computed        decimal.Decimal `json:"computed"`
	Delta           decimal.Decimal `json:"delta"`
	BadValue        string          `json:"bad_value,omitempty"`
}

// NewDiscrepancy fills in the delta.
func NewDiscrepancy(field, segmentID string, segPos, elemPos int, declared, computed decimal.Decimal) Discrepancy {
	return Discrepancy{
		Field:           field,
		SegmentID:       segmentID,
		SegmentPosition: segPos,
		ElementPosition: elemPos,
		Declared:        declared,
		Computed:        computed,
		Delta:           declared.Sub(computed),
	}
}

// String renders a one-line summary.
func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: declared %s, computed %s (delta %s)",
		d.Field, d.Declared.StringFixed(2), d.Computed.StringFixed(2), d.Delta.StringFixed(2))
}

// DiscrepancyReport lists every mismatch found in a transaction set.
// An empty report means the set is fully reconciled.
type DiscrepancyReport struct {
	Entries []Discrepancy `json:"entries"`
}

// Add appends an entry.
func (r *DiscrepancyReport) Add(d Discrepancy) {
	r.Entries = append(r.Entries, d)
}

// Empty reports whether the set reconciled.
func (r DiscrepancyReport) Empty() bool {
	return len(r.Entries) == 0
}

// Len returns the number of entries.
func (r DiscrepancyReport) Len() int {
	return len(r.Entries)
}
