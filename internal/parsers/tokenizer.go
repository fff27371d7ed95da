package parsers

import (
	"strings"

	"golang-edi-invoice-service/internal/models"
)

// Tokenize splits raw segments into elements. Positions are preserved,
// including trailing empty elements, and unrecognized identifiers are kept
// as opaque segments for the assembler to judge.
func Tokenize(raw []string, delims models.Delimiters) []models.Segment {
	segments := make([]models.Segment, 0, len(raw))
	sep := string(delims.Element)

	for i, text := range raw {
		elements := strings.Split(text, sep)
		elements[0] = strings.ToUpper(strings.TrimSpace(elements[0]))

		seg := models.Segment{
			ID:       elements[0],
			Elements: elements,
			Index:    i,
		}
		if bounds, ok := segmentArity[seg.ID]; ok {
			seg.Known = true
			n := seg.Count()
			seg.Malformed = n < bounds.min || n > bounds.max
		}
		segments = append(segments, seg)
	}

	return segments
}
