package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-edi-invoice-service/internal/models"
)

func TestTokenize(t *testing.T) {
	delims := models.DefaultDelimiters()

	tests := []struct {
		name      string
		raw       string
		id        string
		elements  []string
		known     bool
		malformed bool
	}{
		{
			name:     "empty middle element kept",
			raw:      "N1*BY**12345",
			id:       "N1",
			elements: []string{"N1", "BY", "", "12345"},
			known:    true,
		},
		{
			name:     "trailing empties kept",
			raw:      "REF*CR*123*",
			id:       "REF",
			elements: []string{"REF", "CR", "123", ""},
			known:    true,
		},
		{
			name:     "unknown segment retained",
			raw:      "ZZZ*1*2",
			id:       "ZZZ",
			elements: []string{"ZZZ", "1", "2"},
		},
		{
			name:      "too few elements",
			raw:       "SE*10",
			id:        "SE",
			elements:  []string{"SE", "10"},
			known:     true,
			malformed: true,
		},
		{
			name:     "identifier normalized",
			raw:      " it1*1*2*EA*3.00",
			id:       "IT1",
			elements: []string{"IT1", "1", "2", "EA", "3.00"},
			known:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := Tokenize([]string{tt.raw}, delims)
			require.Len(t, segs, 1)

			seg := segs[0]
			assert.Equal(t, tt.id, seg.ID)
			assert.Equal(t, tt.elements, seg.Elements)
			assert.Equal(t, tt.known, seg.Known)
			assert.Equal(t, tt.malformed, seg.Malformed)
		})
	}
}

func TestTokenizeAssignsIndexes(t *testing.T) {
	segs := Tokenize([]string{"ST|810|0001", "BIG|20240102|INV-1", "SE|3|0001"}, models.Delimiters{Element: '|', Segment: '\n'})

	require.Len(t, segs, 3)
	for i, seg := range segs {
		assert.Equal(t, i, seg.Index)
	}
	assert.Equal(t, "INV-1", segs[1].Element(2))
}
