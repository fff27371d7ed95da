package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Interpretation is the unit convention applied to every amount in a transaction set.
type Interpretation string

const (
	// InterpretationAmbiguous is the state before resolution
	InterpretationAmbiguous Interpretation = "ambiguous"
	// InterpretationDollars reads amounts in major currency units
	InterpretationDollars Interpretation = "dollars"
	// InterpretationCents reads amounts as integer counts of minor units
	InterpretationCents Interpretation = "cents"
)

// IsValid reports whether i is a known interpretation.
func (i Interpretation) IsValid() bool {
	switch i {
	case InterpretationAmbiguous, InterpretationDollars, InterpretationCents:
		return true
	}
	return false
}

// ParseInterpretation accepts "dollars" or "cents" in any case.
func ParseInterpretation(s string) (Interpretation, bool) {
	switch Interpretation(strings.ToLower(strings.TrimSpace(s))) {
	case InterpretationDollars:
		return InterpretationDollars, true
	case InterpretationCents:
		return InterpretationCents, true
	}
	return "", false
}

// AmountKind is the X12 data type of a monetary element.
type AmountKind int

const (
	// ExplicitDecimal is an R element: any decimal point is written out
	ExplicitDecimal AmountKind = iota
	// ImpliedDecimal is an N2 element: two decimal places are implied
	ImpliedDecimal
)

var hundred = decimal.NewFromInt(100)

// AmountField keeps the raw text of a monetary element alongside its
// resolved value. The raw text is never altered.
type AmountField struct {
	Raw     string
	Kind    AmountKind
	Value   decimal.Decimal
	Present bool
	Valid   bool

	number decimal.Decimal
}

// NewAmountField parses raw without applying any unit convention.
func NewAmountField(raw string, kind AmountKind) AmountField {
	a := AmountField{Raw: raw, Kind: kind}
	text := strings.TrimSpace(raw)
	if text == "" {
		return a
	}
	a.Present = true
	n, err := decimal.NewFromString(text)
	if err != nil {
		return a
	}
	a.Valid = true
	a.number = n
	return a
}

// Usable reports whether the field carries a parseable number.
func (a AmountField) Usable() bool {
	return a.Present && a.Valid
}

// HasPoint reports whether the raw text writes out a decimal point.
// Such a value cannot be a count of minor currency units.
func (a AmountField) HasPoint() bool {
	return a.Usable() && strings.Contains(a.Raw, ".")
}

// Under returns the field's value under the given interpretation.
// Unusable fields contribute zero.
func (a AmountField) Under(i Interpretation) decimal.Decimal {
	if !a.Usable() {
		return decimal.Zero
	}
	switch i {
	case InterpretationCents:
		return a.number.Div(hundred)
	default:
		if a.Kind == ImpliedDecimal && !strings.Contains(a.Raw, ".") {
			return a.number.Div(hundred)
		}
		return a.number
	}
}

// Apply sets Value from the raw text under i. Applying twice is harmless.
func (a *AmountField) Apply(i Interpretation) {
	a.Value = a.Under(i)
}

// MarshalJSON emits the raw text next to the resolved value.
func (a AmountField) MarshalJSON() ([]byte, error) {
	if !a.Present {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Raw   string `json:"raw"`
		Value string `json:"value"`
		Valid bool   `json:"valid"`
	}{a.Raw, a.Value.StringFixed(2), a.Valid})
}

// WithinTolerance compares two amounts allowing for a rounding tolerance.
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}
