// Package resolver decides whether an invoice's amounts are written in
// major currency units or as integer counts of minor units.
//
// Trading partners disagree about monetary fields. X12 types the TDS total
// as N2 (two implied decimal places) and the IT1 unit price as R (explicit
// decimal point), but some senders write every amount in cents and others
// write totals with a decimal point. The resolver does not trust either
// convention. For each transaction set it computes the invoice total twice:
//
//   - Dollars: R fields are literal; N2 fields without a decimal point are
//     divided by 100.
//   - Cents: every amount is an integer count of minor units and is divided
//     by 100.
//
// Each hypothesis is cross-checked against the declared TDS total. If one
// reconciles it wins. If both do, the configured preference wins and the set
// is flagged ambiguous_but_resolved. If neither does, the configured fallback
// is applied and the set is flagged unreconciled.
//
// The chosen interpretation is applied to every amount in the set, never to
// individual fields, and resolution only ever reads the raw text, so running
// it again yields the same result.
//
// Example usage:
//
//	r := resolver.New(resolver.DefaultConfig(), log)
//	res := r.Resolve(ts)
//	if res.Outcome == models.OutcomeUnreconciled {
//		// ts.Flags.Unreconciled is set
//	}
package resolver

import (
	"fmt"

	"github.com/shopspring/decimal"

	"golang-edi-invoice-service/internal/models"
)

// Config holds the interpretation policy.
type Config struct {
	// Tolerance absorbs rounding between declared and computed totals
	Tolerance decimal.Decimal `json:"tolerance"`

	// Preferred is chosen when both interpretations reconcile
	Preferred models.Interpretation `json:"preferred"`

	// Fallback is chosen when neither interpretation reconciles
	Fallback models.Interpretation `json:"fallback"`
}

// DefaultConfig prefers dollars, the X12 reading, with a one-cent tolerance.
func DefaultConfig() *Config {
	return &Config{
		Tolerance: decimal.NewFromFloat(0.01),
		Preferred: models.InterpretationDollars,
		Fallback:  models.InterpretationDollars,
	}
}

// Validate checks if the resolver configuration is valid
func (c *Config) Validate() error {
	if c.Tolerance.IsNegative() {
		return fmt.Errorf("tolerance cannot be negative: %s", c.Tolerance)
	}
	if c.Tolerance.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("tolerance above 1.00 would hide real discrepancies: %s", c.Tolerance)
	}
	if !decided(c.Preferred) {
		return fmt.Errorf("preferred interpretation must be dollars or cents, got %q", c.Preferred)
	}
	if !decided(c.Fallback) {
		return fmt.Errorf("fallback interpretation must be dollars or cents, got %q", c.Fallback)
	}
	return nil
}

// Clone returns a copy that can be adjusted for a single trading partner.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

func decided(i models.Interpretation) bool {
	return i == models.InterpretationDollars || i == models.InterpretationCents
}
