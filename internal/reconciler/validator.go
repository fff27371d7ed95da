package reconciler

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/pkg/logger"
)

// Element positions reported in discrepancies.
const (
	amtAmountElement    = 2
	tdsAmountElement    = 1
	cttLineCountElement = 1
)

// ValidatorConfig controls the cross-checks performed on a resolved set.
type ValidatorConfig struct {
	Tolerance      decimal.Decimal `json:"tolerance"`
	CheckLineTotal bool            `json:"check_line_total"`
	CheckLineCount bool            `json:"check_line_count"`
}

// DefaultValidatorConfig enables every check with a one-cent tolerance.
func DefaultValidatorConfig() *ValidatorConfig {
	return &ValidatorConfig{
		Tolerance:      decimal.NewFromFloat(0.01),
		CheckLineTotal: true,
		CheckLineCount: true,
	}
}

// Validator compares declared amounts with the amounts implied by a set's
// lines. It reads the interpretation already chosen for the set and never
// changes any amount.
type Validator struct {
	config *ValidatorConfig
	logger logger.Logger
}

// NewValidator creates a validator; nil arguments select defaults.
func NewValidator(config *ValidatorConfig, log logger.Logger) *Validator {
	if config == nil {
		config = DefaultValidatorConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Validator{config: config, logger: log.WithComponent("validator")}
}

// Validate returns one entry per mismatch beyond tolerance. An empty report
// means the set is fully reconciled.
func (v *Validator) Validate(ts *models.TransactionSet) models.DiscrepancyReport {
	var report models.DiscrepancyReport

	i := ts.Interpretation
	if !i.IsValid() || i == models.InterpretationAmbiguous {
		i = models.InterpretationDollars
	}

	if v.config.CheckLineTotal {
		for _, li := range ts.LineItems {
			if !li.StatedTotal.Usable() {
				continue
			}
			stated := li.StatedTotal.Under(i)
			extended := li.Extended(i)
			if models.WithinTolerance(stated, extended, v.config.Tolerance) {
				continue
			}
			d := models.NewDiscrepancy(
				fmt.Sprintf("IT1 line %s extended amount", li.LineNumber),
				"AMT", li.StatedTotalPosition, amtAmountElement, stated, extended)
			d.LineNumber = li.LineNumber
			d.BadValue = li.StatedTotal.Raw
			report.Add(d)
		}
	}

	if total := ts.Header.DeclaredTotal; total.Usable() {
		declared := total.Under(i)
		computed := ts.ComputedTotal(i)
		if !models.WithinTolerance(declared, computed, v.config.Tolerance) {
			d := models.NewDiscrepancy("TDS01 total invoice amount",
				"TDS", ts.Header.DeclaredTotalPosition, tdsAmountElement, declared, computed)
			d.BadValue = total.Raw
			report.Add(d)
		}
	}

	if v.config.CheckLineCount && ts.Header.DeclaredLineCount != "" {
		lines := decimal.NewFromInt(int64(len(ts.LineItems)))
		n, err := strconv.Atoi(ts.Header.DeclaredLineCount)
		if err != nil || n != len(ts.LineItems) {
			d := models.NewDiscrepancy("CTT01 number of line items",
				"CTT", ts.Header.LineCountPosition, cttLineCountElement, decimal.NewFromInt(int64(n)), lines)
			d.BadValue = ts.Header.DeclaredLineCount
			report.Add(d)
		}
	}

	if !report.Empty() {
		l := v.logger.WithFields(logger.Fields{
			"control_number": ts.ControlNumber,
			"invoice":        ts.Header.InvoiceNumber,
			"discrepancies":  report.Len(),
		})
		for _, d := range report.Entries {
			l.Warn(d.String())
		}
	}

	return report
}
