package resolver

import (
	"fmt"

	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/pkg/logger"
)

// Resolver applies the interpretation policy to transaction sets.
type Resolver struct {
	config *Config
	logger logger.Logger
}

// New creates a resolver; nil arguments select defaults.
func New(config *Config, log logger.Logger) *Resolver {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Resolver{config: config, logger: log.WithComponent("resolver")}
}

// Config returns the policy in use.
func (r *Resolver) Config() *Config {
	return r.config
}

// Resolve selects one interpretation for ts, applies it to every amount in
// the set and records the outcome on ts. It never fails.
func (r *Resolver) Resolve(ts *models.TransactionSet) models.Resolution {
	total := ts.Header.DeclaredTotal
	res := models.Resolution{
		DeclaredDollars: total.Under(models.InterpretationDollars),
		DeclaredCents:   total.Under(models.InterpretationCents),
		DollarsTotal:    ts.ComputedTotal(models.InterpretationDollars),
		CentsTotal:      ts.ComputedTotal(models.InterpretationCents),
	}

	// A written decimal point rules out minor units for the whole set.
	res.CentsApplicable = ts.CentsApplicable()
	preferred, fallback := r.config.Preferred, r.config.Fallback
	if !res.CentsApplicable {
		preferred, fallback = models.InterpretationDollars, models.InterpretationDollars
	}

	var choice models.Interpretation
	if !total.Usable() {
		choice = preferred
		res.Outcome = models.OutcomeAmbiguousButResolved
		res.Note = fmt.Sprintf("no usable TDS total to cross-check, %s assumed", choice)
	} else {
		res.DollarsReconciles = models.WithinTolerance(res.DeclaredDollars, res.DollarsTotal, r.config.Tolerance)
		res.CentsReconciles = res.CentsApplicable &&
			models.WithinTolerance(res.DeclaredCents, res.CentsTotal, r.config.Tolerance)

		switch {
		case res.DollarsReconciles && res.CentsReconciles:
			choice = preferred
			res.Outcome = models.OutcomeAmbiguousButResolved
			res.Note = fmt.Sprintf("both interpretations reconcile, %s preferred", choice)
		case res.DollarsReconciles:
			choice = models.InterpretationDollars
			res.Outcome = models.OutcomeReconciled
		case res.CentsReconciles:
			choice = models.InterpretationCents
			res.Outcome = models.OutcomeReconciled
		default:
			choice = fallback
			res.Outcome = models.OutcomeUnreconciled
			res.Note = fmt.Sprintf("neither interpretation reconciles, %s applied", choice)
		}
	}

	for _, a := range ts.Amounts() {
		a.Apply(choice)
	}
	ts.Interpretation = choice
	ts.Resolution = res
	ts.Flags.Unreconciled = res.Outcome == models.OutcomeUnreconciled
	ts.Flags.AmbiguousButResolved = res.Outcome == models.OutcomeAmbiguousButResolved

	l := r.logger.WithFields(logger.Fields{
		"control_number": ts.ControlNumber,
		"invoice":        ts.Header.InvoiceNumber,
		"interpretation": choice,
		"outcome":        res.Outcome,
	})
	switch res.Outcome {
	case models.OutcomeUnreconciled:
		l.Warn(res.Note)
	case models.OutcomeAmbiguousButResolved:
		l.Info(res.Note)
	default:
		l.Debug("amounts resolved")
	}

	return res
}
