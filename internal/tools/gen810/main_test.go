package main

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/internal/reconciler"
	"golang-edi-invoice-service/pkg/logger"
)

func TestGeneratedScenariosResolveAsDescribed(t *testing.T) {
	want := map[string]struct {
		interpretation models.Interpretation
		outcome        models.ResolutionOutcome
	}{
		"dollars":      {models.InterpretationDollars, models.OutcomeReconciled},
		"cents":        {models.InterpretationCents, models.OutcomeReconciled},
		"adjustments":  {models.InterpretationDollars, models.OutcomeReconciled},
		"unreconciled": {models.InterpretationDollars, models.OutcomeUnreconciled},
	}

	svc, err := reconciler.NewService(reconciler.DefaultConfig(), nil, logger.Discard())
	require.NoError(t, err)
	g := &InvoiceGenerator{faker: gofakeit.New(42), sender: "GENSENDER", receiver: "RECEIVERID", control: 1}

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			for i := 0; i < 10; i++ {
				res, err := svc.Process(s.Name+".edi", []byte(g.Interchange(s)))
				require.NoError(t, err)
				sets := res.Interchange.TransactionSets()
				require.Len(t, sets, 1)

				ts := sets[0]
				assert.False(t, ts.Flags.StructurallySuspect, "%+v", ts.SyntaxErrors)
				assert.Equal(t, want[s.Name].interpretation, ts.Interpretation)
				assert.Equal(t, want[s.Name].outcome, ts.Resolution.Outcome)
			}
		})
	}
}
