package reconciler

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-edi-invoice-service/internal/acknowledgment"
	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/internal/resolver"
	"golang-edi-invoice-service/pkg/errors"
	"golang-edi-invoice-service/pkg/logger"
	"golang-edi-invoice-service/pkg/metrics"
)

func TestProcessExamples(t *testing.T) {
	tests := []struct {
		file           string
		interpretation models.Interpretation
		outcome        models.ResolutionOutcome
		status         models.AckStatus
		groupStatus    models.AckStatus
		discrepancies  int
		flags          []string
	}{
		{
			file:           "valid_810.edi",
			interpretation: models.InterpretationDollars,
			outcome:        models.OutcomeReconciled,
			status:         models.AckAccepted,
			groupStatus:    models.AckAccepted,
		},
		{
			file:           "cents_810.edi",
			interpretation: models.InterpretationCents,
			outcome:        models.OutcomeReconciled,
			status:         models.AckAccepted,
			groupStatus:    models.AckAccepted,
		},
		{
			file:           "ambiguous_810.edi",
			interpretation: models.InterpretationDollars,
			outcome:        models.OutcomeAmbiguousButResolved,
			status:         models.AckAccepted,
			groupStatus:    models.AckAccepted,
			flags:          []string{"ambiguous_but_resolved"},
		},
		{
			file:           "unreconciled_810.edi",
			interpretation: models.InterpretationDollars,
			outcome:        models.OutcomeUnreconciled,
			status:         models.AckAcceptedWithErrors,
			groupStatus:    models.AckAcceptedWithErrors,
			discrepancies:  1,
			flags:          []string{"unreconciled"},
		},
		{
			file:           "adjustments_810.edi",
			interpretation: models.InterpretationDollars,
			outcome:        models.OutcomeReconciled,
			status:         models.AckAccepted,
			groupStatus:    models.AckAccepted,
		},
	}

	svc := newTestService(t, nil)

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			res, err := svc.Process(tt.file, readExample(t, tt.file))
			require.NoError(t, err)
			require.NotNil(t, res.Interchange)

			sets := res.Interchange.TransactionSets()
			require.Len(t, sets, 1)
			ts := sets[0]

			assert.Equal(t, tt.interpretation, ts.Interpretation)
			assert.Equal(t, tt.outcome, ts.Resolution.Outcome)
			assert.Equal(t, tt.discrepancies, ts.Discrepancies.Len())
			assert.Equal(t, tt.flags, res.Flags.Names())

			status, ok := res.Ack.SetStatus(ts.ControlNumber)
			require.True(t, ok)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.groupStatus, res.Ack.Groups[0].Status)
		})
	}
}

func TestProcessMissingTrailerRejectsOnlyThatSet(t *testing.T) {
	svc := newTestService(t, nil)

	res, err := svc.Process("missing_se_810.edi", readExample(t, "missing_se_810.edi"))
	require.NoError(t, err)

	first, _ := res.Ack.SetStatus("0001")
	second, _ := res.Ack.SetStatus("0002")
	assert.Equal(t, models.AckRejected, first)
	assert.Equal(t, models.AckAccepted, second)

	ga := res.Ack.Groups[0]
	assert.Equal(t, models.AckPartiallyAccepted, ga.Status)
	assert.Equal(t, []string{models.SetTrailerMissing}, ga.Sets[0].SyntaxErrorCodes)
	assert.Equal(t, 2, ga.Included)
	assert.Equal(t, 2, ga.Received)
	assert.Equal(t, 1, ga.Accepted)
	assert.True(t, res.Flags.StructurallySuspect)
}

func TestProcessRoundTripsControlNumbers(t *testing.T) {
	svc := newTestService(t, nil)

	res, err := svc.Process("valid_810.edi", readExample(t, "valid_810.edi"))
	require.NoError(t, err)

	ic := res.Interchange
	assert.Equal(t, ic.ControlNumber, res.Ack.Interchange.ControlNumber)
	for gi, g := range ic.Groups {
		ga := res.Ack.Groups[gi]
		assert.Equal(t, g.ControlNumber, ga.ControlNumber)
		for si, ts := range g.TransactionSets {
			assert.Equal(t, ts.ControlNumber, ga.Sets[si].ControlNumber)
		}
	}
}

func TestProcessAdjustedInvoice(t *testing.T) {
	svc := newTestService(t, nil)

	res, err := svc.Process("adjustments_810.edi", readExample(t, "adjustments_810.edi"))
	require.NoError(t, err)
	ts := res.Interchange.TransactionSets()[0]

	assert.Equal(t, "CAD", ts.Header.Currency)
	assert.True(t, decimal.RequireFromString("78.25").Equal(ts.Header.DeclaredTotal.Value))
	assert.True(t, decimal.RequireFromString("78.25").Equal(ts.ComputedTotal(ts.Interpretation)))
	require.Len(t, ts.LineItems, 2)
	assert.True(t, decimal.NewFromInt(5).Equal(ts.LineItems[0].Adjustments[0].Amount.Value))
}

func TestProcessExplicitDecimalMismatch(t *testing.T) {
	svc := newTestService(t, nil)
	raw := invoice("SENDERID", "BIG*20240102*INV-9001", "IT1*1*1*EA*100.00", "TDS*100.50")

	res, err := svc.Process("short.edi", []byte(raw))
	require.NoError(t, err)
	ts := res.Interchange.TransactionSets()[0]

	assert.Equal(t, models.InterpretationDollars, ts.Interpretation)
	assert.Equal(t, models.OutcomeUnreconciled, ts.Resolution.Outcome)
	assert.False(t, ts.Resolution.CentsApplicable)
	assert.True(t, decimal.RequireFromString("100.50").Equal(ts.Header.DeclaredTotal.Value))
	require.Equal(t, 1, ts.Discrepancies.Len())
	assert.Equal(t, "TDS", ts.Discrepancies.Entries[0].SegmentID)

	status, ok := res.Ack.SetStatus(ts.ControlNumber)
	require.True(t, ok)
	assert.Equal(t, models.AckAcceptedWithErrors, status)
}

func TestProcessLogsStageTimings(t *testing.T) {
	var buf bytes.Buffer
	l, err := logger.NewLoggerWithWriter(&logger.Config{
		Level: logger.DebugLevel, Format: logger.JSONFormat, DisableTimestamp: true,
	}, &buf)
	require.NoError(t, err)
	svc, err := NewService(testConfig(), nil, l)
	require.NoError(t, err)

	_, err = svc.Process("valid_810.edi", readExample(t, "valid_810.edi"))
	require.NoError(t, err)

	for _, stage := range []string{"preprocess", "assemble", "reconcile", "acknowledge"} {
		assert.Contains(t, buf.String(), `"operation":"`+stage+`"`)
	}

	buf.Reset()
	_, err = svc.Process("not_edi.txt", readExample(t, "not_edi.txt"))
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"operation":"preprocess"`)
	assert.NotContains(t, buf.String(), `"operation":"assemble"`)
}

func TestProcessMalformedInput(t *testing.T) {
	svc := newTestService(t, nil)

	res, err := svc.Process("not_edi.txt", readExample(t, "not_edi.txt"))
	require.Error(t, err)
	assert.True(t, errors.IsMalformedInput(err))
	assert.True(t, res.Failed())
	assert.Nil(t, res.Interchange)
	assert.Nil(t, res.Ack)
}

func TestProcessPreprocessorNotesKept(t *testing.T) {
	svc := newTestService(t, nil)
	raw := append([]byte{0xEF, 0xBB, 0xBF}, readExample(t, "valid_810.edi")...)

	res, err := svc.Process("bom.edi", raw)
	require.NoError(t, err)
	require.NotEmpty(t, res.Interchange.Annotations)
	assert.Contains(t, res.Interchange.Annotations[0].Message, "byte order mark")
}

type stubPolicies struct {
	sender string
	policy *resolver.Config
}

func (s stubPolicies) PolicyFor(senderID string, base *resolver.Config) *resolver.Config {
	if senderID == s.sender {
		return s.policy
	}
	return base
}

func TestProcessUsesPartnerPolicy(t *testing.T) {
	cents := resolver.DefaultConfig()
	cents.Preferred = models.InterpretationCents
	svc := newTestService(t, stubPolicies{sender: "SENDERID", policy: cents})

	res, err := svc.Process("ambiguous_810.edi", readExample(t, "ambiguous_810.edi"))
	require.NoError(t, err)
	ts := res.Interchange.TransactionSets()[0]

	assert.Equal(t, models.InterpretationCents, ts.Interpretation)
	assert.Equal(t, models.OutcomeAmbiguousButResolved, ts.Resolution.Outcome)

	other, err := svc.Process("cents_810.edi", readExample(t, "cents_810.edi"))
	require.NoError(t, err)
	assert.Equal(t, models.InterpretationCents, other.Interchange.TransactionSets()[0].Interpretation)
}

func TestProcessRecordsMetrics(t *testing.T) {
	svc := newTestService(t, nil)
	c := metrics.New(metrics.DefaultConfig())
	svc.SetMetrics(c)

	_, err := svc.Process("unreconciled_810.edi", readExample(t, "unreconciled_810.edi"))
	require.NoError(t, err)
	_, err = svc.Process("not_edi.txt", readExample(t, "not_edi.txt"))
	require.Error(t, err)

	families, err := c.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "ediproc_files_total")
	assert.Contains(t, names, "ediproc_discrepancies_total")
	assert.Contains(t, names, "ediproc_flags_total")
}

func TestRenderedAcknowledgments(t *testing.T) {
	svc := newTestService(t, nil)
	renderer := acknowledgment.NewRenderer(svc.Config().Ack)
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))

	for _, name := range []string{"valid_810", "missing_se_810", "unreconciled_810"} {
		t.Run(name, func(t *testing.T) {
			res, err := svc.Process(name+".edi", readExample(t, name+".edi"))
			require.NoError(t, err)

			out, err := renderer.Bytes(res.Ack)
			require.NoError(t, err)
			g.Assert(t, name+"_997", out)
		})
	}
}

func TestNewServiceRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentFiles = 0

	_, err := NewService(cfg, nil, logger.Discard())
	require.Error(t, err)
	e, ok := errors.AsEDIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryConfiguration, e.Category)
}
