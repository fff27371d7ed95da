package reconciler

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/pkg/errors"
	"golang-edi-invoice-service/pkg/logger"
)

// Input is one document queued for batch processing. Load is called from
// a pool worker.
type Input struct {
	Name string
	Load func(ctx context.Context) ([]byte, error)
}

// FileInput reads a document from the local filesystem.
func FileInput(path string) Input {
	return Input{
		Name: path,
		Load: func(context.Context) ([]byte, error) {
			data, err := os.ReadFile(path)
			if err == nil {
				return data, nil
			}
			code := errors.CodeFileNotFound
			if os.IsPermission(err) {
				code = errors.CodeFilePermission
			}
			return nil, errors.FileError(code, path, err)
		},
	}
}

// BytesInput wraps an in-memory document.
func BytesInput(name string, data []byte) Input {
	return Input{
		Name: name,
		Load: func(context.Context) ([]byte, error) { return data, nil },
	}
}

// BatchResult contains the results of a batch run in input order.
type BatchResult struct {
	RunID      string               `json:"run_id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Results    []*Result            `json:"results"`
	Summary    *BatchSummary        `json:"summary"`
	Errors     *errors.ErrorSummary `json:"errors,omitempty"`
}

// BatchSummary provides a high-level overview of a batch run
type BatchSummary struct {
	Files        int `json:"files"`
	FilesFailed  int `json:"files_failed"`
	FilesSkipped int `json:"files_skipped"`

	TransactionSets    int `json:"transaction_sets"`
	Accepted           int `json:"accepted"`
	AcceptedWithErrors int `json:"accepted_with_errors"`
	Rejected           int `json:"rejected"`

	Dollars              int `json:"dollars"`
	Cents                int `json:"cents"`
	Reconciled           int `json:"reconciled"`
	AmbiguousButResolved int `json:"ambiguous_but_resolved"`
	Unreconciled         int `json:"unreconciled"`
	StructurallySuspect  int `json:"structurally_suspect"`
	Discrepancies        int `json:"discrepancies"`

	// TotalInvoiced sums resolved TDS totals of non-rejected sets by currency.
	TotalInvoiced map[string]decimal.Decimal `json:"total_invoiced"`
}

// AllMalformed reports whether every processed file failed as malformed
// input. An empty batch is not considered failed.
func (br *BatchResult) AllMalformed() bool {
	processed := 0
	for _, r := range br.Results {
		if r.Skipped {
			continue
		}
		processed++
		if !errors.IsMalformedInput(r.Err) {
			return false
		}
	}
	return processed > 0
}

// ProcessBatch runs every input through Process on a bounded worker pool.
// A failing document never affects its siblings. Cancelling ctx stops new
// documents from being started; documents already running finish.
func (s *Service) ProcessBatch(ctx context.Context, inputs []Input) *BatchResult {
	br := &BatchResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := s.logger.WithComponent("batch").WithField("run_id", br.RunID)

	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "batch",
		Total:       int64(len(inputs)),
		LogInterval: s.config.ProgressInterval,
		Logger:      log,
	})

	p := pool.NewWithResults[*Result]().WithMaxGoroutines(s.config.MaxConcurrentFiles)
	for i, in := range inputs {
		p.Go(func() *Result {
			res := s.processInput(ctx, in)
			res.Index = i
			progress.Done(res.Failed() && !res.Skipped)
			return res
		})
	}
	results := p.Wait()
	sort.Slice(results, func(a, b int) bool { return results[a].Index < results[b].Index })

	progress.Complete()
	br.FinishedAt = time.Now()
	br.Results = results
	br.Summary = summarize(results)

	var failures []*errors.EDIError
	for _, r := range results {
		if r.Err == nil || r.Skipped {
			continue
		}
		failures = append(failures, errors.WrapIfNeeded(r.Err, errors.CategoryInternal,
			errors.CodeUnexpectedError, r.Source))
	}
	if len(failures) > 0 {
		br.Errors = errors.NewErrorSummary(failures)
	}
	if s.metrics != nil {
		s.metrics.MarkRun(br.FinishedAt)
	}

	log.WithFields(logger.Fields{
		"files":        br.Summary.Files,
		"failed":       br.Summary.FilesFailed,
		"skipped":      br.Summary.FilesSkipped,
		"sets":         br.Summary.TransactionSets,
		"rejected":     br.Summary.Rejected,
		"unreconciled": br.Summary.Unreconciled,
	}).Info("Batch completed")

	return br
}

func (s *Service) processInput(ctx context.Context, in Input) *Result {
	if err := ctx.Err(); err != nil {
		return &Result{Source: in.Name, Skipped: true, Err: err}
	}

	data, err := in.Load(ctx)
	if err != nil {
		res := &Result{Source: in.Name, Err: errors.WrapIfNeeded(err, errors.CategoryFile,
			errors.CodeFileNotFound, "loading "+in.Name)}
		s.logger.WithError(err).WithField("source", in.Name).Warn("Document could not be loaded")
		if s.metrics != nil {
			s.metrics.ObserveFile(true, 0)
		}
		return res
	}

	// Process records the failure on the result.
	res, _ := s.Process(in.Name, data)
	return res
}

func summarize(results []*Result) *BatchSummary {
	sum := &BatchSummary{TotalInvoiced: make(map[string]decimal.Decimal)}

	for _, r := range results {
		sum.Files++
		switch {
		case r.Skipped:
			sum.FilesSkipped++
			continue
		case r.Failed():
			sum.FilesFailed++
			continue
		}

		for gi, g := range r.Interchange.Groups {
			acks := r.Ack.Groups[gi].Sets
			for si, ts := range g.TransactionSets {
				sum.TransactionSets++
				switch acks[si].Status {
				case models.AckAccepted:
					sum.Accepted++
				case models.AckAcceptedWithErrors:
					sum.AcceptedWithErrors++
				case models.AckRejected:
					sum.Rejected++
				}

				switch ts.Resolution.Outcome {
				case models.OutcomeReconciled:
					sum.Reconciled++
				case models.OutcomeAmbiguousButResolved:
					sum.AmbiguousButResolved++
				case models.OutcomeUnreconciled:
					sum.Unreconciled++
				}
				if ts.Resolution.Outcome != models.OutcomeUnresolved {
					switch ts.Interpretation {
					case models.InterpretationDollars:
						sum.Dollars++
					case models.InterpretationCents:
						sum.Cents++
					}
				}
				if ts.Flags.StructurallySuspect {
					sum.StructurallySuspect++
				}
				sum.Discrepancies += ts.Discrepancies.Len()

				if !ts.Rejected() && ts.Header.DeclaredTotal.Usable() {
					cur := ts.Header.Currency
					sum.TotalInvoiced[cur] = sum.TotalInvoiced[cur].Add(ts.Header.DeclaredTotal.Value)
				}
			}
		}
	}
	return sum
}
