// Package reporter exports batch results for people and downstream systems.
//
// Supported output formats:
//   - Console: human-readable summary for terminal display
//   - JSON: the summary plus flat invoice and line rows
//   - CSV: one record per invoice and per line item
//   - XLSX: an Invoices sheet and a Line Items sheet
//
// Example usage:
//
//	gen, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatCSV})
//	err = gen.GenerateReport(batch, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/internal/reconciler"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	// Detail level options
	IncludeLineItems     bool `json:"include_line_items" mapstructure:"include_line_items"`
	IncludeDiscrepancies bool `json:"include_discrepancies" mapstructure:"include_discrepancies"`
	IncludeAnnotations   bool `json:"include_annotations" mapstructure:"include_annotations"`
	IncludeFailures      bool `json:"include_failures" mapstructure:"include_failures"`

	// Console formatting options
	TableMaxWidth int `json:"table_max_width" mapstructure:"table_max_width"`
	MaxItems      int `json:"max_items" mapstructure:"max_items"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers" mapstructure:"csv_headers"`

	SortByAmount bool `json:"sort_by_amount" mapstructure:"sort_by_amount"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:               FormatConsole,
		IncludeLineItems:     true,
		IncludeDiscrepancies: true,
		IncludeAnnotations:   false,
		IncludeFailures:      true,
		TableMaxWidth:        120,
		MaxItems:             50,
		CSVDelimiter:         ',',
		CSVHeaders:           true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}
	if c.MaxItems < 0 {
		return fmt.Errorf("max items cannot be negative, got %d", c.MaxItems)
	}
	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}
	return nil
}

// ReportGenerator generates batch reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport writes a report of the batch to writer.
func (rg *ReportGenerator) GenerateReport(batch *reconciler.BatchResult, writer io.Writer) error {
	if batch == nil {
		return fmt.Errorf("batch result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(batch, writer)
	case FormatJSON:
		return rg.generateJSONReport(batch, writer)
	case FormatCSV:
		return rg.generateCSVReport(batch, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(batch, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(batch *reconciler.BatchResult, writer io.Writer) error {
	sum := batch.Summary
	if sum == nil {
		sum = &reconciler.BatchSummary{}
	}
	invoices, _ := BuildRows(batch.Results)
	rg.sortInvoices(invoices)

	fmt.Fprintf(writer, "EDI 810 INVOICE REPORT\n")
	fmt.Fprintf(writer, "Run: %s\n", batch.RunID)
	fmt.Fprintf(writer, "Generated: %s\n", batch.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Processing Duration: %v\n\n", batch.FinishedAt.Sub(batch.StartedAt).Round(time.Millisecond))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummaryTable(sum, writer)
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== AMOUNT INTERPRETATION ===\n")
	rg.printInterpretationTable(sum, writer)
	fmt.Fprintf(writer, "\n")

	if len(sum.TotalInvoiced) > 0 {
		fmt.Fprintf(writer, "=== TOTAL INVOICED ===\n")
		rg.printTotals(sum, writer)
		fmt.Fprintf(writer, "\n")
	}

	if len(invoices) > 0 {
		fmt.Fprintf(writer, "=== INVOICES ===\n")
		rg.printInvoices(invoices, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeDiscrepancies && sum.Discrepancies > 0 {
		fmt.Fprintf(writer, "=== DISCREPANCIES ===\n")
		rg.printDiscrepancies(batch.Results, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeAnnotations {
		rg.printAnnotations(batch.Results, writer)
	}

	if rg.config.IncludeFailures && sum.FilesFailed > 0 {
		fmt.Fprintf(writer, "=== FAILED FILES ===\n")
		rg.printFailures(batch.Results, writer)
	}

	return nil
}

func (rg *ReportGenerator) generateJSONReport(batch *reconciler.BatchResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rg.filterResultForOutput(batch))
}

var csvHeaders = []string{
	"Record",
	"Source",
	"Set_Control",
	"Invoice_Number",
	"Invoice_Date",
	"Line_Number",
	"Product_Code",
	"Description",
	"Quantity",
	"Unit_Price",
	"Currency",
	"Interpretation",
	"Status",
	"Subtotal",
	"Allowances",
	"Charges",
	"Taxes",
	"Net_Amount",
	"Declared_Total",
	"GL_Account",
	"Flags",
}

func (rg *ReportGenerator) generateCSVReport(batch *reconciler.BatchResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(csvHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	invoices, lines := BuildRows(batch.Results)
	rg.sortInvoices(invoices)
	for _, inv := range invoices {
		record := []string{
			"Invoice",
			inv.Source,
			inv.SetControl,
			inv.InvoiceNumber,
			inv.InvoiceDate,
			"",
			"",
			"",
			"",
			"",
			inv.Currency,
			string(inv.Interpretation),
			string(inv.Status),
			inv.Subtotal.StringFixed(2),
			inv.Allowances.StringFixed(2),
			inv.Charges.StringFixed(2),
			inv.Taxes.StringFixed(2),
			inv.NetAmount.StringFixed(2),
			inv.DeclaredTotal,
			inv.GLAccount,
			inv.Flags,
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write invoice record: %w", err)
		}
	}

	if rg.config.IncludeLineItems {
		for _, li := range lines {
			record := []string{
				"Line Item",
				li.Source,
				li.SetControl,
				li.InvoiceNumber,
				"",
				li.LineNumber,
				li.ProductCode,
				li.Description,
				li.Quantity,
				li.UnitPrice.StringFixed(2),
				li.Currency,
				"",
				"",
				li.Subtotal.StringFixed(2),
				li.Allowances.StringFixed(2),
				li.Charges.StringFixed(2),
				li.Taxes.StringFixed(2),
				li.NetAmount.StringFixed(2),
				"",
				li.GLAccount,
				"",
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write line item record: %w", err)
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummaryTable(sum *reconciler.BatchSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Files:\n")
	fmt.Fprintf(writer, "  Total:     %d\n", sum.Files)
	fmt.Fprintf(writer, "  Failed:    %d (%.1f%%)\n", sum.FilesFailed, rg.calculatePercentage(sum.FilesFailed, sum.Files))
	if sum.FilesSkipped > 0 {
		fmt.Fprintf(writer, "  Skipped:   %d\n", sum.FilesSkipped)
	}

	fmt.Fprintf(writer, "\nTransaction Sets:\n")
	fmt.Fprintf(writer, "  Total:                %d\n", sum.TransactionSets)
	fmt.Fprintf(writer, "  Accepted:             %d (%.1f%%)\n",
		sum.Accepted, rg.calculatePercentage(sum.Accepted, sum.TransactionSets))
	fmt.Fprintf(writer, "  Accepted With Errors: %d (%.1f%%)\n",
		sum.AcceptedWithErrors, rg.calculatePercentage(sum.AcceptedWithErrors, sum.TransactionSets))
	fmt.Fprintf(writer, "  Rejected:             %d (%.1f%%)\n",
		sum.Rejected, rg.calculatePercentage(sum.Rejected, sum.TransactionSets))
}

func (rg *ReportGenerator) printInterpretationTable(sum *reconciler.BatchSummary, writer io.Writer) {
	resolved := sum.Dollars + sum.Cents
	fmt.Fprintf(writer, "Dollars:                %d (%.1f%%)\n", sum.Dollars, rg.calculatePercentage(sum.Dollars, resolved))
	fmt.Fprintf(writer, "Cents:                  %d (%.1f%%)\n", sum.Cents, rg.calculatePercentage(sum.Cents, resolved))
	fmt.Fprintf(writer, "Reconciled:             %d\n", sum.Reconciled)
	fmt.Fprintf(writer, "Ambiguous But Resolved: %d\n", sum.AmbiguousButResolved)
	fmt.Fprintf(writer, "Unreconciled:           %d\n", sum.Unreconciled)
	fmt.Fprintf(writer, "Structurally Suspect:   %d\n", sum.StructurallySuspect)
}

func (rg *ReportGenerator) printTotals(sum *reconciler.BatchSummary, writer io.Writer) {
	currencies := make([]string, 0, len(sum.TotalInvoiced))
	for c := range sum.TotalInvoiced {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		fmt.Fprintf(writer, "%-4s %s\n", c, sum.TotalInvoiced[c].StringFixed(2))
	}
}

func (rg *ReportGenerator) printInvoices(invoices []InvoiceRow, writer io.Writer) {
	fmt.Fprintf(writer, "Total Invoices: %d\n\n", len(invoices))
	for i, inv := range invoices {
		line := fmt.Sprintf("  %d. %s set %s invoice %s: %s %s (%s) status %s",
			i+1,
			inv.Source,
			inv.SetControl,
			orDash(inv.InvoiceNumber),
			inv.NetAmount.StringFixed(2),
			inv.Currency,
			inv.Interpretation,
			orDash(string(inv.Status)))
		if inv.Flags != "" {
			line += " [" + inv.Flags + "]"
		}
		fmt.Fprintln(writer, rg.truncate(line))

		if rg.config.MaxItems > 0 && i+1 >= rg.config.MaxItems && len(invoices) > rg.config.MaxItems {
			fmt.Fprintf(writer, "  ... and %d more\n", len(invoices)-rg.config.MaxItems)
			break
		}
	}
}

func (rg *ReportGenerator) printDiscrepancies(results []*reconciler.Result, writer io.Writer) {
	for _, r := range results {
		if r.Interchange == nil {
			continue
		}
		for _, ts := range r.Interchange.TransactionSets() {
			if ts.Discrepancies.Empty() {
				continue
			}
			fmt.Fprintf(writer, "%s set %s (%s):\n", r.Source, ts.ControlNumber, ts.Interpretation)
			for _, d := range ts.Discrepancies.Entries {
				fmt.Fprintf(writer, "  - %s at %s position %d\n", rg.truncate(d.String()), d.SegmentID, d.SegmentPosition)
			}
		}
	}
}

func (rg *ReportGenerator) printAnnotations(results []*reconciler.Result, writer io.Writer) {
	printed := false
	for _, r := range results {
		if r.Interchange == nil {
			continue
		}
		notes := append([]models.Annotation(nil), r.Interchange.Annotations...)
		for _, ts := range r.Interchange.TransactionSets() {
			notes = append(notes, ts.Annotations...)
		}
		if len(notes) == 0 {
			continue
		}
		if !printed {
			fmt.Fprintf(writer, "=== ANNOTATIONS ===\n")
			printed = true
		}
		fmt.Fprintf(writer, "%s:\n", r.Source)
		for _, a := range notes {
			fmt.Fprintf(writer, "  [%s] segment %d %s: %s\n",
				strings.ToUpper(string(a.Severity)), a.SegmentIndex, a.SegmentID, rg.truncate(a.Message))
		}
	}
	if printed {
		fmt.Fprintf(writer, "\n")
	}
}

func (rg *ReportGenerator) printFailures(results []*reconciler.Result, writer io.Writer) {
	for _, r := range results {
		if !r.Failed() || r.Skipped {
			continue
		}
		fmt.Fprintf(writer, "  - %s: %s\n", r.Source, rg.truncate(r.Err.Error()))
	}
}

// Helper methods

func (rg *ReportGenerator) calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func (rg *ReportGenerator) truncate(s string) string {
	if len(s) <= rg.config.TableMaxWidth {
		return s
	}
	return s[:rg.config.TableMaxWidth-3] + "..."
}

func (rg *ReportGenerator) sortInvoices(invoices []InvoiceRow) {
	if !rg.config.SortByAmount {
		return
	}
	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].NetAmount.GreaterThan(invoices[j].NetAmount)
	})
}

func (rg *ReportGenerator) filterResultForOutput(batch *reconciler.BatchResult) map[string]interface{} {
	invoices, lines := BuildRows(batch.Results)
	rg.sortInvoices(invoices)
	if invoices == nil {
		invoices = []InvoiceRow{}
	}

	output := map[string]interface{}{
		"run_id":      batch.RunID,
		"started_at":  batch.StartedAt,
		"finished_at": batch.FinishedAt,
		"summary":     batch.Summary,
		"invoices":    invoices,
	}

	if rg.config.IncludeLineItems {
		if lines == nil {
			lines = []LineItemRow{}
		}
		output["line_items"] = lines
	}

	if rg.config.IncludeDiscrepancies {
		output["discrepancies"] = discrepancyEntries(batch.Results)
	}

	if rg.config.IncludeFailures && batch.Errors != nil {
		output["errors"] = batch.Errors
	}

	return output
}

type discrepancyEntry struct {
	Source     string `json:"source"`
	SetControl string `json:"set_control"`
	Field      string `json:"field"`
	SegmentID  string `json:"segment_id"`
	Position   int    `json:"segment_position"`
	Declared   string `json:"declared"`
	Computed   string `json:"computed"`
	Delta      string `json:"delta"`
}

func discrepancyEntries(results []*reconciler.Result) []discrepancyEntry {
	entries := []discrepancyEntry{}
	for _, r := range results {
		if r.Interchange == nil {
			continue
		}
		for _, ts := range r.Interchange.TransactionSets() {
			for _, d := range ts.Discrepancies.Entries {
				entries = append(entries, discrepancyEntry{
					Source:     r.Source,
					SetControl: ts.ControlNumber,
					Field:      d.Field,
					SegmentID:  d.SegmentID,
					Position:   d.SegmentPosition,
					Declared:   d.Declared.StringFixed(2),
					Computed:   d.Computed.StringFixed(2),
					Delta:      d.Delta.StringFixed(2),
				})
			}
		}
	}
	return entries
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}
	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
