package reporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/internal/reconciler"
	"golang-edi-invoice-service/pkg/logger"
)

const testDataDir = "../../testdata/examples"

func sampleBatch(t *testing.T, names ...string) *reconciler.BatchResult {
	t.Helper()
	inputs := make([]reconciler.Input, 0, len(names))
	for _, n := range names {
		inputs = append(inputs, reconciler.FileInput(filepath.Join(testDataDir, n)))
	}
	return runBatch(t, inputs...)
}

func runBatch(t *testing.T, inputs ...reconciler.Input) *reconciler.BatchResult {
	t.Helper()
	cfg := reconciler.DefaultConfig()
	cfg.Ack.Clock = func() time.Time { return time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC) }
	svc, err := reconciler.NewService(cfg, nil, logger.Discard())
	require.NoError(t, err)
	return svc.ProcessBatch(context.Background(), inputs)
}

func findInvoice(t *testing.T, rows []InvoiceRow, number string) InvoiceRow {
	t.Helper()
	for _, r := range rows {
		if r.InvoiceNumber == number {
			return r
		}
	}
	t.Fatalf("invoice %s not found", number)
	return InvoiceRow{}
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{name: "default config", config: nil},
		{name: "valid config", config: DefaultReportConfig()},
		{
			name:        "invalid format",
			config:      &ReportConfig{Format: "pdf", TableMaxWidth: 120},
			expectError: true,
		},
		{
			name:        "table width too small",
			config:      &ReportConfig{Format: FormatConsole, TableMaxWidth: 30},
			expectError: true,
		},
		{
			name:        "negative max items",
			config:      &ReportConfig{Format: FormatConsole, TableMaxWidth: 80, MaxItems: -1},
			expectError: true,
		},
		{
			name:        "csv without delimiter",
			config:      &ReportConfig{Format: FormatCSV, TableMaxWidth: 80},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, generator)
		})
	}
}

func TestOutputFormatValidation(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{FormatConsole, true},
		{FormatJSON, true},
		{FormatCSV, true},
		{FormatXLSX, true},
		{"pdf", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.format.IsValid())
		})
	}
}

func TestBuildRows(t *testing.T) {
	batch := sampleBatch(t, "valid_810.edi", "adjustments_810.edi", "not_edi.txt")

	invoices, lines := BuildRows(batch.Results)

	require.Len(t, invoices, 2)
	require.Len(t, lines, 4)

	valid := findInvoice(t, invoices, "INV-1001")
	assert.Equal(t, "SENDERID", valid.SenderID)
	assert.Equal(t, "101", valid.GroupControl)
	assert.Equal(t, "0001", valid.SetControl)
	assert.Equal(t, "ACME SUPPLY", valid.Vendor)
	assert.Equal(t, "BIG BUYER", valid.Buyer)
	assert.Equal(t, models.InterpretationDollars, valid.Interpretation)
	assert.Equal(t, models.AckAccepted, valid.Status)
	assert.Equal(t, "100.00", valid.Subtotal.StringFixed(2))
	assert.Equal(t, "100.00", valid.NetAmount.StringFixed(2))
	assert.Equal(t, "100.00", valid.DeclaredTotal)
	assert.Empty(t, valid.Flags)

	adj := findInvoice(t, invoices, "INV-7001")
	assert.Equal(t, "CAD", adj.Currency)
	assert.Equal(t, "PO-900", adj.PurchaseOrder)
	assert.Equal(t, "NORTHERN PARTS", adj.Vendor)
	assert.Equal(t, 2, adj.Lines)
	assert.Equal(t, "70.00", adj.Subtotal.StringFixed(2))
	assert.Equal(t, "-5.00", adj.Allowances.StringFixed(2))
	assert.Equal(t, "5.00", adj.Charges.StringFixed(2))
	assert.Equal(t, "8.25", adj.Taxes.StringFixed(2))
	assert.Equal(t, "78.25", adj.NetAmount.StringFixed(2))
	assert.Equal(t, "78.25", adj.DeclaredTotal)
	assert.Equal(t, "4000-100", adj.GLAccount)

	var bolt, nut LineItemRow
	for _, li := range lines {
		switch li.ProductCode {
		case "BOLT-1":
			bolt = li
		case "NUT-2":
			nut = li
		}
	}
	assert.Equal(t, "HEX BOLT", bolt.Description)
	assert.Equal(t, "4", bolt.Quantity)
	assert.Equal(t, "12.50", bolt.UnitPrice.StringFixed(2))
	assert.Equal(t, "50.00", bolt.Subtotal.StringFixed(2))
	assert.Equal(t, "-5.00", bolt.Allowances.StringFixed(2))
	assert.Equal(t, "45.00", bolt.NetAmount.StringFixed(2))
	assert.Equal(t, "4000-100", bolt.GLAccount, "line falls back to the invoice GL account")
	assert.Equal(t, "4000-200", nut.GLAccount)
	assert.Equal(t, "20.00", nut.NetAmount.StringFixed(2))
}

func TestBuildRowsSalesTaxCharge(t *testing.T) {
	raw := strings.Join([]string{
		"ISA*00*          *00*          *ZZ*SENDERID       *ZZ*RECEIVERID     *240102*1200*U*00401*000000701*0*P*>",
		"GS*IN*SENDERID*RECEIVERID*20240102*1200*701*X*004010",
		"ST*810*0001",
		"BIG*20240102*INV-8001",
		"IT1*1*2*EA*50.00**VP*SKU-1*UA*DESC001",
		"SAC*C*H850***800**********SALES TAX",
		"TDS*10800",
		"SE*6*0001",
		"GE*1*701",
		"IEA*1*000000701",
	}, "~\n") + "~\n"
	batch := runBatch(t, reconciler.Input{
		Name: "sales_tax.edi",
		Load: func(context.Context) ([]byte, error) { return []byte(raw), nil },
	})

	invoices, lines := BuildRows(batch.Results)

	inv := findInvoice(t, invoices, "INV-8001")
	assert.Equal(t, "8.00", inv.Taxes.StringFixed(2))
	assert.Equal(t, "0.00", inv.Charges.StringFixed(2))
	assert.Equal(t, "108.00", inv.NetAmount.StringFixed(2))
	assert.Empty(t, inv.Flags)
	require.Len(t, lines, 1)
	assert.Equal(t, "DESC001", lines[0].Description)
	assert.Equal(t, "8.00", lines[0].Taxes.StringFixed(2))
}

func TestBuildRowsFlagsAndStatus(t *testing.T) {
	batch := sampleBatch(t, "unreconciled_810.edi", "missing_se_810.edi")

	invoices, _ := BuildRows(batch.Results)

	require.Len(t, invoices, 3)
	assert.Equal(t, models.AckAcceptedWithErrors, invoices[0].Status)
	assert.Contains(t, invoices[0].Flags, "unreconciled")
	assert.Equal(t, 1, invoices[0].Discrepancies)
	assert.Equal(t, models.AckRejected, invoices[1].Status)
	assert.Contains(t, invoices[1].Flags, "structurally_suspect")
	assert.Equal(t, models.AckAccepted, invoices[2].Status)
}

func TestGenerateReport(t *testing.T) {
	batch := sampleBatch(t, "valid_810.edi", "adjustments_810.edi", "not_edi.txt")

	tests := []struct {
		name        string
		config      *ReportConfig
		batch       *reconciler.BatchResult
		expectError bool
		checkOutput func(t *testing.T, output []byte)
	}{
		{
			name:   "console format",
			config: DefaultReportConfig(),
			batch:  batch,
			checkOutput: func(t *testing.T, output []byte) {
				s := string(output)
				assert.Contains(t, s, "EDI 810 INVOICE REPORT")
				assert.Contains(t, s, "Run: "+batch.RunID)
				assert.Contains(t, s, "=== SUMMARY ===")
				assert.Contains(t, s, "Accepted With Errors: 0")
				assert.Contains(t, s, "=== TOTAL INVOICED ===")
				assert.Contains(t, s, "CAD  78.25")
				assert.Contains(t, s, "USD  100.00")
				assert.Contains(t, s, "invoice INV-7001: 78.25 CAD (dollars) status A")
				assert.Contains(t, s, "=== FAILED FILES ===")
				assert.Contains(t, s, "not_edi.txt")
				assert.NotContains(t, s, "=== DISCREPANCIES ===")
			},
		},
		{
			name:   "JSON format",
			config: &ReportConfig{Format: FormatJSON, TableMaxWidth: 120, IncludeLineItems: true, IncludeDiscrepancies: true, IncludeFailures: true},
			batch:  batch,
			checkOutput: func(t *testing.T, output []byte) {
				var data map[string]interface{}
				require.NoError(t, json.Unmarshal(output, &data))
				assert.Equal(t, batch.RunID, data["run_id"])
				assert.Contains(t, data, "summary")
				assert.Len(t, data["invoices"], 2)
				assert.Len(t, data["line_items"], 4)
				assert.Empty(t, data["discrepancies"])
				assert.Contains(t, data, "errors")
			},
		},
		{
			name:   "JSON without details",
			config: &ReportConfig{Format: FormatJSON, TableMaxWidth: 120},
			batch:  batch,
			checkOutput: func(t *testing.T, output []byte) {
				var data map[string]interface{}
				require.NoError(t, json.Unmarshal(output, &data))
				assert.NotContains(t, data, "line_items")
				assert.NotContains(t, data, "discrepancies")
				assert.NotContains(t, data, "errors")
			},
		},
		{
			name:   "CSV format",
			config: &ReportConfig{Format: FormatCSV, TableMaxWidth: 120, CSVDelimiter: ',', CSVHeaders: true, IncludeLineItems: true},
			batch:  batch,
			checkOutput: func(t *testing.T, output []byte) {
				records, err := csv.NewReader(bytes.NewReader(output)).ReadAll()
				require.NoError(t, err)
				require.Len(t, records, 7)
				assert.Equal(t, csvHeaders, records[0])
				assert.Equal(t, "Invoice", records[1][0])
				assert.Equal(t, "Invoice", records[2][0])
				assert.Equal(t, "INV-7001", records[2][3])
				assert.Equal(t, "78.25", records[2][17])
				assert.Equal(t, "Line Item", records[3][0])
			},
		},
		{
			name:   "CSV invoices only with semicolons",
			config: &ReportConfig{Format: FormatCSV, TableMaxWidth: 120, CSVDelimiter: ';'},
			batch:  batch,
			checkOutput: func(t *testing.T, output []byte) {
				r := csv.NewReader(bytes.NewReader(output))
				r.Comma = ';'
				records, err := r.ReadAll()
				require.NoError(t, err)
				assert.Len(t, records, 2)
			},
		},
		{
			name:   "XLSX format",
			config: &ReportConfig{Format: FormatXLSX, TableMaxWidth: 120, IncludeLineItems: true},
			batch:  batch,
			checkOutput: func(t *testing.T, output []byte) {
				f, err := excelize.OpenReader(bytes.NewReader(output))
				require.NoError(t, err)
				defer f.Close()

				assert.Equal(t, []string{SheetInvoices, SheetLineItems}, f.GetSheetList())

				rows, err := f.GetRows(SheetInvoices)
				require.NoError(t, err)
				require.Len(t, rows, 3)
				assert.Equal(t, "Source", rows[0][0])
				assert.Equal(t, "INV-1001", rows[1][4])

				lines, err := f.GetRows(SheetLineItems)
				require.NoError(t, err)
				assert.Len(t, lines, 5)
			},
		},
		{
			name:        "nil batch",
			config:      DefaultReportConfig(),
			batch:       nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)
			require.NoError(t, err)

			var buffer bytes.Buffer
			err = generator.GenerateReport(tt.batch, &buffer)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.checkOutput(t, buffer.Bytes())
		})
	}
}

func TestXLSXWithoutLineItems(t *testing.T) {
	generator, err := NewReportGenerator(&ReportConfig{Format: FormatXLSX, TableMaxWidth: 120})
	require.NoError(t, err)

	var buffer bytes.Buffer
	require.NoError(t, generator.GenerateReport(sampleBatch(t, "valid_810.edi"), &buffer))

	f, err := excelize.OpenReader(&buffer)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetInvoices}, f.GetSheetList())
}

func TestConsoleDiscrepanciesAndAnnotations(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.IncludeAnnotations = true
	generator, err := NewReportGenerator(cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(testDataDir, "valid_810.edi"))
	require.NoError(t, err)
	withUnknown := strings.NewReplacer("PID*F****WIDGET~", "PID*F****WIDGET~ZZZ*1~", "SE*10*0001", "SE*11*0001").Replace(string(data))

	batch := runBatch(t,
		reconciler.FileInput(filepath.Join(testDataDir, "unreconciled_810.edi")),
		reconciler.BytesInput("unknown_segment.edi", []byte(withUnknown)),
	)

	var buffer bytes.Buffer
	require.NoError(t, generator.GenerateReport(batch, &buffer))

	s := buffer.String()
	assert.Contains(t, s, "=== DISCREPANCIES ===")
	assert.Contains(t, s, "TDS01 total invoice amount")
	assert.Contains(t, s, "at TDS position 4")
	assert.Contains(t, s, "=== ANNOTATIONS ===")
	assert.Contains(t, s, "unexpected segment ZZZ skipped")
	assert.NotContains(t, s, "=== FAILED FILES ===")
}

func TestSortByAmount(t *testing.T) {
	batch := sampleBatch(t, "adjustments_810.edi", "valid_810.edi")
	cfg := &ReportConfig{Format: FormatCSV, TableMaxWidth: 120, CSVDelimiter: ',', SortByAmount: true}
	generator, err := NewReportGenerator(cfg)
	require.NoError(t, err)

	var buffer bytes.Buffer
	require.NoError(t, generator.GenerateReport(batch, &buffer))

	records, err := csv.NewReader(&buffer).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "INV-1001", records[0][3])
	assert.Equal(t, "INV-7001", records[1][3])
}

func TestCalculatePercentage(t *testing.T) {
	rg := &ReportGenerator{config: DefaultReportConfig()}

	assert.Equal(t, 0.0, rg.calculatePercentage(5, 0))
	assert.Equal(t, 50.0, rg.calculatePercentage(1, 2))
	assert.Equal(t, 100.0, rg.calculatePercentage(3, 3))
}

func TestTruncate(t *testing.T) {
	rg := &ReportGenerator{config: &ReportConfig{TableMaxWidth: 50}}

	assert.Equal(t, "short", rg.truncate("short"))
	long := strings.Repeat("x", 80)
	assert.Len(t, rg.truncate(long), 50)
	assert.True(t, strings.HasSuffix(rg.truncate(long), "..."))
}

func TestUpdateConfiguration(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	require.NoError(t, err)

	assert.Error(t, generator.UpdateConfiguration(&ReportConfig{Format: "pdf", TableMaxWidth: 120}))
	assert.Equal(t, FormatConsole, generator.GetConfiguration().Format)

	require.NoError(t, generator.UpdateConfiguration(&ReportConfig{Format: FormatJSON, TableMaxWidth: 120}))
	assert.Equal(t, FormatJSON, generator.GetConfiguration().Format)
}

func TestEmptyBatch(t *testing.T) {
	batch := sampleBatch(t)

	for _, format := range []OutputFormat{FormatConsole, FormatJSON, FormatCSV, FormatXLSX} {
		t.Run(string(format), func(t *testing.T) {
			generator, err := NewReportGenerator(&ReportConfig{Format: format, TableMaxWidth: 120, CSVDelimiter: ',', CSVHeaders: true})
			require.NoError(t, err)

			var buffer bytes.Buffer
			assert.NoError(t, generator.GenerateReport(batch, &buffer))
			assert.NotZero(t, buffer.Len())
		})
	}
}

// failOnceWriter rejects the first write and accepts the rest.
type failOnceWriter struct {
	failed bool
	buf    bytes.Buffer
}

func (w *failOnceWriter) Write(p []byte) (int, error) {
	if !w.failed {
		w.failed = true
		return 0, errors.New("broken pipe")
	}
	return w.buf.Write(p)
}

func TestSafeReportGeneratorFallsBackToConsole(t *testing.T) {
	srg, err := NewSafeReportGenerator(&ReportConfig{Format: FormatCSV, TableMaxWidth: 120, CSVDelimiter: ','}, logger.Discard())
	require.NoError(t, err)

	w := &failOnceWriter{}
	require.NoError(t, srg.GenerateReportSafely(sampleBatch(t, "valid_810.edi"), w))

	assert.Contains(t, w.buf.String(), "NOTE: Report generated in fallback format")
	assert.Contains(t, w.buf.String(), "EDI 810 INVOICE REPORT")
}

func TestSafeReportGeneratorInvalidConfig(t *testing.T) {
	_, err := NewSafeReportGenerator(&ReportConfig{Format: "pdf", TableMaxWidth: 120}, logger.Discard())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSafeReportGeneratorNilBatch(t *testing.T) {
	srg, err := NewSafeReportGenerator(nil, logger.Discard())
	require.NoError(t, err)

	assert.Error(t, srg.GenerateReportSafely(nil, &bytes.Buffer{}))
}

func TestWriteFile(t *testing.T) {
	batch := sampleBatch(t, "valid_810.edi")
	srg, err := NewSafeReportGenerator(&ReportConfig{Format: FormatJSON, TableMaxWidth: 120}, logger.Discard())
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	written, err := srg.WriteFile(batch, path)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestWriteFileFallsBackToBackup(t *testing.T) {
	batch := sampleBatch(t, "valid_810.edi")
	srg, err := NewSafeReportGenerator(&ReportConfig{Format: FormatJSON, TableMaxWidth: 120}, logger.Discard())
	require.NoError(t, err)

	dir := t.TempDir()
	blocked := filepath.Join(dir, "report.json")
	require.NoError(t, os.Mkdir(blocked, 0o755))

	written, err := srg.WriteFile(batch, blocked)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_backup.json"), written)
	assert.FileExists(t, written)
}

func TestGenerateBackupPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "report_backup.csv"), generateBackupPath(filepath.Join("out", "report.csv")))
	assert.Equal(t, "report_backup", generateBackupPath("report"))
}
