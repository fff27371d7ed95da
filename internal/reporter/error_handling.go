package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang-edi-invoice-service/internal/reconciler"
	"golang-edi-invoice-service/pkg/errors"
	"golang-edi-invoice-service/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with logging and fallbacks
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report",
			config,
			err,
		).WithSuggestion("check the report format and width settings")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely generates a report, falling back to console output
// when a structured format fails.
func (srg *SafeReportGenerator) GenerateReportSafely(batch *reconciler.BatchResult, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Debug("Starting report generation")

	if batch == nil || writer == nil {
		return errors.InternalError("report_generation", fmt.Errorf("batch result and writer are required"))
	}

	err := srg.GenerateReport(batch, writer)
	if err == nil {
		srg.logger.Debug("Report generation completed")
		return nil
	}

	srg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")
	if srg.config.Format == FormatConsole || srg.config.Format == FormatXLSX {
		return srg.wrapGenerationError(err)
	}
	return srg.generateWithFormatFallback(batch, writer, err)
}

func (srg *SafeReportGenerator) generateWithFormatFallback(batch *reconciler.BatchResult, writer io.Writer, originalErr error) error {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole

	srg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := fallbackGenerator.GenerateReport(batch, writer); err != nil {
		return errors.InternalError("report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err))
	}
	return nil
}

// WriteFile writes the report to path. When path cannot be written, the
// report is saved next to it with a _backup suffix.
func (srg *SafeReportGenerator) WriteFile(batch *reconciler.BatchResult, path string) (string, error) {
	err := srg.writeFile(batch, path)
	if err == nil {
		srg.logger.WithField("path", path).Info("Report written")
		return path, nil
	}
	if !isFileError(err) {
		return "", srg.wrapGenerationError(err)
	}

	backupPath := generateBackupPath(path)
	srg.logger.WithFields(logger.Fields{
		"original_file": path,
		"backup_file":   backupPath,
	}).WithError(err).Warn("Attempting output fallback")

	if berr := srg.writeFile(batch, backupPath); berr != nil {
		return "", errors.FileError(errors.CodeWriteFailed, path,
			fmt.Errorf("both primary and backup output failed: primary=%v, backup=%v", err, berr))
	}
	return backupPath, nil
}

func (srg *SafeReportGenerator) writeFile(batch *reconciler.BatchResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := srg.GenerateReportSafely(batch, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if e, ok := errors.AsEDIError(err); ok {
		return e
	}
	return errors.InternalError("report_generation", err).
		WithSuggestion("check the output destination and report format settings")
}

func isFileError(err error) bool {
	if os.IsPermission(err) || os.IsNotExist(err) || os.IsExist(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "no space left") ||
		strings.Contains(msg, "disk full") ||
		strings.Contains(msg, "is a directory")
}

func generateBackupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", name, ext))
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}
