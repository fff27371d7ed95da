package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"golang-edi-invoice-service/pkg/errors"
	"golang-edi-invoice-service/pkg/logger"
)

// CLIErrorHandler turns command errors into messages and exit codes
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     os.Stderr,
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if ediErr, ok := errors.AsEDIError(err); ok {
		return h.handleEDIError(ediErr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleEDIError(err *errors.EDIError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for k := range err.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, k := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", k, err.Context[k])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case h.isFileNotFoundError(err):
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	case h.isPermissionError(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	case h.isDiskFullError(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "\nRun with --verbose for more detail\n")
	}
	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the path is correct (use absolute paths if needed)
• Ensure the acknowledgment and report directories are writable`

	case errors.CategoryInput, errors.CategoryStructure:
		return `Input error help:
• Every interchange must start with a 106-character ISA segment
• Check the element separator (ISA position 3) and segment terminator (ISA position 105)
• Files must be ASCII, UTF-8 or Windows-1252 text
• Run 'ediproc ack FILE' to see how a single file is acknowledged`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Use 'ediproc process --help' to see all available options
• Try running with default settings first`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• Check that line items, SAC adjustments and TXI taxes add up to TDS01
• Try a trading partner profile with --partners if the sender always uses cents
• Adjust the tolerance with --tolerance`

	case errors.CategoryTransport:
		return `Mailbox error help:
• Check the bucket name and prefix in --mailbox
• Verify credentials, region and endpoint in the mailbox config section
• Lower mailbox.requests_per_second if the remote is throttling`

	default:
		return `For more help:
• Use 'ediproc --help' for general help
• Use 'ediproc process --help' for command-specific help`
	}
}

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}

// FormatBatchErrors lists failed documents from a batch error summary
func FormatBatchErrors(summary *errors.ErrorSummary) string {
	if summary == nil || summary.Total == 0 {
		return ""
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("%d document(s) failed:", summary.Total))
	for i, err := range summary.Errors {
		if i >= 10 {
			lines = append(lines, fmt.Sprintf("  ... and %d more", len(summary.Errors)-10))
			break
		}
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, err.Message))
	}
	return strings.Join(lines, "\n")
}
