package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory groups errors by the stage that produced them
type ErrorCategory string

const (
	CategoryInput          ErrorCategory = "input"
	CategoryStructure      ErrorCategory = "structure"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryFile           ErrorCategory = "file"
	CategoryTransport      ErrorCategory = "transport"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Input errors abort processing of a single file
	CodeMalformedInput    ErrorCode = "malformed_input"
	CodeMalformedDocument ErrorCode = "malformed_document"
	CodeEncodingError     ErrorCode = "encoding_error"

	// Structure and reconciliation codes are carried as flags, not returned
	CodeStructurallySuspect  ErrorCode = "structurally_suspect"
	CodeUnreconciled         ErrorCode = "unreconciled"
	CodeAmbiguousButResolved ErrorCode = "ambiguous_but_resolved"

	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeDirectoryError ErrorCode = "directory_error"
	CodeWriteFailed    ErrorCode = "write_failed"

	// Configuration errors
	CodeInvalidConfig  ErrorCode = "invalid_config"
	CodeMissingConfig  ErrorCode = "missing_config"
	CodeConfigConflict ErrorCode = "config_conflict"

	// Transport errors
	CodeConnectionFailed ErrorCode = "connection_failed"
	CodeRemoteNotFound   ErrorCode = "remote_not_found"
	CodeTimeout          ErrorCode = "timeout"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// EDIError is the base error type for all application errors
type EDIError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *EDIError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", msg, e.Suggestion)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *EDIError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *EDIError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryInput, CategoryStructure:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	case CategoryTransport:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *EDIError) WithContext(key string, value interface{}) *EDIError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *EDIError) WithSuggestion(suggestion string) *EDIError {
	e.Suggestion = suggestion
	return e
}

// New creates a new EDIError
func New(category ErrorCategory, code ErrorCode, message string) *EDIError {
	return &EDIError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with EDIError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *EDIError {
	if err == nil {
		return nil
	}

	return &EDIError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func newOrWrap(err error, category ErrorCategory, code ErrorCode, message string) *EDIError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// MalformedInput reports input that cannot be recognized as X12 at all.
func MalformedInput(source, reason string, err error) *EDIError {
	return newOrWrap(err, CategoryInput, CodeMalformedInput,
		fmt.Sprintf("malformed input %s: %s", source, reason)).
		WithSuggestion("verify the file is an X12 interchange beginning with an ISA header").
		WithContext("source", source)
}

// MalformedDocument reports an interchange whose envelope cannot be assembled.
// index is the zero-based position of the offending segment.
func MalformedDocument(index int, segmentID, reason string) *EDIError {
	return New(CategoryInput, CodeMalformedDocument,
		fmt.Sprintf("malformed document at segment %d (%s): %s", index, segmentID, reason)).
		WithSuggestion("check the ISA/GS envelope of the interchange").
		WithContext("segment_index", index).
		WithContext("segment_id", segmentID)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *EDIError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeDirectoryError:
		message = fmt.Sprintf("directory error: %s", path)
		suggestion = "ensure the directory exists and is accessible"
	case CodeWriteFailed:
		message = fmt.Sprintf("failed to write file: %s", path)
		suggestion = "ensure the output location is writable"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return newOrWrap(err, CategoryFile, code, message).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *EDIError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	case CodeConfigConflict:
		message = fmt.Sprintf("configuration conflict with setting '%s': %v", setting, value)
		suggestion = "resolve the conflicting settings or use default values"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return newOrWrap(err, CategoryConfiguration, code, message).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// TransportError creates an error for remote mailbox operations
func TransportError(code ErrorCode, endpoint string, err error) *EDIError {
	var message, suggestion string

	switch code {
	case CodeConnectionFailed:
		message = fmt.Sprintf("connection failed to %s", endpoint)
		suggestion = "check credentials, region and network connectivity"
	case CodeRemoteNotFound:
		message = fmt.Sprintf("remote object not found: %s", endpoint)
		suggestion = "verify the mailbox bucket and prefix"
	case CodeTimeout:
		message = fmt.Sprintf("timeout talking to %s", endpoint)
		suggestion = "increase the timeout or retry later"
	default:
		message = fmt.Sprintf("transport error: %s", endpoint)
		suggestion = "check the mailbox configuration and try again"
	}

	return newOrWrap(err, CategoryTransport, code, message).
		WithSuggestion(suggestion).
		WithContext("endpoint", endpoint)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *EDIError {
	return newOrWrap(err, CategoryInternal, CodeUnexpectedError,
		fmt.Sprintf("unexpected error during %s", operation)).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*EDIError           `json:"errors"`
	SampleErrors []*EDIError           `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*EDIError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if summary.Errors == nil {
		summary.Errors = []*EDIError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	const maxSamples = 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}
	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	categories := make([]string, 0, len(es.ByCategory))
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	sort.Strings(categories)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}
	return maxCode
}

// AsEDIError extracts an EDIError from an error chain
func AsEDIError(err error) (*EDIError, bool) {
	var ediErr *EDIError
	if errors.As(err, &ediErr) {
		return ediErr, true
	}
	return nil, false
}

// IsMalformedInput reports whether err aborts a single file's processing.
func IsMalformedInput(err error) bool {
	e, ok := AsEDIError(err)
	return ok && e.Category == CategoryInput
}

// WrapIfNeeded wraps an error if it's not already an EDIError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *EDIError {
	if err == nil {
		return nil
	}
	if ediErr, ok := AsEDIError(err); ok {
		return ediErr
	}
	return Wrap(err, category, code, message)
}
