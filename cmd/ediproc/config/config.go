// Package config builds component configurations from command-line flags,
// the optional config file and EDIPROC_* environment variables.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"golang-edi-invoice-service/internal/acknowledgment"
	"golang-edi-invoice-service/internal/mailbox"
	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/internal/parsers"
	"golang-edi-invoice-service/internal/reconciler"
	"golang-edi-invoice-service/internal/reporter"
	"golang-edi-invoice-service/internal/resolver"
	"golang-edi-invoice-service/pkg/errors"
	"golang-edi-invoice-service/pkg/logger"
	"golang-edi-invoice-service/pkg/metrics"
)

// Config file sections.
const (
	SectionParse   = "parse"
	SectionAck     = "acknowledgment"
	SectionReport  = "report"
	SectionLog     = "log"
	SectionMailbox = "mailbox"
	SectionMetrics = "metrics"
)

// CreateLoggerConfig starts from the log section and raises the level to
// debug when verbose is set.
func CreateLoggerConfig(v *viper.Viper, verbose bool) (*logger.Config, error) {
	cfg := logger.DefaultConfig()
	if verbose {
		cfg = logger.DebugConfig()
	}
	if err := unmarshalSection(v, SectionLog, cfg); err != nil {
		return nil, err
	}
	if verbose {
		cfg.Level = logger.DebugLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, SectionLog, cfg.Level, err)
	}
	return cfg, nil
}

// CreateParseConfig returns the default parse settings overridden by the
// parse section.
func CreateParseConfig(v *viper.Viper) (*parsers.ParseConfig, error) {
	cfg := parsers.DefaultParseConfig()
	if err := unmarshalSection(v, SectionParse, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, SectionParse, "", err)
	}
	return cfg, nil
}

// CreateResolverConfig applies the --prefer, --fallback and --tolerance
// overrides. Empty values keep the defaults.
func CreateResolverConfig(prefer, fallback, tolerance string) (*resolver.Config, error) {
	cfg := resolver.DefaultConfig()

	if prefer != "" {
		i, ok := models.ParseInterpretation(prefer)
		if !ok {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "prefer", prefer, nil).
				WithSuggestion("use dollars or cents")
		}
		cfg.Preferred = i
	}
	if fallback != "" {
		i, ok := models.ParseInterpretation(fallback)
		if !ok {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "fallback", fallback, nil).
				WithSuggestion("use dollars or cents")
		}
		cfg.Fallback = i
	}
	if tolerance != "" {
		t, err := decimal.NewFromString(tolerance)
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "tolerance", tolerance, err)
		}
		cfg.Tolerance = t
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "resolver", tolerance, err)
	}
	return cfg, nil
}

// CreateAckConfig returns the acknowledgment settings from the
// acknowledgment section.
func CreateAckConfig(v *viper.Viper) (*acknowledgment.Config, error) {
	cfg := acknowledgment.DefaultConfig()
	if err := unmarshalSection(v, SectionAck, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, SectionAck, "", err)
	}
	return cfg, nil
}

// CreateServiceConfig assembles the processing service configuration.
func CreateServiceConfig(parse *parsers.ParseConfig, res *resolver.Config, ack *acknowledgment.Config, workers int) (*reconciler.Config, error) {
	cfg := reconciler.DefaultConfig()
	cfg.Parse = parse
	cfg.Resolver = res
	cfg.Ack = ack
	cfg.Validator.Tolerance = res.Tolerance
	if workers > 0 {
		cfg.MaxConcurrentFiles = workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "workers", workers, err)
	}
	return cfg, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(v *viper.Viper, format string) (*reporter.ReportConfig, error) {
	cfg := reporter.DefaultReportConfig()
	if err := unmarshalSection(v, SectionReport, cfg); err != nil {
		return nil, err
	}

	switch reporter.OutputFormat(strings.ToLower(format)) {
	case reporter.FormatConsole:
		cfg.Format = reporter.FormatConsole
	case reporter.FormatJSON:
		cfg.Format = reporter.FormatJSON
	case reporter.FormatCSV:
		cfg.Format = reporter.FormatCSV
		cfg.CSVHeaders = true
		if cfg.CSVDelimiter == 0 {
			cfg.CSVDelimiter = ','
		}
	case reporter.FormatXLSX:
		cfg.Format = reporter.FormatXLSX
		cfg.IncludeLineItems = true
	default:
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", format, nil).
			WithSuggestion("use console, json, csv or xlsx")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, SectionReport, format, err)
	}
	return cfg, nil
}

// CreateMetricsConfig returns the metrics namespace settings.
func CreateMetricsConfig(v *viper.Viper) (metrics.Config, error) {
	cfg := metrics.DefaultConfig()
	if err := unmarshalSection(v, SectionMetrics, &cfg); err != nil {
		return metrics.Config{}, err
	}
	if cfg.Namespace == "" {
		return metrics.Config{}, errors.ConfigurationError(errors.CodeMissingConfig, "metrics.namespace", "", nil)
	}
	return cfg, nil
}

// CreateS3Config parses an s3:// mailbox URL and fills credentials and
// endpoint settings from the mailbox section.
func CreateS3Config(v *viper.Viper, rawURL string) (mailbox.S3Config, error) {
	cfg, err := mailbox.ParseURL(rawURL)
	if err != nil {
		return mailbox.S3Config{}, errors.ConfigurationError(errors.CodeInvalidConfig, "mailbox", rawURL, err)
	}

	sub := section(v, SectionMailbox)
	cfg.Outbox = sub.GetString("outbox")
	cfg.Archive = sub.GetString("archive")
	cfg.Region = sub.GetString("region")
	cfg.Endpoint = sub.GetString("endpoint")
	cfg.AccessKey = sub.GetString("access_key")
	cfg.SecretKey = sub.GetString("secret_key")
	cfg.UsePathStyle = sub.GetBool("use_path_style")
	cfg.RequestsPerSecond = sub.GetFloat64("requests_per_second")
	cfg.Timeout = sub.GetDuration("timeout")

	if cfg.RequestsPerSecond < 0 {
		return mailbox.S3Config{}, errors.ConfigurationError(errors.CodeInvalidConfig,
			"mailbox.requests_per_second", cfg.RequestsPerSecond, nil)
	}
	if cfg.Timeout < 0 {
		return mailbox.S3Config{}, errors.ConfigurationError(errors.CodeInvalidConfig,
			"mailbox.timeout", cfg.Timeout, nil)
	}
	return cfg, nil
}

// CreateMailbox opens the mailbox named by rawURL: s3://bucket/prefix for
// S3, anything else is a local inbox directory.
func CreateMailbox(ctx context.Context, v *viper.Viper, rawURL, outbox string, log logger.Logger) (mailbox.Mailbox, error) {
	if !strings.HasPrefix(rawURL, "s3://") {
		return mailbox.NewDir(rawURL, outbox, log), nil
	}

	cfg, err := CreateS3Config(v, rawURL)
	if err != nil {
		return nil, err
	}
	if outbox != "" {
		cfg.Outbox = outbox
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return mailbox.NewS3(ctx, cfg, log)
}

func section(v *viper.Viper, name string) *viper.Viper {
	if v == nil {
		return viper.New()
	}
	if sub := v.Sub(name); sub != nil {
		return sub
	}
	return viper.New()
}

func unmarshalSection(v *viper.Viper, name string, out interface{}) error {
	if v == nil || !v.IsSet(name) {
		return nil
	}
	if err := v.UnmarshalKey(name, out); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, name, "", fmt.Errorf("decoding %s section: %w", name, err))
	}
	return nil
}
