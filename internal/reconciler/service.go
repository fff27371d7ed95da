// Package reconciler runs EDI 810 interchanges through the processing
// pipeline and cross-checks the resolved amounts.
//
// A single document flows through these stages:
//  1. Preprocess: decode, discover delimiters, split segments
//  2. Tokenize: split segments into elements
//  3. Assemble: build the interchange tree and record structural errors
//  4. Resolve: choose dollars or cents per transaction set
//  5. Validate: report discrepancies between declared and computed amounts
//  6. Acknowledge: derive the 997 record
//
// Only input that is not X12 at all fails a document. Structural defects,
// ambiguity and discrepancies travel with the returned data as flags,
// annotations and discrepancy reports.
//
// Example usage:
//
//	svc, err := reconciler.NewService(reconciler.DefaultConfig(), nil, log)
//	res, err := svc.Process("acme.edi", data)
//	for _, ts := range res.Interchange.TransactionSets() {
//		fmt.Println(ts.ControlNumber, ts.Interpretation, ts.Discrepancies.Len())
//	}
package reconciler

import (
	"fmt"
	"strings"
	"time"

	"golang-edi-invoice-service/internal/acknowledgment"
	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/internal/parsers"
	"golang-edi-invoice-service/internal/resolver"
	"golang-edi-invoice-service/pkg/errors"
	"golang-edi-invoice-service/pkg/logger"
	"golang-edi-invoice-service/pkg/metrics"
)

// Config holds configuration options for the processing service
type Config struct {
	Parse     *parsers.ParseConfig   `json:"parse"`
	Resolver  *resolver.Config       `json:"resolver"`
	Validator *ValidatorConfig       `json:"validator"`
	Ack       *acknowledgment.Config `json:"acknowledgment"`

	// Batch options
	MaxConcurrentFiles int           `json:"max_concurrent_files"`
	ProgressInterval   time.Duration `json:"progress_interval"`
}

// DefaultConfig returns a default configuration for the processing service
func DefaultConfig() *Config {
	return &Config{
		Parse:              parsers.DefaultParseConfig(),
		Resolver:           resolver.DefaultConfig(),
		Validator:          DefaultValidatorConfig(),
		Ack:                acknowledgment.DefaultConfig(),
		MaxConcurrentFiles: 4,
		ProgressInterval:   5 * time.Second,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Parse == nil || c.Resolver == nil || c.Validator == nil || c.Ack == nil {
		return fmt.Errorf("parse, resolver, validator and acknowledgment configuration are required")
	}
	if err := c.Parse.Validate(); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if err := c.Resolver.Validate(); err != nil {
		return fmt.Errorf("resolver: %w", err)
	}
	if err := c.Ack.Validate(); err != nil {
		return fmt.Errorf("acknowledgment: %w", err)
	}
	if c.MaxConcurrentFiles <= 0 {
		return fmt.Errorf("max concurrent files must be positive, got %d", c.MaxConcurrentFiles)
	}
	return nil
}

// PolicySource supplies the resolver policy for a trading partner.
type PolicySource interface {
	// PolicyFor returns the policy for senderID, or base when the sender
	// has no profile.
	PolicyFor(senderID string, base *resolver.Config) *resolver.Config
}

// Result is the outcome of processing one document.
type Result struct {
	Index       int                          `json:"-"`
	Source      string                       `json:"source"`
	Encoding    string                       `json:"encoding,omitempty"`
	Interchange *models.Interchange          `json:"interchange,omitempty"`
	Ack         *models.AcknowledgmentRecord `json:"acknowledgment,omitempty"`
	Flags       models.Flags                 `json:"flags"`
	Duration    time.Duration                `json:"duration"`
	Skipped     bool                         `json:"skipped,omitempty"`
	Err         error                        `json:"-"`
}

// Failed reports whether the document produced no interchange.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// Service processes documents. It holds no per-document state and may be
// shared by concurrent workers.
type Service struct {
	config    *Config
	assembler *parsers.Assembler
	resolver  *resolver.Resolver
	validator *Validator
	generator *acknowledgment.Generator
	policies  PolicySource
	metrics   *metrics.Collector
	logger    logger.Logger
}

// NewService creates a processing service. policies may be nil.
func NewService(config *Config, policies PolicySource, log logger.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler", config, err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Service{
		config:    config,
		assembler: parsers.NewAssembler(config.Parse, log),
		resolver:  resolver.New(config.Resolver, log),
		validator: NewValidator(validatorFor(config.Validator, config.Resolver), log),
		generator: acknowledgment.NewGenerator(config.Ack, log),
		policies:  policies,
		logger:    log.WithComponent("reconciler"),
	}, nil
}

// SetMetrics attaches a collector that observes every processed document.
func (s *Service) SetMetrics(c *metrics.Collector) {
	s.metrics = c
}

// Config returns the configuration in use.
func (s *Service) Config() *Config {
	return s.config
}

// Process runs one document through the pipeline. The error is non-nil
// only for input that cannot be read as an X12 interchange.
func (s *Service) Process(source string, raw []byte) (*Result, error) {
	start := time.Now()
	res := &Result{Source: source}
	log := s.logger.WithField("source", source)

	var pre *parsers.Preprocessed
	err := logger.TimedOperation("preprocess", log, func() (err error) {
		pre, err = parsers.Preprocess(source, raw, s.config.Parse)
		return err
	})
	if err != nil {
		return s.fail(res, start, err)
	}
	res.Encoding = pre.Encoding

	var ic *models.Interchange
	err = logger.TimedOperation("assemble", log, func() (err error) {
		segments := parsers.Tokenize(pre.Segments, pre.Delimiters)
		ic, err = s.assembler.Assemble(segments, pre.Delimiters)
		return err
	})
	if err != nil {
		return s.fail(res, start, err)
	}
	ic.Annotations = append(append([]models.Annotation{}, pre.Notes...), ic.Annotations...)

	rs, v := s.forSender(ic.SenderID)
	logger.TimedOperation("reconcile", log, func() error {
		for _, ts := range ic.TransactionSets() {
			if ts.IdentifierCode != "810" {
				continue
			}
			rs.Resolve(ts)
			ts.Discrepancies = v.Validate(ts)
		}
		return nil
	})

	res.Interchange = ic
	logger.TimedOperation("acknowledge", log, func() error {
		res.Ack = s.generator.Generate(ic)
		return nil
	})
	res.Flags = ic.AggregateFlags()
	res.Duration = time.Since(start)
	s.observe(res)

	log.WithFields(logger.Fields{
		"interchange": ic.ControlNumber,
		"sender":      ic.SenderID,
		"sets":        len(ic.TransactionSets()),
		"flags":       strings.Join(res.Flags.Names(), ","),
		"duration_ms": res.Duration.Milliseconds(),
	}).Info("Document processed")

	return res, nil
}

func (s *Service) fail(res *Result, start time.Time, err error) (*Result, error) {
	res.Err = errors.WrapIfNeeded(err, errors.CategoryInternal, errors.CodeUnexpectedError,
		fmt.Sprintf("processing %s", res.Source))
	res.Duration = time.Since(start)
	s.observe(res)
	s.logger.WithError(err).WithField("source", res.Source).Warn("Document rejected as malformed input")
	return res, res.Err
}

// forSender returns the resolver and validator for a trading partner.
// Validation always uses the same tolerance the resolver was given.
func (s *Service) forSender(senderID string) (*resolver.Resolver, *Validator) {
	if s.policies == nil {
		return s.resolver, s.validator
	}
	policy := s.policies.PolicyFor(strings.TrimSpace(senderID), s.config.Resolver)
	if policy == nil || policy == s.config.Resolver {
		return s.resolver, s.validator
	}
	s.logger.WithFields(logger.Fields{
		"sender":    senderID,
		"preferred": policy.Preferred,
		"fallback":  policy.Fallback,
		"tolerance": policy.Tolerance.String(),
	}).Debug("Using trading partner policy")
	return resolver.New(policy, s.logger), NewValidator(validatorFor(s.config.Validator, policy), s.logger)
}

func (s *Service) observe(res *Result) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveFile(res.Failed(), res.Duration)
	if res.Interchange == nil || res.Ack == nil {
		return
	}
	for gi, g := range res.Interchange.Groups {
		acks := res.Ack.Groups[gi].Sets
		for si, ts := range g.TransactionSets {
			interp := ""
			if ts.Resolution.Outcome != models.OutcomeUnresolved {
				interp = string(ts.Interpretation)
			}
			s.metrics.ObserveSet(acks[si].Status.String(), interp, ts.Flags.Names(), ts.Discrepancies.Len())
		}
	}
}

func validatorFor(base *ValidatorConfig, policy *resolver.Config) *ValidatorConfig {
	cfg := *base
	cfg.Tolerance = policy.Tolerance
	return &cfg
}
