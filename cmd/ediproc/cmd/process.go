package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-edi-invoice-service/cmd/ediproc/config"
	"golang-edi-invoice-service/internal/acknowledgment"
	"golang-edi-invoice-service/internal/mailbox"
	"golang-edi-invoice-service/internal/partners"
	"golang-edi-invoice-service/internal/reconciler"
	"golang-edi-invoice-service/internal/reporter"
	"golang-edi-invoice-service/pkg/errors"
	"golang-edi-invoice-service/pkg/logger"
	"golang-edi-invoice-service/pkg/metrics"
)

// Flags for the process command
var (
	mailboxURL   string
	ackDir       string
	noAcks       bool
	outputFormat string
	outputFile   string
	workers      int
	tolerance    string
	prefer       string
	fallback     string
	partnersFile string
	metricsFile  string
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process [files|dirs...]",
	Short: "Process X12 810 invoices and write 997 acknowledgments",
	Long: `Process reads every given invoice file (directories are expanded to their
.edi, .x12, .txt and .810 files), or every document in a mailbox, and:

- decides per transaction set whether amounts are dollars or cents
- cross-checks line items, adjustments and taxes against the TDS total
- writes a 997 functional acknowledgment per interchange
- prints a batch report

Acknowledgments go to --ack-dir when set, to the mailbox outbox when
--mailbox is used, and otherwise to an ack_997 directory next to each file.
A name already used in the run gets the interchange control number added.
Mailbox documents whose 997 was delivered are moved to processed/.

Examples:
  # Process a directory of invoices
  ediproc process invoices/

  # JSON report to a file, acknowledgments to a separate directory
  ediproc process acme.edi globex.edi --ack-dir acks \
    --output-format json --output-file report.json

  # Pull invoices from S3 and push 997s back to the ack_997/ outbox
  ediproc process --mailbox s3://edi-inbox/acme --partners partners.yaml

  # Treat ambiguous documents as cents and export a spreadsheet
  ediproc process invoices/ --prefer cents --output-format xlsx --output-file run.xlsx`,

	PreRunE: validateProcessFlags,
	RunE:    runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	flags := processCmd.Flags()
	flags.StringVar(&mailboxURL, "mailbox", "", "read invoices from a mailbox (s3://bucket/prefix or a directory)")
	flags.StringVar(&ackDir, "ack-dir", "", "directory for 997 acknowledgments")
	flags.BoolVar(&noAcks, "no-acks", false, "do not write 997 acknowledgments")
	flags.StringVarP(&outputFormat, "output-format", "f", "console", "report format (console, json, csv, xlsx)")
	flags.StringVarP(&outputFile, "output-file", "o", "", "write the report to a file instead of stdout")
	flags.IntVarP(&workers, "workers", "w", 0, "maximum files processed concurrently (default 4)")
	flags.StringVar(&tolerance, "tolerance", "", "reconciliation tolerance in dollars (default 0.01)")
	flags.StringVar(&prefer, "prefer", "", "interpretation chosen when both reconcile (dollars or cents)")
	flags.StringVar(&fallback, "fallback", "", "interpretation used when neither reconciles (dollars or cents)")
	flags.StringVar(&partnersFile, "partners", "", "trading partner profiles (YAML)")
	flags.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format")

	viper.BindPFlag("output-format", flags.Lookup("output-format"))
	viper.BindPFlag("workers", flags.Lookup("workers"))
	viper.BindPFlag("tolerance", flags.Lookup("tolerance"))
	viper.BindPFlag("prefer", flags.Lookup("prefer"))
	viper.BindPFlag("fallback", flags.Lookup("fallback"))
	viper.BindPFlag("partners", flags.Lookup("partners"))
	viper.BindPFlag("mailbox.url", flags.Lookup("mailbox"))
}

// validateProcessFlags validates all command-line flags for the process command
func validateProcessFlags(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && viper.GetString("mailbox.url") == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "inputs", "", nil).
			WithSuggestion("pass invoice files or directories, or use --mailbox")
	}
	if len(args) > 0 && viper.GetString("mailbox.url") != "" {
		return errors.ConfigurationError(errors.CodeConfigConflict, "mailbox", viper.GetString("mailbox.url"),
			fmt.Errorf("file arguments cannot be combined with --mailbox"))
	}
	if viper.GetInt("workers") < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "workers", viper.GetInt("workers"), nil).
			WithSuggestion("use a positive number of workers")
	}
	if noAcks && ackDir != "" {
		return errors.ConfigurationError(errors.CodeConfigConflict, "ack-dir", ackDir,
			fmt.Errorf("--ack-dir cannot be combined with --no-acks"))
	}
	if _, err := config.CreateReportConfig(viper.GetViper(), viper.GetString("output-format")); err != nil {
		return err
	}
	if p := viper.GetString("partners"); p != "" {
		if err := validateFileExists(p, "partners file"); err != nil {
			return err
		}
	}
	return nil
}

// validateFileExists checks if a file exists and is readable
func validateFileExists(path, description string) error {
	if path == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, description, "", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		code := errors.CodeFileNotFound
		if os.IsPermission(err) {
			code = errors.CodeFilePermission
		}
		return errors.FileError(code, path, err)
	}
	if info.IsDir() {
		return errors.FileError(errors.CodeFileNotFound, path, fmt.Errorf("%s is a directory", description))
	}
	return nil
}

// serviceOptions are the resolver and pool overrides shared by process and ack.
type serviceOptions struct {
	Prefer    string
	Fallback  string
	Tolerance string
	Workers   int
	Partners  string
}

func buildService(v *viper.Viper, opts serviceOptions, log logger.Logger) (*reconciler.Service, *reconciler.Config, error) {
	parseCfg, err := config.CreateParseConfig(v)
	if err != nil {
		return nil, nil, err
	}
	resCfg, err := config.CreateResolverConfig(opts.Prefer, opts.Fallback, opts.Tolerance)
	if err != nil {
		return nil, nil, err
	}
	ackCfg, err := config.CreateAckConfig(v)
	if err != nil {
		return nil, nil, err
	}
	svcCfg, err := config.CreateServiceConfig(parseCfg, resCfg, ackCfg, opts.Workers)
	if err != nil {
		return nil, nil, err
	}

	var policies reconciler.PolicySource
	if opts.Partners != "" {
		reg, err := partners.Load(opts.Partners, log)
		if err != nil {
			return nil, nil, err
		}
		policies = reg
	}

	svc, err := reconciler.NewService(svcCfg, policies, log)
	if err != nil {
		return nil, nil, err
	}
	return svc, svcCfg, nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := viper.GetViper()
	log := logger.GetGlobalLogger().WithComponent("cli")

	svc, svcCfg, err := buildService(v, serviceOptions{
		Prefer:    viper.GetString("prefer"),
		Fallback:  viper.GetString("fallback"),
		Tolerance: viper.GetString("tolerance"),
		Workers:   viper.GetInt("workers"),
		Partners:  viper.GetString("partners"),
	}, log)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if metricsFile != "" {
		mcfg, err := config.CreateMetricsConfig(v)
		if err != nil {
			return err
		}
		collector = metrics.New(mcfg)
		svc.SetMetrics(collector)
	}

	reportCfg, err := config.CreateReportConfig(v, viper.GetString("output-format"))
	if err != nil {
		return err
	}
	report, err := reporter.NewSafeReportGenerator(reportCfg, log)
	if err != nil {
		return err
	}

	var mb mailbox.Mailbox
	if u := viper.GetString("mailbox.url"); u != "" {
		mb, err = config.CreateMailbox(ctx, v, u, "", log)
		if err != nil {
			return err
		}
	}

	inputs, err := collectInputs(ctx, args, mb, log)
	if err != nil {
		return err
	}
	log.WithField("documents", len(inputs)).Info("Starting batch")

	br := svc.ProcessBatch(ctx, inputs)

	var deliveryErr error
	if !noAcks {
		deliveryErr = deliverAcks(ctx, br, acknowledgment.NewRenderer(svcCfg.Ack), mb, ackDir, log)
	}

	if outputFile != "" {
		written, err := report.WriteFile(br, outputFile)
		if err != nil {
			return err
		}
		if written != outputFile {
			fmt.Fprintf(cmd.ErrOrStderr(), "Report saved to %s\n", written)
		}
		if msg := FormatBatchErrors(br.Errors); msg != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), msg)
		}
	} else if err := report.GenerateReportSafely(br, cmd.OutOrStdout()); err != nil {
		return err
	}

	if collector != nil {
		if err := collector.WriteTextfile(metricsFile); err != nil {
			return errors.FileError(errors.CodeWriteFailed, metricsFile, err)
		}
	}

	if deliveryErr != nil {
		return deliveryErr
	}
	if br.AllMalformed() {
		return errors.MalformedInput("batch", "every input document is malformed", nil).
			WithSuggestion("check that the inputs are X12 interchanges starting with ISA")
	}
	if err := ctx.Err(); err != nil {
		return errors.InternalError("process", err)
	}
	return nil
}

// collectInputs expands directories and mailbox listings into batch inputs.
func collectInputs(ctx context.Context, args []string, mb mailbox.Mailbox, log logger.Logger) ([]reconciler.Input, error) {
	var inputs []reconciler.Input

	if mb != nil {
		names, err := mb.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			inputs = append(inputs, reconciler.Input{
				Name: name,
				Load: func(ctx context.Context) ([]byte, error) { return mb.Fetch(ctx, name) },
			})
		}
		return inputs, nil
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			// Missing files are reported per document by the batch.
			inputs = append(inputs, reconciler.FileInput(arg))
			continue
		}
		names, err := mailbox.NewDir(arg, "", log).List(ctx)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			log.WithField("directory", arg).Warn("No invoice files found")
		}
		for _, name := range names {
			inputs = append(inputs, reconciler.FileInput(filepath.Join(arg, name)))
		}
	}
	return inputs, nil
}

// deliverAcks renders and delivers the 997 of every processed document,
// then archives mailbox inputs whose 997 was delivered. Every document is
// attempted; the first failure is returned.
func deliverAcks(ctx context.Context, br *reconciler.BatchResult, r *acknowledgment.Renderer, mb mailbox.Mailbox, dir string, log logger.Logger) error {
	var sink mailbox.Mailbox
	switch {
	case dir != "":
		sink = mailbox.NewDir("", dir, log)
	case mb != nil:
		sink = mb
	}

	var first error
	fail := func(err error) {
		if first == nil {
			first = err
		}
	}

	names := acknowledgment.NewNames()
	delivered, archived := 0, 0
	for _, res := range br.Results {
		if res.Ack == nil {
			continue
		}
		data, err := r.Bytes(res.Ack)
		if err != nil {
			err = errors.InternalError("render_997", err).WithContext("source", res.Source)
			log.WithError(err).Error("Acknowledgment could not be rendered")
			fail(err)
			continue
		}

		target := sink
		if target == nil {
			target = mailbox.NewDir(filepath.Dir(res.Source), "", log)
		}
		name := names.Next(target.String(), res.Source, res.Ack.Interchange.ControlNumber)
		if err := target.Deliver(ctx, name, data); err != nil {
			log.WithError(err).WithFields(logger.Fields{
				"source":  res.Source,
				"mailbox": target.String(),
			}).Error("Acknowledgment could not be delivered")
			fail(err)
			continue
		}
		delivered++

		if mb == nil {
			continue
		}
		if err := mb.Archive(ctx, res.Source); err != nil {
			log.WithError(err).WithFields(logger.Fields{
				"source":  res.Source,
				"mailbox": mb.String(),
			}).Error("Document could not be archived")
			fail(err)
			continue
		}
		archived++
	}

	log.WithFields(logger.Fields{"delivered": delivered, "archived": archived}).Info("Acknowledgments delivered")
	return first
}
