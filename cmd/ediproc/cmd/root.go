package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-edi-invoice-service/cmd/ediproc/config"
	"golang-edi-invoice-service/pkg/errors"
	"golang-edi-invoice-service/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ediproc",
	Short: "X12 810 invoice processor",
	Long: `ediproc reads X12 810 invoices, decides whether each invoice's amounts are
written in dollars or cents, cross-checks line items against the declared
total, and answers every interchange with a 997 functional acknowledgment.

Examples:
  ediproc process invoices/
  ediproc process acme.edi --ack-dir acks --output-format json
  ediproc process --mailbox s3://edi-inbox/acme --partners partners.yaml
  ediproc ack acme.edi
  ediproc version`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfigErr is reported from setupLogging so that a bad config file
// goes through the normal error handler.
var initConfigErr error

// initConfig reads in config file and ENV variables.
func initConfig() {
	initConfigErr = nil
	viper.SetEnvPrefix("EDIPROC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		initConfigErr = errors.ConfigurationError(errors.CodeInvalidConfig, "config", cfgFile, err).
			WithSuggestion("check the config file path and YAML syntax")
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	if initConfigErr != nil {
		return initConfigErr
	}

	logCfg, err := config.CreateLoggerConfig(viper.GetViper(), viper.GetBool("verbose"))
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(logCfg)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, config.SectionLog, logCfg.Output, err)
	}
	logger.SetGlobalLogger(log)

	if used := viper.ConfigFileUsed(); used != "" {
		log.WithField("config_file", used).Debug("Using config file")
	}
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
