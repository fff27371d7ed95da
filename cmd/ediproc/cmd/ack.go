package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-edi-invoice-service/internal/acknowledgment"
	"golang-edi-invoice-service/pkg/errors"
	"golang-edi-invoice-service/pkg/logger"
)

var (
	ackPrefer    string
	ackPartners  string
	ackTolerance string
)

var ackCmd = &cobra.Command{
	Use:   "ack FILE",
	Short: "Print the 997 acknowledgment for one invoice file",
	Long: `Ack processes a single X12 810 file and prints the 997 functional
acknowledgment that process would deliver for it.

Examples:
  ediproc ack invoices/acme.edi
  ediproc ack acme.edi --partners partners.yaml > acme_997.edi`,
	Args: cobra.ExactArgs(1),
	RunE: runAck,
}

func init() {
	rootCmd.AddCommand(ackCmd)

	ackCmd.Flags().StringVar(&ackPrefer, "prefer", "", "interpretation chosen when both reconcile (dollars or cents)")
	ackCmd.Flags().StringVar(&ackTolerance, "tolerance", "", "reconciliation tolerance in dollars (default 0.01)")
	ackCmd.Flags().StringVar(&ackPartners, "partners", "", "trading partner profiles (YAML)")
}

func runAck(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := validateFileExists(path, "invoice file"); err != nil {
		return err
	}

	log := logger.GetGlobalLogger().WithComponent("cli")
	svc, svcCfg, err := buildService(viper.GetViper(), serviceOptions{
		Prefer:    ackPrefer,
		Tolerance: ackTolerance,
		Partners:  ackPartners,
		Workers:   1,
	}, log)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.FileError(errors.CodeFileNotFound, path, err)
	}
	res, err := svc.Process(path, data)
	if err != nil {
		return err
	}
	return acknowledgment.NewRenderer(svcCfg.Ack).Render(cmd.OutOrStdout(), res.Ack)
}
