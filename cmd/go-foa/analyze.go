package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-foa/internal/analysis"
	"github.com/teslashibe/go-foa/internal/foa"
)

func newAnalyzeCommand(cc *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze one recording and print its scene report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !foa.IsSupported(path) {
				return fmt.Errorf("unsupported file format %q (supported: %v)", path, foa.SupportedExtensions)
			}

			logger := cc.logger(os.Stderr)

			services, err := buildServices(cc.cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			analyzer := analysis.New(nil, services, analysis.Config{
				DirectCorrelationLimit: cc.cfg.Analysis.DirectCorrelationLimit,
			}, logger)

			report, err := analyzer.Analyze(ctx, path)
			if err != nil {
				return err
			}

			if jsonOutput || !isTerminal(cmd.OutOrStdout()) {
				return writeJSON(cmd, report)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderReport(path, report))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")

	return cmd
}
