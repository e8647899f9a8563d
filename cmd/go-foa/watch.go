package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-foa/internal/feed"
	"github.com/teslashibe/go-foa/internal/protocol"
)

func newWatchCommand(cc *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "watch SERVER",
		Short: "Follow the live report feed of a running server",
		Long:  "Follow the live report feed of a running server. SERVER is host:port or an http(s)/ws(s) URL.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := feed.StreamURL(args[0])
			if err != nil {
				return err
			}

			logger := cc.logger(os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := feed.DefaultConfig()
			cfg.URL = url
			client := feed.NewClient(cfg, logger)

			out := cmd.OutOrStdout()
			pretty := !jsonOutput && isTerminal(out)

			// Reports arrive on the client's read goroutine, one at a time
			client.OnReport(func(event protocol.ReportEvent) {
				if !pretty {
					if err := writeJSON(cmd, event); err != nil {
						logger.Warn("failed to write report", "error", err)
					}
					return
				}
				title := event.Filename
				if event.Degraded != "" {
					title += " [" + event.Degraded + "]"
				}
				fmt.Fprintf(out, "%s  %s\n", event.CompletedAt.Local().Format("15:04:05"), event.RequestID)
				fmt.Fprintln(out, renderReport(title, event.Report))
			})

			if err := client.Connect(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			client.Close()

			stats := client.GetStats()
			logger.Info("feed closed", "reports", stats.Reports, "reconnects", stats.Reconnects)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print reports as JSON lines")

	return cmd
}
