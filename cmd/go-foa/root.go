package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-foa/internal/config"
)

// commandContext carries the persistent flags and the lazily loaded config
type commandContext struct {
	configPath string
	debug      bool

	cfg *config.Config
}

// load reads and validates the configuration once
func (c *commandContext) load() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c.cfg = cfg
	return cfg, nil
}

// logger builds the configured logger writing to w
func (c *commandContext) logger(w io.Writer) *slog.Logger {
	return setupLogger(c.cfg.Logging, w)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "go-foa",
		Short:         "Acoustic scene analysis for First-Order Ambisonics audio",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.load()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "/etc/go-foa/config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&ctx.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))

	return rootCmd
}
