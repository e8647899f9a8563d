package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-foa/internal/analysis"
	"github.com/teslashibe/go-foa/internal/config"
	"github.com/teslashibe/go-foa/internal/health"
	"github.com/teslashibe/go-foa/internal/metrics"
	"github.com/teslashibe/go-foa/internal/server"
)

// healthInterval is how often model services are probed
const healthInterval = 30 * time.Second

func newServeCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cc)
		},
	}
}

func runServe(parent context.Context, cc *commandContext) error {
	cfg := cc.cfg
	logger := cc.logger(os.Stdout)

	logger.Info("starting go-foa",
		"version", version,
		"config", cc.configPath,
		"port", cfg.Server.Port,
	)

	services, err := buildServices(cfg, logger)
	if err != nil {
		return err
	}

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	checker := health.NewChecker(version, logger)
	registerProbes(checker, services)
	checker.Refresh(ctx)
	go checker.Run(ctx, healthInterval)

	m := metrics.New()

	analyzer := analysis.New(nil, services, analysis.Config{
		DirectCorrelationLimit: cfg.Analysis.DirectCorrelationLimit,
	}, logger)
	analyzer.AddRecorder(m)

	srv := server.New(cfg, analyzer, checker, m, logger, version)

	// Start WebSocket hub in background
	go srv.WSHub().Run(ctx)

	// Start server in background
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	printStartupBanner(cfg, services, version)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("stopping after server exit")
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		cfg.Server.GracefulTimeout,
	)
	defer shutdownCancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", "error", err)
	}

	logger.Info("go-foa stopped", "analyses", analyzer.Stats().Snapshot().Analyses)
	return nil
}

func printStartupBanner(cfg *config.Config, services analysis.Services, version string) {
	fmt.Println()
	fmt.Println("🎧 go-foa v" + version)
	fmt.Println("   Acoustic scene analysis for FOA recordings")
	fmt.Println()
	fmt.Printf("🚀 Running at http://0.0.0.0:%d\n", cfg.Server.Port)
	fmt.Printf("   Classifier: %s\n", serviceState(services.Classifier != nil))
	fmt.Printf("   Recognizer: %s (%s)\n", serviceState(services.Recognizer != nil), cfg.Recognizer.Backend)
	fmt.Println()
	fmt.Println("   Endpoints:")
	fmt.Println("   POST /analyze-audio         - Analyze an uploaded recording")
	fmt.Println("   GET  /health                - Health check")
	fmt.Println("   WS   /api/analysis/stream   - Live report feed")
	fmt.Println("   GET  /api/stats             - Analysis statistics")
	fmt.Println("   GET  /metrics               - Prometheus metrics")
	fmt.Println()
	fmt.Println("   Press Ctrl+C to stop")
	fmt.Println()
}

func serviceState(loaded bool) string {
	if loaded {
		return "loaded"
	}
	return "unavailable"
}
