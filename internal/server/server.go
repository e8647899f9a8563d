// Package server provides the HTTP analysis service for go-foa
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/teslashibe/go-foa/internal/analysis"
	"github.com/teslashibe/go-foa/internal/config"
	"github.com/teslashibe/go-foa/internal/foa"
	"github.com/teslashibe/go-foa/internal/health"
	"github.com/teslashibe/go-foa/internal/metrics"
	"github.com/teslashibe/go-foa/internal/protocol"
)

// Upload form field and response headers
const (
	UploadField     = "audio_file"
	HeaderRequestID = "X-Request-ID"
	HeaderDegraded  = "X-Analysis-Degraded"
)

// Error details returned to clients
const (
	errUnsupported    = "Unsupported file format"
	errMissingUpload  = "No audio file provided"
	prefixLoadFailed  = "Failed to load audio file: "
	prefixAnalysisErr = "Analysis failed: "
)

// Server is the HTTP server for go-foa
type Server struct {
	app       *fiber.App
	cfg       *config.Config
	analyzer  *analysis.Orchestrator
	health    *health.Checker
	metrics   *metrics.Metrics
	logger    *slog.Logger
	wsHub     *WSHub
	uploadDir string
	startTime time.Time
	version   string
}

// New creates a new HTTP server. checker and m may be nil.
func New(cfg *config.Config, analyzer *analysis.Orchestrator, checker *health.Checker, m *metrics.Metrics, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if checker == nil {
		checker = health.NewChecker(version, logger)
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-foa",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		BodyLimit:             cfg.Server.MaxUploadMB * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(LoggingMiddleware(logger, m))

	uploadDir := cfg.Server.UploadDir
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}

	s := &Server{
		app:       app,
		cfg:       cfg,
		analyzer:  analyzer,
		health:    checker,
		metrics:   m,
		logger:    logger,
		wsHub:     NewWSHub(analyzer.Stats(), m, logger),
		uploadDir: uploadDir,
		startTime: time.Now(),
		version:   version,
	}

	// Register routes
	s.registerRoutes()

	return s
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.app.Get("/health", s.healthHandler)

	if s.metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	s.app.Post("/analyze-audio", s.analyzeHandler)

	api := s.app.Group("/api")
	api.Get("/config", s.configHandler)
	api.Get("/stats", s.statsHandler)
	api.Get("/analysis/stream", s.wsHub.UpgradeHandler())
}

// modelsLoaded reports whether the classifier was initialized. The recognizer
// is optional and only gates transcription.
func (s *Server) modelsLoaded() bool {
	return s.analyzer.Services().Classifier != nil
}

// healthHandler returns service health
func (s *Server) healthHandler(c *fiber.Ctx) error {
	status := s.health.GetStatus()
	loaded := s.modelsLoaded()
	if !loaded {
		status.Status = health.StatusDegraded
	}

	return c.JSON(fiber.Map{
		"status":         status.Status,
		"models_loaded":  loaded,
		"version":        status.Version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"components":     status.Components,
	})
}

// analyzeHandler accepts an uploaded recording and returns its scene report
func (s *Server) analyzeHandler(c *fiber.Ctx) error {
	requestID := c.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(HeaderRequestID, requestID)

	fh, err := c.FormFile(UploadField)
	if err != nil {
		s.rejectUpload("missing_file")
		return detail(c, fiber.StatusBadRequest, errMissingUpload)
	}

	if !foa.IsSupported(fh.Filename) {
		s.rejectUpload("unsupported_format")
		return detail(c, fiber.StatusBadRequest, errUnsupported)
	}

	if s.metrics != nil {
		s.metrics.UploadBytes.Observe(float64(fh.Size))
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		s.logger.Error("failed to create upload dir", "dir", s.uploadDir, "error", err)
		return detail(c, fiber.StatusInternalServerError, prefixAnalysisErr+err.Error())
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	path := filepath.Join(s.uploadDir, uuid.NewString()+ext)
	if err := c.SaveFile(fh, path); err != nil {
		s.logger.Error("failed to save upload", "path", path, "error", err)
		return detail(c, fiber.StatusInternalServerError, prefixAnalysisErr+err.Error())
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove upload", "path", path, "error", err)
		}
	}()

	s.logger.Debug("analyzing upload",
		"request_id", requestID,
		"filename", fh.Filename,
		"size", fh.Size,
	)

	report, err := s.analyzer.Analyze(c.UserContext(), path)
	if err != nil {
		var loadErr *foa.LoadError
		if errors.As(err, &loadErr) {
			s.rejectUpload("load_error")
			return detail(c, fiber.StatusBadRequest, prefixLoadFailed+loadErr.Err.Error())
		}
		return detail(c, fiber.StatusInternalServerError, prefixAnalysisErr+err.Error())
	}

	if report.Diagnostics.Degraded != foa.DegradedNone {
		c.Set(HeaderDegraded, string(report.Diagnostics.Degraded))
	}

	s.wsHub.Publish(protocol.ReportEvent{
		RequestID:   requestID,
		Filename:    filepath.Base(fh.Filename),
		Degraded:    string(report.Diagnostics.Degraded),
		CompletedAt: time.Now().UTC(),
		Report:      report,
	})

	return c.JSON(report)
}

func (s *Server) rejectUpload(reason string) {
	if s.metrics != nil {
		s.metrics.UploadsRejected.WithLabelValues(reason).Inc()
	}
}

func detail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"detail": msg})
}

// configHandler returns current configuration, without secrets
func (s *Server) configHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"server": fiber.Map{
			"port":             s.cfg.Server.Port,
			"read_timeout_ms":  s.cfg.Server.ReadTimeout.Milliseconds(),
			"write_timeout_ms": s.cfg.Server.WriteTimeout.Milliseconds(),
			"max_upload_mb":    s.cfg.Server.MaxUploadMB,
		},
		"analysis": fiber.Map{
			"direct_correlation_limit": s.cfg.Analysis.DirectCorrelationLimit,
			"supported_extensions":     foa.SupportedExtensions,
		},
		"classifier": fiber.Map{
			"enabled":    s.cfg.Classifier.URL != "",
			"timeout_ms": s.cfg.Classifier.Timeout.Milliseconds(),
		},
		"recognizer": fiber.Map{
			"backend": s.cfg.Recognizer.Backend,
			"model":   s.cfg.Recognizer.Model,
		},
	})
}

// statsHandler returns analysis statistics
func (s *Server) statsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"analysis":     s.analyzer.Stats().Snapshot(),
		"feed_clients": s.wsHub.ClientCount(),
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		"port", s.cfg.Server.Port,
		"upload_dir", s.uploadDir,
	)

	return s.app.Listen(fmt.Sprintf(":%d", s.cfg.Server.Port))
}

// WSHub returns the report feed hub
func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	return multierr.Combine(
		s.wsHub.Close(),
		s.app.ShutdownWithContext(ctx),
	)
}
