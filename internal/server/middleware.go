package server

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-foa/internal/metrics"
)

// LoggingMiddleware logs HTTP requests and records them in m when it is set
func LoggingMiddleware(logger *slog.Logger, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		elapsed := time.Since(start)
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		if m != nil {
			m.ObserveHTTP(c.Method(), c.Route().Path, status, elapsed)
		}

		// Skip logging for high-frequency endpoints
		path := c.Path()
		if path == "/metrics" || path == "/health" {
			return err
		}

		logger.Info("http request",
			"method", c.Method(),
			"path", path,
			"status", status,
			"latency_ms", elapsed.Milliseconds(),
			"ip", c.IP(),
			"request_id", c.GetRespHeader(HeaderRequestID),
		)

		return err
	}
}
