// Package inference provides the HTTP transport shared by the model service clients
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// Config holds model service client configuration
type Config struct {
	BaseURL    string        // Base URL of the model service (e.g., "http://localhost:8500")
	Timeout    time.Duration // Per-attempt HTTP timeout
	MaxRetries int           // Retries after the first attempt (transport errors and 5xx only)
	Backoff    time.Duration // Initial retry delay, doubled per attempt
	FormField  string        // Multipart field carrying the audio file
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:8500",
		Timeout:    60 * time.Second,
		MaxRetries: 2,
		Backoff:    500 * time.Millisecond,
		FormField:  "file",
	}
}

const maxBackoff = 10 * time.Second

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("service returned %d: %s", e.StatusCode, e.Body)
}

// Client uploads audio files to a model service and decodes JSON replies
type Client struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client

	// Stats
	requests atomic.Uint64
	failures atomic.Uint64
	retries  atomic.Uint64
}

// NewClient creates a new model service client
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaults.Backoff
	}
	if cfg.FormField == "" {
		cfg.FormField = defaults.FormField
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// BaseURL returns the service base URL
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// PostFile uploads the file at path to endpoint and decodes the JSON response into out
func (c *Client) PostFile(ctx context.Context, endpoint, path string, out any) error {
	c.requests.Add(1)

	backoff := c.cfg.Backoff
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.retries.Add(1)
			c.logger.Debug("retrying model request",
				"endpoint", endpoint,
				"attempt", attempt,
				"backoff", backoff,
				"error", lastErr,
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				c.failures.Add(1)
				return ctx.Err()
			}

			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		lastErr = c.postOnce(ctx, endpoint, path, out)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || ctx.Err() != nil {
			break
		}
	}

	c.failures.Add(1)
	return lastErr
}

func (c *Client) postOnce(ctx context.Context, endpoint, path string, out any) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fw, err := w.CreateFormFile(c.cfg.FormField, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}

	fd, err := os.Open(path)
	if err != nil {
		return permanent(fmt.Errorf("open audio: %w", err))
	}
	defer fd.Close()

	if _, err := io.Copy(fw, fd); err != nil {
		return fmt.Errorf("copy audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Ping checks that the service answers GET /health with a 2xx status
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// permanentError marks failures that a retry cannot fix
type permanentError struct {
	err error
}

func permanent(err error) error {
	return &permanentError{err: err}
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return true
}

// Stats represents client statistics
type Stats struct {
	Requests uint64 `json:"requests"`
	Failures uint64 `json:"failures"`
	Retries  uint64 `json:"retries"`
}

// GetStats returns client statistics
func (c *Client) GetStats() Stats {
	return Stats{
		Requests: c.requests.Load(),
		Failures: c.failures.Load(),
		Retries:  c.retries.Load(),
	}
}
