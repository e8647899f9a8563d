package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-foa/internal/inference"
)

// Client classifies audio through a remote classification service.
// The service answers POST /classify with either a bare list of entries or
// an object holding them under "results".
type Client struct {
	http   *inference.Client
	logger *slog.Logger
}

// NewClient creates a new classification service client
func NewClient(cfg inference.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient, err := inference.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("classifier client: %w", err)
	}

	return &Client{http: httpClient, logger: logger}, nil
}

// Classify uploads the audio file and returns the raw, unfiltered entries
func (c *Client) Classify(ctx context.Context, audioPath string) ([]Entry, error) {
	var raw json.RawMessage
	if err := c.http.PostFile(ctx, "/classify", audioPath, &raw); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	entries, err := parseEntries(raw)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	c.logger.Debug("classification received", "entries", len(entries))
	return entries, nil
}

// Ping checks that the classification service is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.http.Ping(ctx)
}

// Stats returns transport statistics
func (c *Client) Stats() inference.Stats {
	return c.http.GetStats()
}

func parseEntries(raw json.RawMessage) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, nil
	}

	var wrapped struct {
		Results []Entry `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected response shape: %w", err)
	}
	return wrapped.Results, nil
}
