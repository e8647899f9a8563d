package speech

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-foa/internal/inference"
)

// HTTPRecognizer transcribes through a remote service answering
// POST /transcribe with {"text": "..."}
type HTTPRecognizer struct {
	http   *inference.Client
	logger *slog.Logger
}

// NewHTTPRecognizer creates a recognizer backed by a transcription service
func NewHTTPRecognizer(cfg Config, logger *slog.Logger) (*HTTPRecognizer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	icfg := inference.DefaultConfig()
	icfg.BaseURL = cfg.URL
	icfg.MaxRetries = cfg.MaxRetries
	if cfg.Timeout > 0 {
		icfg.Timeout = cfg.Timeout
	}

	client, err := inference.NewClient(icfg, logger)
	if err != nil {
		return nil, fmt.Errorf("recognizer client: %w", err)
	}

	return &HTTPRecognizer{http: client, logger: logger}, nil
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the audio file and returns the recognized text
func (r *HTTPRecognizer) Transcribe(ctx context.Context, audioPath string) (string, error) {
	var resp transcribeResponse
	if err := r.http.PostFile(ctx, "/transcribe", audioPath, &resp); err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return resp.Text, nil
}

// Ping checks that the transcription service is reachable
func (r *HTTPRecognizer) Ping(ctx context.Context) error {
	return r.http.Ping(ctx)
}
