package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIRecognizer transcribes with the OpenAI Whisper API
type OpenAIRecognizer struct {
	client   *openai.Client
	model    string
	language string
	logger   *slog.Logger
}

// NewOpenAIRecognizer creates a Whisper-backed recognizer
func NewOpenAIRecognizer(cfg Config, logger *slog.Logger) (*OpenAIRecognizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai recognizer requires an API key")
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.URL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.URL, "/")
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &OpenAIRecognizer{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
		language: cfg.Language,
		logger:   logger,
	}, nil
}

// Transcribe sends the audio file to the transcription endpoint
func (r *OpenAIRecognizer) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.model,
		FilePath: audioPath,
		Language: r.language,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}

	r.logger.Debug("transcription received",
		"model", r.model,
		"language", resp.Language,
		"chars", len(resp.Text),
	)

	return resp.Text, nil
}
