package speech

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Recognizer backends
const (
	BackendNone   = "none"
	BackendHTTP   = "http"
	BackendOpenAI = "openai"
)

// Recognizer transcribes an audio file to text
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Config selects and configures the recognizer backend
type Config struct {
	Backend    string        // none, http, openai
	URL        string        // service base URL (http) or API base URL override (openai)
	APIKey     string        // openai only
	Model      string        // openai model name
	Language   string        // optional ISO-639-1 hint
	Timeout    time.Duration // per request
	MaxRetries int           // http only
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Backend: BackendNone,
		Model:   "whisper-1",
		Timeout: 120 * time.Second,
	}
}

// NewRecognizer builds the configured backend. BackendNone yields a nil Recognizer,
// which callers treat as "transcription unavailable".
func NewRecognizer(cfg Config, logger *slog.Logger) (Recognizer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendHTTP:
		r, err := NewHTTPRecognizer(cfg, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case BackendOpenAI:
		r, err := NewOpenAIRecognizer(cfg, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown recognizer backend %q", cfg.Backend)
	}
}
