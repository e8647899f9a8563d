package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-foa/internal/analysis"
	"github.com/teslashibe/go-foa/internal/classify"
	"github.com/teslashibe/go-foa/internal/config"
	"github.com/teslashibe/go-foa/internal/health"
	"github.com/teslashibe/go-foa/internal/inference"
	"github.com/teslashibe/go-foa/internal/speech"
)

// Health component names
const (
	componentClassifier = "classifier"
	componentRecognizer = "recognizer"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// buildServices creates the model clients once at startup. A service that is not
// configured stays nil and the analyzer reports it unavailable.
func buildServices(cfg *config.Config, logger *slog.Logger) (analysis.Services, error) {
	var services analysis.Services

	if cfg.Classifier.URL != "" {
		icfg := inference.DefaultConfig()
		icfg.BaseURL = cfg.Classifier.URL
		icfg.Timeout = cfg.Classifier.Timeout
		icfg.MaxRetries = cfg.Classifier.MaxRetries

		client, err := classify.NewClient(icfg, logger)
		if err != nil {
			return services, fmt.Errorf("classifier: %w", err)
		}
		services.Classifier = client
	} else {
		logger.Warn("classifier url not set, classification unavailable")
	}

	recognizer, err := speech.NewRecognizer(speech.Config{
		Backend:    cfg.Recognizer.Backend,
		URL:        cfg.Recognizer.URL,
		APIKey:     cfg.Recognizer.APIKey,
		Model:      cfg.Recognizer.Model,
		Language:   cfg.Recognizer.Language,
		Timeout:    cfg.Recognizer.Timeout,
		MaxRetries: cfg.Recognizer.MaxRetries,
	}, logger)
	if err != nil {
		return services, fmt.Errorf("recognizer: %w", err)
	}
	if recognizer == nil {
		logger.Warn("recognizer backend disabled, transcription unavailable")
	}
	services.Recognizer = recognizer

	return services, nil
}

// registerProbes reports each model service on the health checker
func registerProbes(checker *health.Checker, services analysis.Services) {
	register := func(name string, svc any, required bool) {
		if svc == nil {
			if required {
				checker.SetComponent(name, false, "not configured")
			} else {
				checker.SetComponent(name, true, "disabled")
			}
			return
		}
		if p, ok := svc.(pinger); ok {
			checker.Register(name, p.Ping)
			return
		}
		checker.SetComponent(name, true, "loaded")
	}

	register(componentClassifier, services.Classifier, true)
	register(componentRecognizer, services.Recognizer, false)
}
