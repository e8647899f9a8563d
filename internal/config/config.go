// Package config provides configuration management for go-foa
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides (GOFOA_SERVER_PORT, ...)
const EnvPrefix = "GOFOA"

// Config is the root configuration structure
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Recognizer RecognizerConfig `mapstructure:"recognizer"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	MaxUploadMB     int           `mapstructure:"max_upload_mb"`
	UploadDir       string        `mapstructure:"upload_dir"` // empty = os.TempDir()
}

// AnalysisConfig tunes the signal pipeline
type AnalysisConfig struct {
	DirectCorrelationLimit int `mapstructure:"direct_correlation_limit"`
}

// ClassifierConfig configures the scene classification service
type ClassifierConfig struct {
	URL        string        `mapstructure:"url"` // empty = classification unavailable
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// RecognizerConfig configures speech recognition
type RecognizerConfig struct {
	Backend    string        `mapstructure:"backend"` // none, http, openai
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Language   string        `mapstructure:"language"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    180 * time.Second,
			GracefulTimeout: 10 * time.Second,
			MaxUploadMB:     100,
		},
		Analysis: AnalysisConfig{
			DirectCorrelationLimit: 1 << 20,
		},
		Classifier: ClassifierConfig{
			Timeout:    60 * time.Second,
			MaxRetries: 2,
		},
		Recognizer: RecognizerConfig{
			Backend:    "none",
			Model:      "whisper-1",
			Timeout:    120 * time.Second,
			MaxRetries: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from file and environment.
// A .env file in the working directory is read first, without overriding
// variables that are already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			// Config file not found is okay, use defaults
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	// Server defaults
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout.String())
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout.String())
	v.SetDefault("server.graceful_timeout", d.Server.GracefulTimeout.String())
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	v.SetDefault("server.upload_dir", "")

	// Analysis defaults
	v.SetDefault("analysis.direct_correlation_limit", d.Analysis.DirectCorrelationLimit)

	// Classifier defaults
	v.SetDefault("classifier.url", "")
	v.SetDefault("classifier.timeout", d.Classifier.Timeout.String())
	v.SetDefault("classifier.max_retries", d.Classifier.MaxRetries)

	// Recognizer defaults
	v.SetDefault("recognizer.backend", d.Recognizer.Backend)
	v.SetDefault("recognizer.url", "")
	v.SetDefault("recognizer.api_key", "")
	v.SetDefault("recognizer.model", d.Recognizer.Model)
	v.SetDefault("recognizer.language", "")
	v.SetDefault("recognizer.timeout", d.Recognizer.Timeout.String())
	v.SetDefault("recognizer.max_retries", d.Recognizer.MaxRetries)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}

	if c.Analysis.DirectCorrelationLimit < 0 {
		return fmt.Errorf("direct_correlation_limit must not be negative, got %d", c.Analysis.DirectCorrelationLimit)
	}

	switch c.Recognizer.Backend {
	case "none", "":
	case "http":
		if c.Recognizer.URL == "" {
			return fmt.Errorf("recognizer backend http requires recognizer.url")
		}
	case "openai":
		if c.Recognizer.APIKey == "" {
			return fmt.Errorf("recognizer backend openai requires recognizer.api_key")
		}
	default:
		return fmt.Errorf("unknown recognizer backend %q", c.Recognizer.Backend)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}

	return nil
}
