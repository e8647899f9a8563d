package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}

	if cfg.Server.MaxUploadMB != 100 {
		t.Errorf("expected max_upload_mb 100, got %d", cfg.Server.MaxUploadMB)
	}

	if cfg.Recognizer.Backend != "none" {
		t.Errorf("expected recognizer backend none, got %s", cfg.Recognizer.Backend)
	}

	if cfg.Classifier.URL != "" {
		t.Errorf("expected no classifier URL, got %s", cfg.Classifier.URL)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected level info, got %s", cfg.Logging.Level)
	}
}

func TestLoad_NoFile(t *testing.T) {
	// Load with non-existent file should use defaults
	cfg, err := Load("/nonexistent/path.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}

	if cfg.Recognizer.Timeout != 120*time.Second {
		t.Errorf("expected default recognizer timeout 120s, got %v", cfg.Recognizer.Timeout)
	}
}

func TestLoad_WithFile(t *testing.T) {
	// Create temp config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 8080
  max_upload_mb: 20
  upload_dir: /var/tmp/go-foa
classifier:
  url: http://classifier:8500
  timeout: 30s
recognizer:
  backend: http
  url: http://whisper:9000
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}

	if cfg.Server.MaxUploadMB != 20 {
		t.Errorf("expected max_upload_mb 20, got %d", cfg.Server.MaxUploadMB)
	}

	if cfg.Server.UploadDir != "/var/tmp/go-foa" {
		t.Errorf("expected upload_dir /var/tmp/go-foa, got %s", cfg.Server.UploadDir)
	}

	if cfg.Classifier.URL != "http://classifier:8500" {
		t.Errorf("expected classifier url, got %s", cfg.Classifier.URL)
	}

	if cfg.Classifier.Timeout != 30*time.Second {
		t.Errorf("expected classifier timeout 30s, got %v", cfg.Classifier.Timeout)
	}

	if cfg.Recognizer.Backend != "http" || cfg.Recognizer.URL != "http://whisper:9000" {
		t.Errorf("unexpected recognizer config %+v", cfg.Recognizer)
	}

	// Unset keys keep their defaults
	if cfg.Recognizer.Model != "whisper-1" {
		t.Errorf("expected default model whisper-1, got %s", cfg.Recognizer.Model)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("server: [unterminated"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GOFOA_SERVER_PORT", "7777")
	t.Setenv("GOFOA_RECOGNIZER_API_KEY", "sk-from-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777 from env, got %d", cfg.Server.Port)
	}

	if cfg.Recognizer.APIKey != "sk-from-env" {
		t.Errorf("expected api key from env, got %q", cfg.Recognizer.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid port too low",
			modify: func(c *Config) {
				c.Server.Port = 0
			},
			wantErr: true,
		},
		{
			name: "invalid port too high",
			modify: func(c *Config) {
				c.Server.Port = 70000
			},
			wantErr: true,
		},
		{
			name: "invalid upload limit",
			modify: func(c *Config) {
				c.Server.MaxUploadMB = 0
			},
			wantErr: true,
		},
		{
			name: "http recognizer without url",
			modify: func(c *Config) {
				c.Recognizer.Backend = "http"
			},
			wantErr: true,
		},
		{
			name: "openai recognizer with key",
			modify: func(c *Config) {
				c.Recognizer.Backend = "openai"
				c.Recognizer.APIKey = "sk-test"
			},
			wantErr: false,
		},
		{
			name: "openai recognizer without key",
			modify: func(c *Config) {
				c.Recognizer.Backend = "openai"
			},
			wantErr: true,
		},
		{
			name: "unknown recognizer backend",
			modify: func(c *Config) {
				c.Recognizer.Backend = "vosk"
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig_Timeouts(t *testing.T) {
	cfg := Default()

	if cfg.Server.ReadTimeout != 60*time.Second {
		t.Errorf("expected read_timeout 60s, got %v", cfg.Server.ReadTimeout)
	}

	if cfg.Server.WriteTimeout != 180*time.Second {
		t.Errorf("expected write_timeout 180s, got %v", cfg.Server.WriteTimeout)
	}

	if cfg.Server.GracefulTimeout != 10*time.Second {
		t.Errorf("expected graceful_timeout 10s, got %v", cfg.Server.GracefulTimeout)
	}
}
