package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func audioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speech.wav")
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		t.Fatalf("failed to write audio: %v", err)
	}
	return path
}

func TestNewRecognizer(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
	}{
		{name: "none", cfg: Config{Backend: BackendNone}, wantNil: true},
		{name: "empty backend", cfg: Config{}, wantNil: true},
		{name: "http", cfg: Config{Backend: BackendHTTP, URL: "http://localhost:9"}},
		{name: "http without url", cfg: Config{Backend: BackendHTTP}, wantNil: true, wantErr: true},
		{name: "openai", cfg: Config{Backend: BackendOpenAI, APIKey: "sk-test"}},
		{name: "openai without key", cfg: Config{Backend: BackendOpenAI}, wantNil: true, wantErr: true},
		{name: "unknown", cfg: Config{Backend: "kaldi"}, wantNil: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRecognizer(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRecognizer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (r == nil) != tt.wantNil {
				t.Errorf("NewRecognizer() recognizer nil = %v, want %v", r == nil, tt.wantNil)
			}
		})
	}
}

func TestHTTPRecognizer_Transcribe(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "plain", body: `{"text":"hello world"}`, want: "hello world"},
		{name: "surrounding whitespace kept", body: `{"text":"  hello world \n"}`, want: "  hello world \n"},
		{name: "empty", body: `{"text":""}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/transcribe" {
					t.Errorf("expected /transcribe, got %s", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			r, err := NewHTTPRecognizer(Config{URL: server.URL, Timeout: time.Second}, nil)
			if err != nil {
				t.Fatalf("failed to create recognizer: %v", err)
			}

			text, err := r.Transcribe(context.Background(), audioFile(t))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if text != tt.want {
				t.Errorf("expected %q, got %q", tt.want, text)
			}
		})
	}
}

func TestOpenAIRecognizer_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("expected multipart body: %v", err)
		}
		if model := r.FormValue("model"); model != "whisper-1" {
			t.Errorf("expected model whisper-1, got %q", model)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":" hello from whisper\n"}`))
	}))
	defer server.Close()

	r, err := NewOpenAIRecognizer(Config{
		APIKey:  "sk-test",
		URL:     server.URL + "/v1",
		Timeout: 2 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("failed to create recognizer: %v", err)
	}

	text, err := r.Transcribe(context.Background(), audioFile(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != " hello from whisper\n" {
		t.Errorf("expected text returned verbatim, got %q", text)
	}
}

func TestOpenAIRecognizer_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	r, err := NewOpenAIRecognizer(Config{APIKey: "sk-bad", URL: server.URL + "/v1"}, nil)
	if err != nil {
		t.Fatalf("failed to create recognizer: %v", err)
	}

	if _, err := r.Transcribe(context.Background(), audioFile(t)); err == nil {
		t.Fatal("expected error")
	}
}
