package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVE"), 0644); err != nil {
		t.Fatalf("failed to write audio: %v", err)
	}
	return path
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.Backoff = time.Millisecond
	cfg.Timeout = 2 * time.Second
	return cfg
}

func TestNewClient_RequiresURL(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Error("expected error for empty base URL")
	}
}

func TestClient_PostFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/classify" {
			t.Errorf("expected /classify, got %s", r.URL.Path)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected multipart file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, _ := io.ReadAll(file)
		if string(data) != "RIFF....WAVE" {
			t.Errorf("unexpected upload body %q", data)
		}
		if header.Filename != "clip.wav" {
			t.Errorf("expected filename clip.wav, got %s", header.Filename)
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL+"/"), nil)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	var out map[string]string
	if err := client.PostFile(context.Background(), "/classify", writeAudio(t), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["status"] != "ok" {
		t.Errorf("expected status ok, got %v", out)
	}

	stats := client.GetStats()
	if stats.Requests != 1 || stats.Failures != 0 || stats.Retries != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "model warming up", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"text":"done"}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := client.PostFile(context.Background(), "/transcribe", writeAudio(t), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "done" {
		t.Errorf("expected text 'done', got %q", out.Text)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
	if client.GetStats().Retries != 2 {
		t.Errorf("expected 2 retries, got %d", client.GetStats().Retries)
	}
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unsupported audio", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	var out any
	err = client.PostFile(context.Background(), "/classify", writeAudio(t), &out)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", statusErr.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
	if client.GetStats().Failures != 1 {
		t.Errorf("expected 1 failure, got %d", client.GetStats().Failures)
	}
}

func TestClient_NoRetryOnBadPayload(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	var out any
	if err := client.PostFile(context.Background(), "/classify", writeAudio(t), &out); err == nil {
		t.Fatal("expected decode error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestClient_Ping(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("expected /health, got %s", r.URL.Path)
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("expected healthy ping, got %v", err)
	}

	healthy.Store(false)
	if err := client.Ping(context.Background()); err == nil {
		t.Error("expected ping error")
	}
}
