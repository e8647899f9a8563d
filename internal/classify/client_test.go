package classify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-foa/internal/inference"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := inference.DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.Backoff = time.Millisecond
	cfg.MaxRetries = 0

	client, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func audioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.wav")
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		t.Fatalf("failed to write audio: %v", err)
	}
	return path
}

func TestClient_Classify(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Entry
	}{
		{
			name: "bare list",
			body: `[{"label":"Speech","score":0.91},{"label":"Music","score":0.05}]`,
			want: []Entry{{Label: "Speech", Score: 0.91}, {Label: "Music", Score: 0.05}},
		},
		{
			name: "wrapped results",
			body: `{"results":[{"label":"Dog","score":0.7}]}`,
			want: []Entry{{Label: "Dog", Score: 0.7}},
		},
		{
			name: "empty list",
			body: `[]`,
			want: []Entry{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/classify" {
					t.Errorf("expected /classify, got %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			})

			got, err := client.Classify(context.Background(), audioFile(t))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d entries, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestClient_ClassifyErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "unexpected shape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`"just a string"`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			if _, err := client.Classify(context.Background(), audioFile(t)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
