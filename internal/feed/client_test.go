package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-foa/internal/analysis"
	"github.com/teslashibe/go-foa/internal/classify"
	"github.com/teslashibe/go-foa/internal/protocol"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ReconnectBackoff <= 0 {
		t.Error("ReconnectBackoff should be positive")
	}
	if cfg.MaxBackoff < cfg.ReconnectBackoff {
		t.Error("MaxBackoff should not be below ReconnectBackoff")
	}
	if !strings.HasSuffix(cfg.URL, StreamPath) {
		t.Errorf("default URL should target %s, got %s", StreamPath, cfg.URL)
	}
}

func TestStreamURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"localhost:8000", "ws://localhost:8000" + StreamPath, false},
		{"http://localhost:8000", "ws://localhost:8000" + StreamPath, false},
		{"https://foa.example.com/", "wss://foa.example.com" + StreamPath, false},
		{"ws://host:1/custom", "ws://host:1/custom", false},
		{"ftp://host", "", true},
		{"http://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := StreamURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("StreamURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("StreamURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSendNotConnected(t *testing.T) {
	client := NewClient(DefaultConfig(), nil)

	if err := client.RequestStats(); err == nil {
		t.Error("RequestStats should return error when not connected")
	}
	if client.GetStats().Connected {
		t.Error("Stats.Connected should be false initially")
	}
}

func TestConnectRequiresURL(t *testing.T) {
	client := NewClient(Config{}, nil)

	if err := client.Connect(context.Background()); err == nil {
		t.Error("expected error for empty URL")
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.ReconnectBackoff = 20 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReceiveReport(t *testing.T) {
	text := "hello world"
	event := protocol.ReportEvent{
		RequestID: "req-1",
		Filename:  "scene.wav",
		Report: &analysis.Report{
			Azimuth:        45,
			Classification: []classify.Entry{{Label: "Speech", Score: 0.9}},
			Transcription:  &text,
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("Upgrade error: %v", err)
			return
		}
		defer conn.Close()

		msg, _ := protocol.NewReportMessage(event)
		data, _ := msg.Bytes()
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}

		// Hold the connection open until the client leaves
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewClient(testConfig(wsURL(server)), nil)

	received := make(chan protocol.ReportEvent, 1)
	client.OnReport(func(e protocol.ReportEvent) {
		received <- e
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	select {
	case got := <-received:
		if got.RequestID != "req-1" || got.Report.Azimuth != 45 {
			t.Errorf("unexpected event %+v", got)
		}
		if got.Report.TranscriptText() != "hello world" {
			t.Errorf("expected transcript, got %q", got.Report.TranscriptText())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for report")
	}

	if client.GetStats().Reports != 1 {
		t.Errorf("expected 1 report, got %d", client.GetStats().Reports)
	}
}

func TestRequestStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := protocol.ParseMessage(data)
			if err != nil || msg.Type != protocol.TypeGetStats {
				continue
			}
			reply, _ := protocol.NewMessage(protocol.TypeStats, analysis.StatsSnapshot{Analyses: 7})
			b, _ := reply.Bytes()
			conn.WriteMessage(websocket.TextMessage, b)
		}
	}))
	defer server.Close()

	client := NewClient(testConfig(wsURL(server)), nil)

	got := make(chan analysis.StatsSnapshot, 1)
	client.OnStats(func(s analysis.StatsSnapshot) {
		got <- s
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	waitFor(t, "connection", client.IsConnected)

	if err := client.RequestStats(); err != nil {
		t.Fatalf("RequestStats() error = %v", err)
	}

	select {
	case s := <-got:
		if s.Analyses != 7 {
			t.Errorf("expected 7 analyses, got %d", s.Analyses)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stats")
	}
}

func TestReconnect(t *testing.T) {
	var connections atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Drop the first connection immediately
		if connections.Add(1) == 1 {
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewClient(testConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	waitFor(t, "second connection", func() bool { return connections.Load() >= 2 })
	waitFor(t, "reconnected client", client.IsConnected)

	if client.GetStats().Reconnects < 1 {
		t.Errorf("expected at least 1 reconnect, got %d", client.GetStats().Reconnects)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("client should be disconnected after Close")
	}
}
