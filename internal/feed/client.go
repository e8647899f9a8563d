// Package feed subscribes to the live report feed of a running go-foa server
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-foa/internal/analysis"
	"github.com/teslashibe/go-foa/internal/protocol"
)

// StreamPath is the feed endpoint on the server
const StreamPath = "/api/analysis/stream"

// Config holds feed client configuration
type Config struct {
	URL              string        // WebSocket URL (e.g., "ws://localhost:8000/api/analysis/stream")
	ReconnectBackoff time.Duration // Initial reconnect delay
	MaxBackoff       time.Duration // Maximum reconnect delay
	PingInterval     time.Duration // Ping interval for keepalive
	WriteTimeout     time.Duration // Write timeout
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		URL:              "ws://localhost:8000" + StreamPath,
		ReconnectBackoff: 1 * time.Second,
		MaxBackoff:       30 * time.Second,
		PingInterval:     10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// StreamURL turns a server address (http://host:port, ws://host:port or host:port)
// into the feed WebSocket URL
func StreamURL(server string) (string, error) {
	if !strings.Contains(server, "://") {
		server = "ws://" + server
	}

	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", server, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server address %q: missing host", server)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = StreamPath
	}
	return u.String(), nil
}

// Client subscribes to the report feed with auto-reconnect
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}

	// Callbacks for incoming messages
	onReport func(protocol.ReportEvent)
	onStats  func(analysis.StatsSnapshot)

	// Stats
	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	reports          atomic.Uint64
	reconnects       atomic.Uint64
}

// NewClient creates a new feed client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
	}
}

// OnReport sets the callback for completed reports
func (c *Client) OnReport(callback func(protocol.ReportEvent)) {
	c.mu.Lock()
	c.onReport = callback
	c.mu.Unlock()
}

// OnStats sets the callback for stats replies
func (c *Client) OnStats(callback func(analysis.StatsSnapshot)) {
	c.mu.Lock()
	c.onStats = callback
	c.mu.Unlock()
}

// Connect starts the connection loop in the background
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.URL == "" {
		return fmt.Errorf("feed url is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.connectionLoop(ctx)
	}()
	return nil
}

// connectionLoop manages connection with auto-reconnect
func (c *Client) connectionLoop(ctx context.Context) {
	backoff := c.cfg.ReconnectBackoff
	first := true

	for {
		select {
		case <-ctx.Done():
			c.closeConnection()
			return
		default:
		}

		if !first {
			c.reconnects.Add(1)
		}
		first = false

		conn, err := c.connect(ctx)
		if err != nil {
			c.logger.Warn("feed connection failed",
				"error", err,
				"retry_in", backoff,
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}

			// Exponential backoff
			backoff *= 2
			if backoff > c.cfg.MaxBackoff {
				backoff = c.cfg.MaxBackoff
			}
			continue
		}

		// Close raced with the dial
		if ctx.Err() != nil {
			c.closeConnection()
			return
		}

		// Reset backoff on successful connection
		backoff = c.cfg.ReconnectBackoff

		connCtx, stopPing := context.WithCancel(ctx)
		go c.pingLoop(connCtx, conn)
		c.readLoop(conn)
		stopPing()
	}
}

// connect establishes the WebSocket connection
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	c.logger.Info("connecting to report feed", "url", c.cfg.URL)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("connected to report feed")
	return conn, nil
}

// pingLoop sends periodic pings until ctx is cancelled
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// readLoop reads messages until the connection fails
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("read error", "error", err)
			c.closeConnection()
			return
		}

		c.messagesReceived.Add(1)
		c.handleMessage(data)
	}
}

// handleMessage processes incoming messages
func (c *Client) handleMessage(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		c.logger.Warn("parse message error", "error", err)
		return
	}

	c.mu.Lock()
	reportCb := c.onReport
	statsCb := c.onStats
	c.mu.Unlock()

	switch msg.Type {
	case protocol.TypeReport:
		event, err := msg.GetReportEvent()
		if err != nil {
			c.logger.Warn("invalid report event", "error", err)
			return
		}
		c.reports.Add(1)
		if reportCb != nil {
			reportCb(*event)
		}

	case protocol.TypeStats:
		if statsCb != nil {
			var snapshot analysis.StatsSnapshot
			if err := msg.ParseData(&snapshot); err == nil {
				statsCb(snapshot)
			}
		}

	case protocol.TypeError:
		var e protocol.ErrorData
		if err := msg.ParseData(&e); err == nil {
			c.logger.Warn("feed server rejected command", "message", e.Message)
		}

	case protocol.TypePing:
		pong, _ := protocol.NewMessage(protocol.TypePong, nil)
		c.SendMessage(pong)
	}
}

// SendMessage sends a message to the server
func (c *Client) SendMessage(msg *protocol.Message) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if !connected || conn == nil {
		return fmt.Errorf("not connected")
	}

	data, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Warn("send error", "error", err)
		c.closeConnection()
		return fmt.Errorf("write: %w", err)
	}

	c.messagesSent.Add(1)
	return nil
}

// RequestStats asks the server for its analysis counters
func (c *Client) RequestStats() error {
	msg, err := protocol.NewMessage(protocol.TypeGetStats, nil)
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

// closeConnection closes the WebSocket connection
func (c *Client) closeConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close shuts down the client and waits for the connection loop to exit
func (c *Client) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.closeConnection()
	if done != nil {
		<-done
	}
	return nil
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Stats returns client statistics
type Stats struct {
	Connected        bool   `json:"connected"`
	MessagesSent     uint64 `json:"messages_sent"`
	MessagesReceived uint64 `json:"messages_received"`
	Reports          uint64 `json:"reports"`
	Reconnects       uint64 `json:"reconnects"`
}

// GetStats returns client statistics
func (c *Client) GetStats() Stats {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()

	return Stats{
		Connected:        connected,
		MessagesSent:     c.messagesSent.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		Reports:          c.reports.Load(),
		Reconnects:       c.reconnects.Load(),
	}
}
