package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/multierr"

	"github.com/teslashibe/go-foa/internal/analysis"
	"github.com/teslashibe/go-foa/internal/metrics"
	"github.com/teslashibe/go-foa/internal/protocol"
)

// feedBuffer is the number of report events queued for broadcast
const feedBuffer = 64

// WSHub manages feed subscribers and broadcasts completed reports
type WSHub struct {
	stats   *analysis.Stats
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex // per-connection write lock

	events chan []byte
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWSHub creates a new WebSocket hub. stats and m may be nil.
func NewWSHub(stats *analysis.Stats, m *metrics.Metrics, logger *slog.Logger) *WSHub {
	if logger == nil {
		logger = slog.Default()
	}

	return &WSHub{
		stats:   stats,
		metrics: m,
		logger:  logger,
		clients: make(map[*websocket.Conn]*sync.Mutex),
		events:  make(chan []byte, feedBuffer),
		done:    make(chan struct{}),
	}
}

// Publish queues a report for broadcast. Events are dropped when the queue is full.
func (h *WSHub) Publish(event protocol.ReportEvent) {
	msg, err := protocol.NewReportMessage(event)
	if err != nil {
		h.logger.Warn("websocket marshal error", "error", err)
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		h.logger.Warn("websocket marshal error", "error", err)
		return
	}

	select {
	case h.events <- data:
	default:
		h.logger.Warn("report feed full, dropping event", "request_id", event.RequestID)
	}
}

// Run starts the broadcast loop
func (h *WSHub) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()
	defer close(h.done)

	h.logger.Info("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket hub stopped")
			return
		case data := <-h.events:
			h.broadcast(data)
		}
	}
}

func (h *WSHub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn, lock := range h.clients {
		lock.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		lock.Unlock()
		if err != nil {
			// Will be cleaned up when connection closes
			h.logger.Debug("websocket write error", "error", err)
		}
	}

	if h.metrics != nil {
		h.metrics.FeedBroadcast.Inc()
	}
}

// UpgradeHandler returns the WebSocket upgrade handler
func (h *WSHub) UpgradeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return websocket.New(h.handleConnection)(c)
		}

		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
			"error":   "WebSocket upgrade required",
			"message": "Connect via WebSocket to receive analysis reports",
		})
	}
}

func (h *WSHub) handleConnection(c *websocket.Conn) {
	lock := &sync.Mutex{}

	h.mu.Lock()
	h.clients[c] = lock
	clientCount := len(h.clients)
	h.mu.Unlock()
	h.setClientGauge(clientCount)

	h.logger.Info("websocket client connected",
		"remote_addr", c.RemoteAddr().String(),
		"clients", clientCount,
	)

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		clientCount := len(h.clients)
		h.mu.Unlock()
		h.setClientGauge(clientCount)

		h.logger.Info("websocket client disconnected",
			"remote_addr", c.RemoteAddr().String(),
			"clients", clientCount,
		)
	}()

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			break
		}

		reply := h.handleCommand(msg)
		if reply == nil {
			continue
		}

		lock.Lock()
		err = c.WriteMessage(websocket.TextMessage, reply)
		lock.Unlock()
		if err != nil {
			break
		}
	}
}

// handleCommand returns the encoded reply to a client command, or nil
func (h *WSHub) handleCommand(raw []byte) []byte {
	cmd, err := protocol.ParseMessage(raw)
	if err != nil {
		return h.encode(protocol.TypeError, protocol.ErrorData{Message: err.Error()})
	}

	switch cmd.Type {
	case protocol.TypePing:
		return h.encode(protocol.TypePong, nil)
	case protocol.TypeGetStats:
		if h.stats == nil {
			return h.encode(protocol.TypeError, protocol.ErrorData{Message: "stats not available"})
		}
		return h.encode(protocol.TypeStats, h.stats.Snapshot())
	default:
		return h.encode(protocol.TypeError, protocol.ErrorData{Message: "unknown command " + string(cmd.Type)})
	}
}

func (h *WSHub) encode(msgType protocol.MessageType, data interface{}) []byte {
	msg, err := protocol.NewMessage(msgType, data)
	if err != nil {
		h.logger.Warn("websocket marshal error", "error", err)
		return nil
	}
	b, err := msg.Bytes()
	if err != nil {
		h.logger.Warn("websocket marshal error", "error", err)
		return nil
	}
	return b
}

func (h *WSHub) setClientGauge(n int) {
	if h.metrics != nil {
		h.metrics.FeedClients.Set(float64(n))
	}
}

// ClientCount returns the number of connected WebSocket clients
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcast loop and disconnects every client
func (h *WSHub) Close() error {
	h.mu.RLock()
	cancel := h.cancel
	h.mu.RUnlock()
	if cancel != nil {
		cancel()
		<-h.done
	}

	var errs error
	h.mu.Lock()
	for conn := range h.clients {
		errs = multierr.Append(errs, conn.Close())
	}
	h.clients = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()
	h.setClientGauge(0)

	return errs
}
