// Package protocol defines the WebSocket messages of the live report feed
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-foa/internal/analysis"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → client messages
	TypeReport MessageType = "report" // Completed scene report
	TypeStats  MessageType = "stats"  // Analysis statistics
	TypeError  MessageType = "error"  // Rejected command

	// Client → server messages
	TypeGetStats MessageType = "get_stats"

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// ReportEvent announces a completed analysis on the feed
type ReportEvent struct {
	RequestID   string           `json:"request_id"`
	Filename    string           `json:"filename"`
	Degraded    string           `json:"degraded,omitempty"`
	CompletedAt time.Time        `json:"completed_at"`
	Report      *analysis.Report `json:"report"`
}

// NewReportMessage creates a report message
func NewReportMessage(event ReportEvent) (*Message, error) {
	return NewMessage(TypeReport, event)
}

// GetReportEvent extracts the report event from a message
func (m *Message) GetReportEvent() (*ReportEvent, error) {
	if m.Type != TypeReport {
		return nil, fmt.Errorf("expected %s message, got %s", TypeReport, m.Type)
	}

	var event ReportEvent
	if err := m.ParseData(&event); err != nil {
		return nil, fmt.Errorf("failed to parse report event: %w", err)
	}
	return &event, nil
}

// ErrorData explains a rejected command
type ErrorData struct {
	Message string `json:"message"`
}
