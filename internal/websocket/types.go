package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/mailsift/mailsift/internal/pii"
)

// EventType identifies the kind of event flowing through the hub.
type EventType string

const (
	EventTypePIIDetection EventType = "pii_detection"
	EventTypeRequestLog   EventType = "request_log"
	EventTypeSystemStatus EventType = "system_status"
	EventTypeConnection   EventType = "connection"
)

// Event is the envelope sent to dashboard clients.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// PIIDetectionEvent reports what was masked in a request. It carries type
// counts only; entity values never reach the event feed.
type PIIDetectionEvent struct {
	RequestID  string        `json:"request_id"`
	RecordID   string        `json:"record_id"`
	Findings   []pii.Finding `json:"findings"`
	Category   string        `json:"category,omitempty"`
	DurationMS float64       `json:"duration_ms"`
}

// RequestLogEvent reports a completed HTTP request.
type RequestLogEvent struct {
	RequestID  string  `json:"request_id"`
	Method     string  `json:"method"`
	Path       string  `json:"path"`
	Status     int     `json:"status"`
	DurationMS float64 `json:"duration_ms"`
	ClientIP   string  `json:"client_ip"`
}

// SystemStatusEvent reports service health snapshots.
type SystemStatusEvent struct {
	Status            string  `json:"status"`
	ActiveConnections int64   `json:"active_connections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// ConnectionEvent reports dashboard clients joining and leaving.
type ConnectionEvent struct {
	Action   string `json:"action"`
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
}

// Client is one connected dashboard consumer.
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	// Subscribed event types; nil means all.
	Subscribed []EventType
}

// ClientMessage is an inbound control message from a client.
type ClientMessage struct {
	Type   string      `json:"type"`
	Events []EventType `json:"events,omitempty"`
}
