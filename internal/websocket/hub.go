// Package websocket provides the live event feed consumed by the status
// dashboard. The hub fans detection and request events out to connected
// clients; events carry counts and metadata, never masked values.
package websocket

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/config"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The feed is credential-gated; origin checks stay open so the
		// dashboard can be served from anywhere.
		return true
	},
}

// Hub maintains the set of active clients and broadcasts events to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client

	cfg    config.WebSocketConfig
	logger *zap.Logger
	mu     sync.RWMutex

	totalConnections int64
	totalBroadcasts  int64
}

// HubStats is a snapshot of hub counters.
type HubStats struct {
	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	TotalBroadcasts   int64 `json:"total_broadcasts"`
}

// NewHub creates a hub from the websocket configuration.
func NewHub(cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		cfg:        cfg,
		logger:     logger,
	}
}

// Run drives registration and broadcasting. Call in its own goroutine.
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started", zap.String("path", h.cfg.Path))

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case event := <-h.broadcast:
			h.send(event)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.totalConnections++
	active := int64(len(h.clients))
	h.mu.Unlock()

	h.logger.Info("Dashboard client connected",
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int64("active_connections", active))

	h.Broadcast(Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:   "connected",
			ClientID: client.ID,
			ClientIP: client.IP,
		},
	})
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.Send)
	}
	active := int64(len(h.clients))
	h.mu.Unlock()

	if !ok {
		return
	}

	h.logger.Info("Dashboard client disconnected",
		zap.String("client_id", client.ID),
		zap.Int64("active_connections", active))

	h.Broadcast(Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:   "disconnected",
			ClientID: client.ID,
			ClientIP: client.IP,
		},
	})
}

func (h *Hub) send(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalBroadcasts++
	for client := range h.clients {
		if !client.wants(event.Type) {
			continue
		}
		select {
		case client.Send <- event:
		default:
			// Slow consumer; drop it rather than stalling the hub.
			h.logger.Warn("Client send buffer full, closing connection",
				zap.String("client_id", client.ID))
			delete(h.clients, client)
			close(client.Send)
		}
	}
}

func (c *Client) wants(t EventType) bool {
	if c.Subscribed == nil {
		return true
	}
	for _, sub := range c.Subscribed {
		if sub == t {
			return true
		}
	}
	return false
}

// Broadcast queues an event for delivery if its type is enabled. Never
// blocks; under pressure events are dropped.
func (h *Hub) Broadcast(event Event) {
	if !h.enabled(event.Type) {
		return
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("event_type", string(event.Type)))
	}
}

func (h *Hub) enabled(t EventType) bool {
	switch t {
	case EventTypePIIDetection:
		return h.cfg.BroadcastDetections
	case EventTypeRequestLog:
		return h.cfg.BroadcastRequests
	case EventTypeSystemStatus:
		return h.cfg.BroadcastSystem
	case EventTypeConnection:
		return h.cfg.BroadcastConns
	default:
		return false
	}
}

// HandleWebSocket authenticates and upgrades a dashboard connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="mailsift"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan Event, 256),
		ConnectedAt: time.Now(),
		IP:          clientIP(r),
		UserAgent:   r.UserAgent(),
	}

	h.register <- client

	go h.writePump(client)
	go h.readPump(client)
}

// authorize checks HTTP basic auth against the configured credentials.
// Comparison is constant time.
func (h *Hub) authorize(r *http.Request) bool {
	if h.cfg.Username == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Basic "
	if !strings.HasPrefix(auth, prefix) {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return false
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.cfg.Password)) == 1
	return userOK && passOK
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		h.unregister <- client
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket read error",
					zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "subscribe":
			client.Subscribed = msg.Events
			h.logger.Debug("Client subscription updated",
				zap.String("client_id", client.ID),
				zap.Int("event_types", len(msg.Events)))
		case "ping":
			select {
			case client.Send <- Event{Type: "pong", Timestamp: time.Now()}:
			default:
			}
		}
	}
}

// GetStats returns current hub counters.
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HubStats{
		ActiveConnections: int64(len(h.clients)),
		TotalConnections:  h.totalConnections,
		TotalBroadcasts:   h.totalBroadcasts,
	}
}

// clientIP extracts the caller address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
