package websocket

import (
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/config"
)

func testHubConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Enabled:             true,
		Path:                "/ws",
		Username:            "dash",
		Password:            "secret",
		BroadcastDetections: true,
		BroadcastRequests:   false,
		BroadcastSystem:     true,
		BroadcastConns:      true,
	}
}

func TestAuthorize(t *testing.T) {
	hub := NewHub(testHubConfig(), zap.NewNop())

	t.Run("valid credentials", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ws", nil)
		req.SetBasicAuth("dash", "secret")
		if !hub.authorize(req) {
			t.Errorf("valid credentials rejected")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ws", nil)
		req.SetBasicAuth("dash", "nope")
		if hub.authorize(req) {
			t.Errorf("wrong password accepted")
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ws", nil)
		if hub.authorize(req) {
			t.Errorf("missing credentials accepted")
		}
	})

	t.Run("unconfigured username rejects everyone", func(t *testing.T) {
		cfg := testHubConfig()
		cfg.Username = ""
		open := NewHub(cfg, zap.NewNop())
		req := httptest.NewRequest("GET", "/ws", nil)
		req.SetBasicAuth("", "")
		if open.authorize(req) {
			t.Errorf("hub without configured credentials must not accept connections")
		}
	})
}

func TestBroadcastRespectsConfig(t *testing.T) {
	hub := NewHub(testHubConfig(), zap.NewNop())

	tests := []struct {
		typ  EventType
		want bool
	}{
		{EventTypePIIDetection, true},
		{EventTypeRequestLog, false},
		{EventTypeSystemStatus, true},
		{EventTypeConnection, true},
		{EventType("unknown"), false},
	}
	for _, tt := range tests {
		if got := hub.enabled(tt.typ); got != tt.want {
			t.Errorf("enabled(%s) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestClientSubscriptionFilter(t *testing.T) {
	all := &Client{}
	if !all.wants(EventTypePIIDetection) {
		t.Errorf("client without subscription should receive everything")
	}

	filtered := &Client{Subscribed: []EventType{EventTypeSystemStatus}}
	if filtered.wants(EventTypePIIDetection) {
		t.Errorf("unsubscribed event type delivered")
	}
	if !filtered.wants(EventTypeSystemStatus) {
		t.Errorf("subscribed event type withheld")
	}
}
