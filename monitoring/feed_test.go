package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startFeed(t *testing.T) (*Feed, *httptest.Server, context.CancelFunc) {
	t.Helper()
	feed := NewFeed([]string{"*"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go feed.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(feed.HandleWebSocket))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return feed, srv, cancel
}

func waitForClients(t *testing.T, feed *Feed, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for feed.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, feed.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFeedBroadcast(t *testing.T) {
	feed, srv, _ := startFeed(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForClients(t, feed, 1)

	if err := feed.Broadcast(PredictionMade, map[string]float64{"probability": 15}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if msg.Type != PredictionMade || msg.ID == "" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	var payload map[string]float64
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload["probability"] != 15 {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestFeedUnregistersOnClose(t *testing.T) {
	feed, srv, _ := startFeed(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForClients(t, feed, 1)
	conn.Close()
	waitForClients(t, feed, 0)
}

func TestFeedClosesClientsOnShutdown(t *testing.T) {
	feed, srv, cancel := startFeed(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForClients(t, feed, 1)

	cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to close after shutdown")
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://xente.co"})
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://xente.co", true},
		{"http://example.com", true},
		{"https://evil.test", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://example.com/api/ws/predictions", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := check(r); got != tt.want {
			t.Errorf("origin %q: got %v want %v", tt.origin, got, tt.want)
		}
	}
}
