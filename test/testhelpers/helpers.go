// Package testhelpers provides common utilities for integration-testing the
// ratechat server: assembling a full hub + dispatcher + HTTP stack, dialing
// websocket clients, and reading broadcast lines with deadlines.
package testhelpers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkovalchuk/ratechat/internal/server"
)

// DiscardLogger returns a logger suitable for tests.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// StartChatServer assembles a hub, dispatcher, and HTTP server around the
// given fetcher and audit sink, allows the test server's own origin, and
// registers cleanup for everything.
func StartChatServer(t *testing.T, fetcher server.RateFetcher, sink server.AuditSink) (*httptest.Server, *server.Hub) {
	t.Helper()

	logger := DiscardLogger()
	hub := server.NewHub(logger)
	go hub.Run()
	t.Cleanup(func() {
		_ = hub.Shutdown(2 * time.Second)
	})

	dispatcher := server.NewDispatcher(hub, fetcher, sink, logger)
	mux := server.SetupRoutes(hub, dispatcher, logger)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	cfg := server.NewConfig()
	cfg.AllowedOrigins = append([]string{ts.URL}, cfg.AllowedOrigins...)
	server.SetConfig(cfg)
	t.Cleanup(func() {
		server.SetConfig(nil)
	})

	return ts, hub
}

// Dial opens a websocket client against the test server's /ws endpoint with
// an allowed Origin header.
func Dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Origin", ts.URL)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn
}

// ReadLine reads one text frame from the connection, failing the test if it
// does not arrive within the timeout.
func ReadLine(t *testing.T, conn *websocket.Conn, timeout time.Duration) string {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return string(payload)
}

// WaitForSessions blocks until the hub registry reaches the wanted size.
func WaitForSessions(t *testing.T, hub *server.Hub, want int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if hub.SessionCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("registry never reached %d sessions (have %d)", want, hub.SessionCount())
}
