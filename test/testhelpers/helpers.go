// Package testhelpers provides common utilities and helper functions for
// testing the GrooveChat server.
//
// This package contains reusable test utilities that are shared across
// integration tests: spinning up a hub with its HTTP server, dialing
// WebSocket connections, and exchanging protocol events.
package testhelpers

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/groovechat/internal/server"
)

// NewTestConfig returns a Config suitable for integration tests: every
// origin is allowed and the rate limit is high enough not to interfere
// with rapid scripted event sequences.
func NewTestConfig() *server.Config {
	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{"*"}
	cfg.RateLimit.Burst = 1000
	return cfg
}

// NewChatServer starts a hub and an HTTP test server wired together with
// the given config. Both are shut down when the test finishes.
func NewChatServer(t *testing.T, cfg *server.Config) (*server.Hub, *httptest.Server) {
	t.Helper()

	hub := server.NewHub(cfg, server.NewRegistry(cfg.Rooms))
	go hub.Run()

	ts := httptest.NewServer(server.SetupRoutes(hub, cfg.StaticDir))
	t.Cleanup(func() {
		ts.Close()
		if err := hub.Shutdown(5 * time.Second); err != nil {
			t.Logf("Hub shutdown: %v", err)
		}
	})

	return hub, ts
}

// WebSocketURL converts a test server's base URL into its /ws endpoint.
func WebSocketURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// Dial opens a WebSocket connection to wsURL, sending the given Origin
// header when non-empty. The connection is closed when the test finishes.
func Dial(t *testing.T, wsURL, origin string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendEvent marshals and writes one client event on the connection.
func SendEvent(t *testing.T, conn *websocket.Conn, evt server.Event) {
	t.Helper()

	payload, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("Failed to write event: %v", err)
	}
}

// ReadMessage reads and decodes the next server message, failing the test
// if nothing arrives within two seconds.
func ReadMessage(t *testing.T, conn *websocket.Conn) server.Message {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	var msg server.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("Failed to decode message %q: %v", payload, err)
	}
	return msg
}

// ExpectNoMessage asserts that nothing arrives on the connection within the
// timeout. A clean close while waiting also counts as no message.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, but received %q", payload)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of message: %v", err)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}
