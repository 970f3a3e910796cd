// Package server exposes HTTP handlers, including WebSocket upgrades and
// health checks.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocketHandler returns the handler that upgrades HTTP requests to
// WebSocket connections and registers the resulting session with the hub.
// Upgrades are restricted to GET requests from allowed origins.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	checker := newOriginChecker(hub.cfg.AllowedOrigins)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checker.check,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		// The hub launches the session's pump goroutines.
		hub.Register(NewSession(conn, hub, r.RemoteAddr))
	}
}

// HealthHandler provides a simple health check endpoint that returns server
// status as plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "GrooveChat server is running!")
}
