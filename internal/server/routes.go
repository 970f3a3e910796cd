// Package server wires HTTP handlers into a router for the GrooveChat
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures and returns a router with all application routes:
// the health check, the WebSocket endpoint, and the static browser client.
func SetupRoutes(hub *Hub, staticDir string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", WebSocketHandler(hub))
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	return r
}
