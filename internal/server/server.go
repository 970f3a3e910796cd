// Package server constructs and starts the GrooveChat HTTP service with
// helpers that apply sensible production defaults.
package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/samber/lo"
)

// requiredAssets are the files the browser client needs to be served from
// the static directory.
var requiredAssets = []string{"index.html", "style.css", "script.js"}

// CreateServer creates and configures an HTTP server with the specified
// port and handler. It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and begins listening for connections.
// It returns an error if the server fails to start.
func StartServer(server *http.Server) error {
	log.Printf("Server listening on %s", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting
// active connections. It waits for active connections to close or until the
// timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	log.Println("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		return err
	}

	log.Println("HTTP server shutdown completed")
	return nil
}

// CheckStaticAssets verifies that the client asset directory contains the
// files the browser client needs and logs anything missing. The server
// still starts either way; the chat core does not depend on the assets.
func CheckStaticAssets(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("Static asset directory %q not readable: %v", dir, err)
		return
	}

	names := lo.Map(entries, func(entry os.DirEntry, _ int) string {
		return entry.Name()
	})

	missing, _ := lo.Difference(requiredAssets, names)
	if len(missing) > 0 {
		log.Printf("Static asset directory %q is missing: %v", dir, missing)
	}
}
