// Package server implements the room-based chat core of GrooveChat: the
// fixed room registry with per-room message history, the WebSocket session
// lifecycle (join, message, disconnect), and best-effort broadcast fan-out.
//
// The implementation is organized into specialized files for configuration,
// rooms, sessions, the hub, routing, and HTTP handlers to keep the codebase
// maintainable and testable as the project grows.
package server
