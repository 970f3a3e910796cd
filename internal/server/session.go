// Package server manages individual WebSocket sessions, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Session represents the server-side state of one live client connection.
// It owns the transport handle and the buffered send channel the broadcast
// engine delivers into. Username and room stay empty until the client's
// first successful join; a session belongs to at most one room at a time.
type Session struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	addr string

	// username and room are written only while holding the joined room's
	// mutex and only from this session's own event stream.
	username string
	room     *Room

	// closed is guarded by the hub's session mutex.
	closed bool

	maxMessageSize int64
	limiter        *rateLimiter
	rateLimit      RateLimitConfig
}

// NewSession creates a Session for the given WebSocket connection. The send
// channel is buffered so a slow reader does not stall broadcasts to its
// room; a session that falls that far behind is dropped instead.
func NewSession(conn *websocket.Conn, hub *Hub, addr string) *Session {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Session{
		id:             uuid.New(),
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		limiter:        newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// GetSendChan returns the session's send channel for reading outgoing
// payloads. This channel is read-only from the caller's perspective.
func (s *Session) GetSendChan() <-chan []byte {
	return s.send
}

// setupReadConnection configures read deadlines and the pong handler for
// the WebSocket connection.
func (s *Session) setupReadConnection() {
	if err := s.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", s.addr, err)
	}
	s.conn.SetPongHandler(func(string) error {
		if err := s.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", s.addr, err)
		}
		return nil
	})
}

// handleReadError logs appropriate error messages based on the error type
// and returns true if the read loop should break.
func (s *Session) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Message from %s exceeded maximum size of %d bytes", s.addr, s.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Client %s disconnected: %v", s.addr, err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Client %s connection closed: %v", s.addr, err)
		return true
	}

	log.Printf("WebSocket read error from %s: %v", s.addr, err)
	return true
}

// checkRateLimit verifies if the session has exceeded its message rate
// limit and returns true if the event should be processed.
func (s *Session) checkRateLimit() bool {
	if s.limiter != nil && !s.limiter.allow() {
		log.Printf("Rate limit exceeded for %s (%d messages per %s); discarding event", s.addr, s.rateLimit.Burst, s.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processEvent decodes a raw inbound payload and hands it to the hub.
// Malformed payloads are logged and dropped; the connection stays open.
func (s *Session) processEvent(raw []byte) bool {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		log.Printf("Malformed payload from %s: %v", s.addr, err)
		return false
	}

	s.hub.Dispatch(s, evt)
	return true
}

func (s *Session) readPump() {
	defer func() {
		// During hub shutdown the run loop is gone, so don't wait on it.
		select {
		case s.hub.unregister <- s:
		case <-s.hub.ctx.Done():
		}
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in readPump: %v", err)
		}
	}()

	s.setupReadConnection()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if s.handleReadError(err) {
				break
			}
		}

		if !s.checkRateLimit() {
			continue
		}

		s.processEvent(raw)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump: %v", err)
		}
	}()

	for {
		select {
		case payload, ok := <-s.send:
			if !s.writePayload(payload, ok) {
				return
			}
		case <-ticker.C:
			if !s.writePing() {
				return
			}
		case <-s.hub.ctx.Done():
			return
		}
	}
}

// writePayload writes one outbound payload as its own text frame so each
// frame decodes as a single JSON document. Returns false when the pump
// should stop.
func (s *Session) writePayload(payload []byte, ok bool) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", s.addr, err)
		return false
	}

	if !ok {
		// Send channel closed by the hub; tell the client we are done.
		if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", s.addr, err)
		}
		return false
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing message to %s: %v", s.addr, err)
		}
		return false
	}
	return true
}

// writePing sends a ping message to keep the connection alive.
func (s *Session) writePing() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", s.addr, err)
		return false
	}
	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing ping message to %s: %v", s.addr, err)
		}
		return false
	}
	return true
}

// closeTransport shuts the underlying connection, which causes the read
// pump to exit and the normal disconnect path to reap the session.
func (s *Session) closeTransport() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.Printf("Error closing connection for %s: %v", s.addr, err)
	}
}
