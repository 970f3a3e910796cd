// Package server coordinates session registration, the room join/leave
// lifecycle, and message broadcast for the GrooveChat WebSocket system via
// the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Hub tracks every live session, dispatches their inbound events to the
// room lifecycle operations, and fans resulting messages out to room
// members. Room state is guarded by each room's own mutex; the hub's mutex
// guards only the session set, so activity in one room never blocks
// another.
type Hub struct {
	cfg      *Config
	registry *Registry

	sessions   map[*Session]struct{}
	register   chan *Session
	unregister chan *Session
	mu         sync.RWMutex

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub serving the rooms in registry. The registry is
// injected rather than reached through package state so tests can run
// isolated hubs side by side.
func NewHub(cfg *Config, registry *Registry) *Hub {
	if cfg == nil {
		cfg = NewConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:        cfg,
		registry:   registry,
		sessions:   make(map[*Session]struct{}),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Registry returns the room registry the hub serves.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Register hands a new session to the hub, which starts its read and write
// pumps. Sessions arriving after shutdown has begun are closed immediately.
func (h *Hub) Register(s *Session) {
	select {
	case h.register <- s:
	case <-h.ctx.Done():
		s.closeTransport()
	}
}

// Run starts the hub's main loop, handling session registration and
// unregistration until Shutdown is called. This method should be called in
// a separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownSessions()
			return

		case s := <-h.register:
			if s == nil {
				log.Printf("Received nil session registration; skipping")
				continue
			}

			count := h.addSession(s)
			log.Printf("Session %s connected from %s. Active sessions: %d", s.id, s.addr, count)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				s.writePump()
			}()
			go func() {
				defer h.wg.Done()
				s.readPump()
			}()

		case s := <-h.unregister:
			h.handleDisconnect(s)
			h.dropSession(s)
		}
	}
}

func (h *Hub) addSession(s *Session) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.closed = false
	h.sessions[s] = struct{}{}
	return len(h.sessions)
}

func (h *Hub) dropSession(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s)
	s.closed = true
	count := len(h.sessions)
	h.mu.Unlock()

	// Close the channel after releasing the lock.
	close(s.send)
	log.Printf("Session %s (%s) unregistered. Active sessions: %d", s.id, s.addr, count)
}

// Dispatch routes one decoded client event to the lifecycle operation for
// its type. It is the single entry point for inbound events, so unit tests
// can drive the full lifecycle without a transport. Unknown event types are
// logged and ignored.
func (h *Hub) Dispatch(s *Session, evt Event) {
	switch evt.Type {
	case EventJoin:
		h.handleJoin(s, evt.Username, evt.Room)
	case EventMessage:
		h.handleChatMessage(s, evt.Message)
	default:
		log.Printf("Unknown event type %q from %s; ignoring", evt.Type, s.addr)
	}
}

// handleJoin moves a session into the named room: it leaves any previous
// room first, replays the new room's stored history to the joiner, then
// announces the join and the refreshed user list to the whole room,
// joiner included. An unknown room name commits no username or room state.
func (h *Hub) handleJoin(s *Session, username, roomName string) {
	if prev := s.room; prev != nil {
		prev.mu.Lock()
		if prev.removeLocked(s) {
			// Peers learn about the departure through the refreshed
			// user list; room changes carry no leave notice.
			h.broadcastLocked(prev, newUserListMessage(h.userListLocked(prev)), nil)
		}
		s.room = nil
		prev.mu.Unlock()
	}

	room, err := h.registry.Get(roomName)
	if err != nil {
		log.Printf("Join from %s rejected: %v", s.addr, err)
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	s.username = username
	s.room = room
	room.members[s] = struct{}{}

	// Replay stored history to the joiner before the join announcement so
	// the announcement never shows up inside the replayed backlog.
	for _, msg := range room.history {
		h.deliver(s, msg)
	}

	log.Printf("%s joined %s from %s", username, room.name, s.addr)

	h.broadcastLocked(room, newSystemMessage(username+" joined the chat"), nil)
	h.broadcastLocked(room, newUserListMessage(h.userListLocked(room)), nil)
}

// handleChatMessage stores a chat message in the sender's room history and
// broadcasts it to every member. The sender receives its own message back;
// clients render the server echo rather than their local copy.
func (h *Hub) handleChatMessage(s *Session, text string) {
	room := s.room
	if room == nil || s.username == "" {
		log.Printf("Dropping message from %s: %v", s.addr, ErrNotJoined)
		return
	}

	msg := newChatMessage(s.username, text)

	room.mu.Lock()
	defer room.mu.Unlock()

	room.storeLocked(msg)
	h.broadcastLocked(room, msg, nil)
}

// handleDisconnect removes a session from its room, announcing the
// departure and the refreshed user list to the remaining members. Sessions
// that never completed a join leave silently. Calling it again for an
// already-removed session is a no-op.
func (h *Hub) handleDisconnect(s *Session) {
	room := s.room
	if room == nil {
		return
	}
	s.room = nil

	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.removeLocked(s) {
		return
	}
	if s.username == "" {
		return
	}

	log.Printf("%s left %s", s.username, room.name)

	h.broadcastLocked(room, newSystemMessage(s.username+" left the chat"), nil)
	h.broadcastLocked(room, newUserListMessage(h.userListLocked(room)), nil)
}

// userListLocked computes the usernames of the room's members whose
// transport is still open, skipping sessions that never asserted a name.
// The caller must hold the room's mutex.
func (h *Hub) userListLocked(r *Room) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.FilterMap(lo.Keys(r.members), func(s *Session, _ int) (string, bool) {
		return s.username, s.username != "" && !s.closed
	})
}

// broadcastLocked fans one message out to every member of the room except
// exclude, skipping closed sessions. A delivery failure for one member is
// logged and does not abort delivery to the rest; the failed member's
// transport is closed so the disconnect path reaps it. Returns the number
// of successful deliveries. The caller must hold the room's mutex.
func (h *Hub) broadcastLocked(r *Room, msg Message, exclude *Session) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error encoding %s broadcast for %s: %v", msg.Type, r.name, err)
		return 0
	}

	sent := 0
	var failed []*Session
	for member := range r.members {
		if member == exclude {
			continue
		}
		if h.safeSend(member, payload) {
			sent++
		} else {
			failed = append(failed, member)
		}
	}

	for _, member := range failed {
		log.Printf("Delivery to %s in %s failed; dropping connection", member.addr, r.name)
		member.closeTransport()
	}

	if sent > 0 {
		log.Printf("Broadcast %s to %d members of %s", msg.Type, sent, r.name)
	}
	return sent
}

// deliver sends one message to a single session, used for history replay.
func (h *Hub) deliver(s *Session, msg Message) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error encoding history message for %s: %v", s.addr, err)
		return false
	}
	return h.safeSend(s, payload)
}

// safeSend attempts a non-blocking delivery to the session's send channel.
// It reports false for sessions that are gone or whose buffer is full; a
// slow consumer must not stall delivery to the rest of a room.
func (h *Hub) safeSend(s *Session, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, exists := h.sessions[s]; !exists || s.closed {
		return false
	}

	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// shutdownSessions gracefully closes all active session connections.
func (h *Hub) shutdownSessions() {
	log.Println("Shutting down all client connections...")

	h.mu.Lock()
	sessions := lo.Keys(h.sessions)
	h.mu.Unlock()

	for _, s := range sessions {
		s.closeTransport()
	}

	log.Printf("Closed %d client connections", len(sessions))
}

// Shutdown initiates graceful shutdown of the hub and waits for all
// session goroutines to complete, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
