// Package server models chat rooms: fixed named channels that own a
// membership set of live sessions and a bounded buffer of recent messages.
package server

import "sync"

// historyLimit caps the number of chat messages retained per room. Once the
// buffer is full, every stored message evicts the oldest one.
const historyLimit = 100

// Room is a fixed chat channel. All rooms are created once at startup and
// live for the process lifetime. The mutex serializes every membership and
// history mutation for this room, including the snapshot a broadcast fans
// out to, without blocking activity in other rooms.
type Room struct {
	name string

	mu      sync.Mutex
	members map[*Session]struct{}
	history []Message
}

func newRoom(name string) *Room {
	return &Room{
		name:    name,
		members: make(map[*Session]struct{}),
	}
}

// Name returns the room's fixed name.
func (r *Room) Name() string {
	return r.name
}

// storeLocked appends a chat message to the history buffer, evicting the
// oldest entry once the buffer exceeds capacity. Only chat messages are
// stored; system notices and user lists are transient broadcasts. The
// caller must hold r.mu.
func (r *Room) storeLocked(msg Message) {
	r.history = append(r.history, msg)
	if len(r.history) > historyLimit {
		r.history = r.history[1:]
	}
}

// removeLocked deletes s from the membership set and reports whether it was
// a member. The caller must hold r.mu.
func (r *Room) removeLocked(s *Session) bool {
	if _, ok := r.members[s]; !ok {
		return false
	}
	delete(r.members, s)
	return true
}

// MemberCount reports the current number of sessions in the room.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// HistoryLen reports the current number of stored chat messages.
func (r *Room) HistoryLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}
