package server

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// DefaultRooms is the room set used when no explicit list is configured.
var DefaultRooms = []string{"general", "melodic-techno", "ambient", "house", "drum-and-bass"}

// Registry holds the closed set of rooms known at startup. The map is never
// mutated after construction, so lookups need no locking; each Room guards
// its own state.
type Registry struct {
	rooms map[string]*Room
}

// NewRegistry creates every room in names up front. Blank entries are
// skipped and surrounding whitespace is trimmed; an empty list falls back
// to DefaultRooms.
func NewRegistry(names []string) *Registry {
	if len(names) == 0 {
		names = DefaultRooms
	}

	rooms := make(map[string]*Room, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		rooms[name] = newRoom(name)
	}

	return &Registry{rooms: rooms}
}

// Get resolves a room by name. Unknown names report ErrRoomNotFound; rooms
// are never created on demand.
func (reg *Registry) Get(name string) (*Room, error) {
	room, ok := reg.rooms[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrRoomNotFound)
	}
	return room, nil
}

// Names returns the names of all registered rooms in no particular order.
func (reg *Registry) Names() []string {
	return lo.Keys(reg.rooms)
}
