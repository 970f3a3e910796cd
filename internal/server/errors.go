package server

import "errors"

var (
	// ErrRoomNotFound is reported when a join references a room outside
	// the fixed set created at startup.
	ErrRoomNotFound = errors.New("room does not exist")

	// ErrNotJoined is reported when a chat message arrives from a session
	// that has not completed a join.
	ErrNotJoined = errors.New("session has not joined a room")
)
