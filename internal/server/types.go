// Package server defines the JSON payload types exchanged with chat clients
// and utility helpers shared across session and hub logic.
package server

import (
	"strings"
	"time"
)

// Inbound event types accepted from clients.
const (
	EventJoin    = "join"
	EventMessage = "message"
)

// Outbound message kinds sent to clients.
const (
	KindMessage  = "message"
	KindSystem   = "system"
	KindUserList = "userList"
)

// Event is a single inbound client event. Type selects which of the
// remaining fields carry meaning: a join uses Username and Room, a chat
// message uses Message.
type Event struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Room     string `json:"room,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Message is an outbound payload. The omitempty tags collapse it to the
// exact shape of each kind on the wire: chat messages carry username, text,
// and timestamp; system notices carry text and timestamp; user lists carry
// only the users slice.
type Message struct {
	Type      string   `json:"type"`
	Username  string   `json:"username,omitempty"`
	Message   string   `json:"message,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Users     []string `json:"users,omitempty"`
}

func newChatMessage(username, text string) Message {
	return Message{
		Type:      KindMessage,
		Username:  username,
		Message:   text,
		Timestamp: timestamp(),
	}
}

func newSystemMessage(text string) Message {
	return Message{
		Type:      KindSystem,
		Message:   text,
		Timestamp: timestamp(),
	}
}

func newUserListMessage(users []string) Message {
	return Message{
		Type:  KindUserList,
		Users: users,
	}
}

// timestamp returns the current time as an ISO-8601 string, matching what
// browser clients produce and expect.
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
