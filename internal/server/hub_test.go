package server

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestHub(rooms ...string) *Hub {
	return NewHub(NewConfig(), NewRegistry(rooms))
}

// newTestSession builds a transportless session and registers it with the
// hub directly so lifecycle operations can be driven without a network.
func newTestSession(t *testing.T, h *Hub, addr string) *Session {
	t.Helper()
	s := NewSession(nil, h, addr)
	h.addSession(s)
	return s
}

// drain decodes everything currently queued on the session's send channel.
func drain(t *testing.T, s *Session) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case payload := <-s.send:
			var msg Message
			require.NoError(t, json.Unmarshal(payload, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func join(h *Hub, s *Session, username, room string) {
	h.Dispatch(s, Event{Type: EventJoin, Username: username, Room: room})
}

func say(h *Hub, s *Session, text string) {
	h.Dispatch(s, Event{Type: EventMessage, Message: text})
}

func TestJoinAnnouncesAndListsUsers(t *testing.T) {
	h := newTestHub()
	a := newTestSession(t, h, "a:1")

	join(h, a, "A", "general")

	got := drain(t, a)
	require.Len(t, got, 2)

	require.Equal(t, KindSystem, got[0].Type)
	require.Equal(t, "A joined the chat", got[0].Message)
	require.NotEmpty(t, got[0].Timestamp)

	require.Equal(t, KindUserList, got[1].Type)
	require.Equal(t, []string{"A"}, got[1].Users)
}

func TestJoinReplaysHistoryBeforeAnnouncement(t *testing.T) {
	h := newTestHub()
	a := newTestSession(t, h, "a:1")

	join(h, a, "A", "general")
	say(h, a, "first")
	say(h, a, "second")
	drain(t, a)

	b := newTestSession(t, h, "b:1")
	join(h, b, "B", "general")

	got := drain(t, b)
	require.Len(t, got, 4)

	require.Equal(t, KindMessage, got[0].Type)
	require.Equal(t, "first", got[0].Message)
	require.Equal(t, "A", got[0].Username)
	require.Equal(t, KindMessage, got[1].Type)
	require.Equal(t, "second", got[1].Message)

	require.Equal(t, KindSystem, got[2].Type)
	require.Equal(t, "B joined the chat", got[2].Message)
	require.Equal(t, KindUserList, got[3].Type)
	require.ElementsMatch(t, []string{"A", "B"}, got[3].Users)

	// A sees the announcement and refreshed list, but no history replay.
	aGot := drain(t, a)
	require.Len(t, aGot, 2)
	require.Equal(t, KindSystem, aGot[0].Type)
	require.Equal(t, KindUserList, aGot[1].Type)
}

func TestChatMessageEchoesToSender(t *testing.T) {
	h := newTestHub()
	a := newTestSession(t, h, "a:1")
	b := newTestSession(t, h, "b:1")
	join(h, a, "A", "general")
	join(h, b, "B", "general")
	drain(t, a)
	drain(t, b)

	say(h, a, "hi")

	for _, s := range []*Session{a, b} {
		got := drain(t, s)
		require.Len(t, got, 1)
		require.Equal(t, KindMessage, got[0].Type)
		require.Equal(t, "A", got[0].Username)
		require.Equal(t, "hi", got[0].Message)
		require.NotEmpty(t, got[0].Timestamp)
	}
}

func TestChatMessageWithoutJoinDropped(t *testing.T) {
	h := newTestHub()
	a := newTestSession(t, h, "a:1")

	say(h, a, "hello?")

	require.Empty(t, drain(t, a))
	room, err := h.registry.Get("general")
	require.NoError(t, err)
	require.Equal(t, 0, room.HistoryLen())
}

func TestUnknownEventTypeIgnored(t *testing.T) {
	h := newTestHub()
	a := newTestSession(t, h, "a:1")

	h.Dispatch(a, Event{Type: "ping"})

	require.Empty(t, drain(t, a))
}

func TestJoinUnknownRoomCommitsNothing(t *testing.T) {
	h := newTestHub()
	a := newTestSession(t, h, "a:1")

	join(h, a, "A", "basement")

	require.Empty(t, drain(t, a))
	require.Nil(t, a.room)
	require.Empty(t, a.username)
	for _, name := range DefaultRooms {
		room, err := h.registry.Get(name)
		require.NoError(t, err)
		require.Equal(t, 0, room.MemberCount())
	}
}

func TestRejoinMovesRooms(t *testing.T) {
	h := newTestHub()
	a := newTestSession(t, h, "a:1")
	b := newTestSession(t, h, "b:1")
	join(h, a, "A", "general")
	join(h, b, "B", "general")
	drain(t, a)
	drain(t, b)

	join(h, a, "A", "ambient")

	general, err := h.registry.Get("general")
	require.NoError(t, err)
	ambient, err := h.registry.Get("ambient")
	require.NoError(t, err)
	require.Equal(t, 1, general.MemberCount())
	require.Equal(t, 1, ambient.MemberCount())
	require.Same(t, ambient, a.room)

	// B only sees the shrunken user list, no leave notice.
	bGot := drain(t, b)
	require.Len(t, bGot, 1)
	require.Equal(t, KindUserList, bGot[0].Type)
	require.Equal(t, []string{"B"}, bGot[0].Users)

	aGot := drain(t, a)
	require.Len(t, aGot, 2)
	require.Equal(t, "A joined the chat", aGot[0].Message)
	require.Equal(t, []string{"A"}, aGot[1].Users)
}

func TestDisconnectAnnouncesLeave(t *testing.T) {
	h := newTestHub()
	a := newTestSession(t, h, "a:1")
	b := newTestSession(t, h, "b:1")
	join(h, a, "A", "general")
	join(h, b, "B", "general")
	drain(t, a)
	drain(t, b)

	h.handleDisconnect(b)

	got := drain(t, a)
	require.Len(t, got, 2)
	require.Equal(t, KindSystem, got[0].Type)
	require.Equal(t, "B left the chat", got[0].Message)
	require.Equal(t, KindUserList, got[1].Type)
	require.Equal(t, []string{"A"}, got[1].Users)

	require.Empty(t, drain(t, b))

	// Disconnecting an already-removed session is a no-op.
	h.handleDisconnect(b)
	require.Empty(t, drain(t, a))
}

func TestDisconnectBeforeJoinIsSilent(t *testing.T) {
	h := newTestHub()
	a := newTestSession(t, h, "a:1")
	b := newTestSession(t, h, "b:1")
	join(h, a, "A", "general")
	drain(t, a)

	h.handleDisconnect(b)

	require.Empty(t, drain(t, a))
}

func TestHistoryKeepsLastHundred(t *testing.T) {
	h := newTestHub()
	a := newTestSession(t, h, "a:1")
	join(h, a, "A", "general")
	drain(t, a)

	for i := 0; i < 101; i++ {
		say(h, a, fmt.Sprintf("msg %d", i))
		drain(t, a)
	}

	room, err := h.registry.Get("general")
	require.NoError(t, err)
	require.Equal(t, historyLimit, room.HistoryLen())
	require.Equal(t, "msg 1", room.history[0].Message)
	require.Equal(t, "msg 100", room.history[len(room.history)-1].Message)
}

func TestBroadcastSurvivesFullMemberBuffer(t *testing.T) {
	h := newTestHub()
	a := newTestSession(t, h, "a:1")
	b := newTestSession(t, h, "b:1")
	c := newTestSession(t, h, "c:1")
	join(h, a, "A", "general")
	join(h, b, "B", "general")
	join(h, c, "C", "general")
	drain(t, a)
	drain(t, b)

	// Saturate C's buffer so delivery to it fails.
	for filling := true; filling; {
		select {
		case c.send <- []byte("x"):
		default:
			filling = false
		}
	}

	say(h, a, "still here?")

	for _, s := range []*Session{a, b} {
		got := drain(t, s)
		require.Len(t, got, 1)
		require.Equal(t, "still here?", got[0].Message)
	}
}

func TestUserListSkipsUnnamedSessions(t *testing.T) {
	h := newTestHub()
	ghost := newTestSession(t, h, "ghost:1")
	join(h, ghost, "", "general")
	drain(t, ghost)

	a := newTestSession(t, h, "a:1")
	join(h, a, "A", "general")

	got := drain(t, a)
	list := got[len(got)-1]
	require.Equal(t, KindUserList, list.Type)
	require.Equal(t, []string{"A"}, list.Users)
}
