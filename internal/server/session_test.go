package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/room"
)

// recordingNotifier captures lifecycle notifications.
type recordingNotifier struct {
	joined []room.Handle
	left   []room.Handle
}

func (n *recordingNotifier) MemberJoined(_ string, h room.Handle, _ string) {
	n.joined = append(n.joined, h)
}

func (n *recordingNotifier) MemberLeft(_ string, h room.Handle, _ string) {
	n.left = append(n.left, h)
}

func newTestHub(opts ...HubOption) *Hub {
	registry := room.NewRegistry()
	return NewHub(registry, room.NewRouter(registry, nil), opts...)
}

// joinedSession creates a session without a connection and joins it.
func joinedSession(h *Hub, roomName string) *Session {
	s := newSession(nil, h, roomName, Identity{Name: "tester"})
	h.mutex.Lock()
	h.sessions[s] = struct{}{}
	h.mutex.Unlock()
	h.join(s)
	return s
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "joined", StateJoined.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestNewSessionStartsConnecting(t *testing.T) {
	s := newSession(nil, newTestHub(), "lobby", Identity{Anonymous: true})

	assert.Equal(t, StateConnecting, s.State())
	assert.Equal(t, "lobby", s.Room())
	assert.NotEmpty(t, s.Handle())
	assert.False(t, s.Deliver(chat.NewMessage("too early")))
}

func TestSessionJoinRegistersAndNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	h := newTestHub(WithNotifier(notifier))

	s := joinedSession(h, "lobby")

	assert.Equal(t, StateJoined, s.State())
	roomName, ok := h.Registry().RoomOf(s.Handle())
	require.True(t, ok)
	assert.Equal(t, "lobby", roomName)
	assert.Equal(t, []room.Handle{s.Handle()}, notifier.joined)
}

func TestSessionDeliverQueuesInOrder(t *testing.T) {
	s := joinedSession(newTestHub(), "lobby")

	require.True(t, s.Deliver(chat.NewMessage("one")))
	require.True(t, s.Deliver(chat.NewMessage("two")))

	assert.Equal(t, "one", (<-s.mailbox).Message)
	assert.Equal(t, "two", (<-s.mailbox).Message)
}

func TestSessionCloseLeavesRoom(t *testing.T) {
	notifier := &recordingNotifier{}
	h := newTestHub(WithNotifier(notifier))
	s := joinedSession(h, "lobby")
	other := joinedSession(h, "lobby")

	s.Close()
	s.Close()

	assert.Equal(t, StateClosed, s.State())
	assert.False(t, s.Deliver(chat.NewMessage("late")), "closed session must reject events")
	assert.Equal(t, 1, h.Registry().Len("lobby"))
	assert.Equal(t, 1, h.SessionCount())
	assert.Equal(t, []room.Handle{s.Handle()}, notifier.left, "leave must be reported exactly once")

	_, ok := <-s.mailbox
	assert.False(t, ok, "mailbox must be closed")

	assert.True(t, other.Deliver(chat.NewMessage("still delivered")))
}

func TestSessionFullMailboxClosesStalledPeer(t *testing.T) {
	h := newTestHub(WithMailboxSize(1))
	stalled := joinedSession(h, "lobby")
	healthy := joinedSession(h, "lobby")

	delivered := h.router.Publish("lobby", chat.NewMessage("first"))
	assert.Equal(t, 2, delivered)

	// The stalled member's queue is full; draining the healthy one keeps it open.
	<-healthy.mailbox
	delivered = h.router.Publish("lobby", chat.NewMessage("second"))
	assert.Equal(t, 1, delivered)

	assert.Equal(t, StateClosed, stalled.State())
	assert.Equal(t, StateJoined, healthy.State())
	assert.Equal(t, 1, h.Registry().Len("lobby"))
	assert.Equal(t, "second", (<-healthy.mailbox).Message)
}

func TestSessionInboundPublishesToRoom(t *testing.T) {
	h := newTestHub()
	sender := joinedSession(h, "lobby")
	peer := joinedSession(h, "lobby")
	outsider := joinedSession(h, "games")

	sender.onInboundData([]byte(`{"message":"hello"}`))
	sender.onInboundData([]byte(`{"nope":true}`))

	assert.Equal(t, "hello", (<-sender.mailbox).Message)
	assert.Equal(t, "hello", (<-peer.mailbox).Message)
	assert.Len(t, peer.mailbox, 0, "malformed payload must be dropped")
	assert.Len(t, outsider.mailbox, 0)
}
