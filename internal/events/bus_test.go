package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/room"
)

type received struct {
	topic string
	ev    Lifecycle
}

func subscribeAll(t *testing.T, bus *Bus, handlerErr error) <-chan received {
	t.Helper()
	out := make(chan received, 16)
	handler := func(_ context.Context, topic string, ev Lifecycle) error {
		out <- received{topic: topic, ev: ev}
		return handlerErr
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, bus.Subscribe(ctx, TopicMemberJoined, handler))
	require.NoError(t, bus.Subscribe(ctx, TopicMemberLeft, handler))
	return out
}

func next(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lifecycle event")
		return received{}
	}
}

func TestBusPublishesLifecycle(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	bus.now = func() time.Time { return fixed }

	ch := subscribeAll(t, bus, nil)
	h := room.NewHandle()

	bus.MemberJoined("lobby", h, "alice")
	r := next(t, ch)
	assert.Equal(t, TopicMemberJoined, r.topic)
	assert.Equal(t, Lifecycle{Room: "lobby", Handle: string(h), Identity: "alice", At: fixed}, r.ev)

	bus.MemberLeft("lobby", h, "alice")
	r = next(t, ch)
	assert.Equal(t, TopicMemberLeft, r.topic)
	assert.Equal(t, "lobby", r.ev.Room)
}

func TestBusHandlerErrorDoesNotBlockLaterEvents(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ch := subscribeAll(t, bus, errors.New("boom"))

	bus.MemberJoined("lobby", room.NewHandle(), "a")
	bus.MemberJoined("lobby", room.NewHandle(), "b")

	got := []string{next(t, ch).ev.Identity, next(t, ch).ev.Identity}
	assert.ElementsMatch(t, []string{"a", "b"}, got)
}

func TestBusWithoutSubscribers(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	assert.NotPanics(t, func() {
		bus.MemberJoined("lobby", room.NewHandle(), "nobody")
	})
}

func TestAuditLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	err := AuditLog(logger)(context.Background(), TopicMemberJoined, Lifecycle{Room: "lobby", Handle: "h1", Identity: "bob"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "event=room.member.joined")
	assert.Contains(t, buf.String(), "room=lobby")
	assert.Contains(t, buf.String(), "identity=bob")
}
