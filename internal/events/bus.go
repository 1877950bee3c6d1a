// Package events publishes room membership changes on an in-process
// watermill bus so that other components (audit logging, metrics) can react to
// them without the relay core knowing about it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/Tyrowin/roomchat/internal/room"
)

// Topics published by the bus.
const (
	TopicMemberJoined = "room.member.joined"
	TopicMemberLeft   = "room.member.left"
)

// Lifecycle describes a member entering or leaving a room.
type Lifecycle struct {
	Room     string    `json:"room"`
	Handle   string    `json:"handle"`
	Identity string    `json:"identity"`
	At       time.Time `json:"at"`
}

// Handler processes a lifecycle event received from the bus.
type Handler func(ctx context.Context, topic string, ev Lifecycle) error

// Bus is a watermill GoChannel wrapper carrying Lifecycle events.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
	now    func() time.Time
}

// NewBus creates an in-memory bus. Events published while nobody is
// subscribed are dropped.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			slogAdapter{logger: logger.With("component", "watermill")},
		),
		logger: logger,
		now:    time.Now,
	}
}

// MemberJoined publishes a TopicMemberJoined event.
func (b *Bus) MemberJoined(roomName string, h room.Handle, identity string) {
	b.publish(TopicMemberJoined, roomName, h, identity)
}

// MemberLeft publishes a TopicMemberLeft event.
func (b *Bus) MemberLeft(roomName string, h room.Handle, identity string) {
	b.publish(TopicMemberLeft, roomName, h, identity)
}

func (b *Bus) publish(topic, roomName string, h room.Handle, identity string) {
	payload, err := json.Marshal(Lifecycle{
		Room:     roomName,
		Handle:   string(h),
		Identity: identity,
		At:       b.now().UTC(),
	})
	if err != nil {
		b.logger.Error("Failed to encode lifecycle event", "topic", topic, "error", err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		b.logger.Error("Failed to publish lifecycle event", "topic", topic, "room", roomName, "error", err)
	}
}

// Subscribe starts delivering events on topic to handler until ctx is
// canceled or the bus is closed. It returns once the subscription is active.
// The GoChannel hands each message over on its own goroutine, so events are
// not guaranteed to reach handler in publish order; a member's join and leave
// can be seen reversed. Use Lifecycle.At to order them.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("events: subscribe %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			var ev Lifecycle
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.Error("Discarding malformed lifecycle event", "topic", topic, "msg_id", msg.UUID, "error", err)
			} else if err := handler(msg.Context(), topic, ev); err != nil {
				b.logger.Error("Failed to handle lifecycle event", "topic", topic, "msg_id", msg.UUID, "error", err)
			}
			// Nack would make the GoChannel redeliver forever; handlers are best effort.
			msg.Ack()
		}
		b.logger.Debug("Lifecycle subscription ended", "topic", topic)
	}()

	return nil
}

// Close stops all subscriptions.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// AuditLog returns a handler that writes every lifecycle event to logger.
func AuditLog(logger *slog.Logger) Handler {
	return func(_ context.Context, topic string, ev Lifecycle) error {
		logger.Info("Room membership changed",
			"event", topic,
			"room", ev.Room,
			"handle", ev.Handle,
			"identity", ev.Identity,
			"at", ev.At,
		)
		return nil
	}
}
