// Package directmsg fans persisted direct messages out to the open streams
// of the two users involved.
package directmsg

import (
	"context"
	"log/slog"

	"github.com/commune/backend/internal/fanout"
)

// RelayChannel names the direct-message channel on the cross-instance relay.
const RelayChannel = "direct"

// Message is a direct message as delivered to streams. Records reach the bus
// already persisted and are published verbatim.
type Message struct {
	ID          string `json:"id"`
	Body        string `json:"body"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	CreatedAt   string `json:"createdAt"`
}

// Forwarder hands locally published messages to other instances.
type Forwarder interface {
	Forward(ctx context.Context, channel string, v any) error
}

// Bus routes direct messages to per-user topics.
type Bus struct {
	registry  *fanout.Registry[string, Message]
	forwarder Forwarder
}

// NewBus creates a bus. A nil forwarder keeps delivery process-local.
func NewBus(forwarder Forwarder) *Bus {
	return &Bus{
		registry:  fanout.NewRegistry[string, Message]("direct"),
		forwarder: forwarder,
	}
}

// Subscribe registers listen for every message sent or received by userID.
func (b *Bus) Subscribe(userID string, listen fanout.Listener[Message]) (unsubscribe func()) {
	return b.registry.Subscribe(userID, listen)
}

// Publish delivers msg to the sender's and the recipient's topics, once
// each, and once in total when they are the same user. It never fails.
func (b *Bus) Publish(ctx context.Context, msg Message) {
	b.deliver(msg)

	if b.forwarder == nil {
		return
	}
	if err := b.forwarder.Forward(ctx, RelayChannel, msg); err != nil {
		slog.WarnContext(ctx, "directmsg: relay forward failed",
			slog.String("message_id", msg.ID),
			slog.Any("error", err),
		)
	}
}

// Receive delivers a message published on another instance without
// forwarding it again.
func (b *Bus) Receive(msg Message) {
	b.deliver(msg)
}

// Listeners reports the number of open streams for userID.
func (b *Bus) Listeners(userID string) int {
	return b.registry.Len(userID)
}

func (b *Bus) deliver(msg Message) int {
	return b.registry.Publish(msg, msg.SenderID, msg.RecipientID)
}
