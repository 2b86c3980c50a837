// Package chat implements the community-wide broadcast chat channel: every
// connected reader receives every message, and new readers are caught up
// from a bounded in-memory history.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commune/backend/internal/fanout"
)

const (
	// DefaultAuthor labels messages published without an author.
	DefaultAuthor = "Anonymous"

	// RelayChannel names the broadcast channel on the cross-instance relay.
	RelayChannel = "chat"

	topic = "broadcast"
)

// ErrEmptyBody is returned when a message body is blank after trimming.
var ErrEmptyBody = errors.New("message body must not be empty")

// Message is a broadcast chat message. It is never persisted.
type Message struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"createdAt"`
}

// Forwarder hands locally published messages to other instances.
type Forwarder interface {
	Forward(ctx context.Context, channel string, v any) error
}

// Broadcaster owns the broadcast registry and its history.
type Broadcaster struct {
	// mu orders history writes with delivery, and replay with subscription.
	mu       sync.Mutex
	history  *fanout.History[Message]
	registry *fanout.Registry[string, Message]

	forwarder Forwarder
	now       func() time.Time
	newID     func() string
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithForwarder relays every locally published message through f.
func WithForwarder(f Forwarder) Option {
	return func(b *Broadcaster) { b.forwarder = f }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Broadcaster) { b.now = now }
}

// WithIDGenerator overrides the message id source.
func WithIDGenerator(fn func() string) Option {
	return func(b *Broadcaster) { b.newID = fn }
}

// NewBroadcaster creates a broadcaster retaining historySize messages.
func NewBroadcaster(historySize int, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		history:  fanout.NewHistory[Message](historySize),
		registry: fanout.NewRegistry[string, Message]("chat"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish validates and publishes a new message. A blank author falls back
// to DefaultAuthor. The only error is ErrEmptyBody; delivery and relay
// failures are handled internally.
func (b *Broadcaster) Publish(ctx context.Context, author, body string) (Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Message{}, ErrEmptyBody
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = DefaultAuthor
	}

	msg := Message{
		ID:        b.newID(),
		Author:    author,
		Body:      body,
		CreatedAt: b.now().UnixMilli(),
	}
	b.deliver(msg)

	if b.forwarder != nil {
		if err := b.forwarder.Forward(ctx, RelayChannel, msg); err != nil {
			slog.WarnContext(ctx, "chat: relay forward failed",
				slog.String("message_id", msg.ID),
				slog.Any("error", err),
			)
		}
	}
	return msg, nil
}

// Receive delivers a message published on another instance. It is recorded
// and fanned out locally but not forwarded again.
func (b *Broadcaster) Receive(msg Message) {
	b.deliver(msg)
}

// Subscribe replays the retained history to listen, oldest first, and then
// registers it for live messages. No message published concurrently can
// fall between the replay and the subscription. If replay fails the
// listener is not registered and the error is returned.
func (b *Broadcaster) Subscribe(listen fanout.Listener[Message]) (unsubscribe func(), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.history.Replay(listen); err != nil {
		return nil, err
	}
	return b.registry.Subscribe(topic, listen), nil
}

// History returns the retained messages, oldest first.
func (b *Broadcaster) History() []Message {
	return b.history.Snapshot()
}

// Listeners reports the number of connected readers.
func (b *Broadcaster) Listeners() int {
	return b.registry.Len(topic)
}

func (b *Broadcaster) deliver(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history.Record(msg)
	b.registry.Publish(msg, topic)
}
