// Package relay forwards chat events between application instances over
// Redis pub/sub so readers connected to one instance see messages published
// on another.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/commune/backend/internal/metrics"
)

const channelPrefix = "commune:relay:"

type envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// Relay publishes and receives events tagged with the sending instance id.
type Relay struct {
	client     redis.UniversalClient
	instanceID string
}

// New creates a relay for the given instance.
func New(client redis.UniversalClient, instanceID string) *Relay {
	return &Relay{client: client, instanceID: instanceID}
}

// InstanceID returns the id attached to outgoing events.
func (r *Relay) InstanceID() string {
	return r.instanceID
}

// Forward publishes v on channel for every other instance.
func (r *Relay) Forward(ctx context.Context, channel string, v any) error {
	data, err := r.encode(v)
	if err != nil {
		metrics.RelayMessages.WithLabelValues(channel, "out", "error").Inc()
		return err
	}
	if err := r.client.Publish(ctx, channelPrefix+channel, data).Err(); err != nil {
		metrics.RelayMessages.WithLabelValues(channel, "out", "error").Inc()
		return fmt.Errorf("relay: publish %s: %w", channel, err)
	}
	metrics.RelayMessages.WithLabelValues(channel, "out", "ok").Inc()
	return nil
}

// PingContext checks the Redis connection.
func (r *Relay) PingContext(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Relay) encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("relay: encode payload: %w", err)
	}
	return json.Marshal(envelope{Origin: r.instanceID, Payload: payload})
}

// decode unpacks an envelope. remote is false for events this instance sent.
func decode[T any](instanceID string, data []byte) (event T, remote bool, err error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return event, false, fmt.Errorf("relay: decode envelope: %w", err)
	}
	if env.Origin == instanceID {
		return event, false, nil
	}
	if err := json.Unmarshal(env.Payload, &event); err != nil {
		return event, false, fmt.Errorf("relay: decode payload: %w", err)
	}
	return event, true, nil
}

// Listen subscribes to channel and calls handle for every event published by
// another instance until ctx is cancelled. The subscription loop runs on its
// own goroutine; Listen returns once Redis confirms the subscription.
func Listen[T any](ctx context.Context, r *Relay, channel string, handle func(T)) error {
	pubsub := r.client.Subscribe(ctx, channelPrefix+channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("relay: subscribe %s: %w", channel, err)
	}

	go func() {
		defer pubsub.Close()
		slog.Info("relay: subscribed", slog.String("channel", channel), slog.String("instance", r.instanceID))

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				slog.Info("relay: subscription stopping", slog.String("channel", channel))
				return
			case msg, ok := <-messages:
				if !ok {
					slog.Warn("relay: pubsub channel closed", slog.String("channel", channel))
					return
				}
				event, remote, err := decode[T](r.instanceID, []byte(msg.Payload))
				if err != nil {
					metrics.RelayMessages.WithLabelValues(channel, "in", "error").Inc()
					slog.Warn("relay: dropping malformed event", slog.String("channel", channel), slog.Any("error", err))
					continue
				}
				if !remote {
					continue
				}
				metrics.RelayMessages.WithLabelValues(channel, "in", "ok").Inc()
				handle(event)
			}
		}
	}()
	return nil
}
