package redis

import (
	"context"
	"errors"
	"log/slog"

	"go-typing/internal/models"
	"go-typing/internal/typing"
)

// EventSink consumes decoded typing events.
type EventSink interface {
	Handle(ev typing.Event)
}

// SubscribeToEvents feeds every channel event published on Redis into sink
// until ctx is cancelled or the subscription closes.
func SubscribeToEvents(ctx context.Context, client *Client, sink EventSink) error {
	slog.Info("[REDIS] Starting Redis pub/sub subscription...")

	// Subscribe to all channel events using pattern
	pattern := channelPrefix + "*"
	pubsub := client.rdb.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		slog.Error("[REDIS] Failed to receive subscription confirmation", "error", err)
		return err
	}

	slog.Info("[REDIS] Subscribed to Redis pub/sub", "pattern", pattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			slog.Info("[REDIS] Subscription stopped", "reason", ctx.Err())
			return nil
		case msg, ok := <-ch:
			if !ok {
				slog.Info("[REDIS] Redis pub/sub channel closed")
				return nil
			}
			handlePayload(msg.Channel, []byte(msg.Payload), sink)
		}
	}
}

func handlePayload(channel string, payload []byte, sink EventSink) {
	ev, err := models.Decode(payload)
	if err != nil {
		if errors.Is(err, models.ErrUnsupportedEvent) {
			slog.Debug("[REDIS] Skipping event", "channel", channel, "error", err)
			return
		}
		slog.Warn("[REDIS] Dropping malformed event", "channel", channel, "error", err, "payload", string(payload))
		return
	}
	sink.Handle(ev)
}
