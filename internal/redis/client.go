package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go-typing/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
)

// channelPrefix namespaces per-channel pub/sub topics.
const channelPrefix = "channel:"

type Client struct {
	rdb *redis.Client
}

func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", opt.Addr)

	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Publish events to Redis

func (c *Client) PublishTypingStart(ctx context.Context, channelId, userId, userName, threadId string) error {
	return c.publishEvent(ctx, channelId, typingStartEvent(channelId, userId, userName, threadId, time.Now()))
}

func (c *Client) PublishTypingStop(ctx context.Context, channelId, userId, threadId string) error {
	return c.publishEvent(ctx, channelId, typingStopEvent(channelId, userId, threadId, time.Now()))
}

func typingStartEvent(channelId, userId, userName, threadId string, now time.Time) models.Event {
	return models.Event{
		Type:      models.TypeTypingStart,
		ChannelId: channelId,
		Timestamp: now.Unix(),
		Data: models.TypingData{
			UserId:   userId,
			UserName: userName,
			ThreadId: threadId,
		},
	}
}

func typingStopEvent(channelId, userId, threadId string, now time.Time) models.Event {
	return models.Event{
		Type:      models.TypeTypingStop,
		ChannelId: channelId,
		Timestamp: now.Unix(),
		Data: models.TypingData{
			UserId:   userId,
			ThreadId: threadId,
		},
	}
}

func (c *Client) publishEvent(ctx context.Context, channelId string, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("[REDIS] Failed to marshal event", "type", event.Type, "channel", channelId, "error", err)
		return err
	}

	channel := channelPrefix + channelId
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		slog.Error("[REDIS] Failed to publish event", "type", event.Type, "channel", channel, "error", err)
		return err
	}

	return nil
}
