package models

import (
	"errors"
	"fmt"
	"time"

	"go-typing/internal/typing"

	"github.com/goccy/go-json"
)

const (
	TypeMessageCreated = "message:created"
	TypeTypingStart    = "typing:start"
	TypeTypingStop     = "typing:stop"
	TypeTypingSummary  = "typing:summary"
)

var (
	ErrMalformedEvent   = errors.New("malformed event")
	ErrUnsupportedEvent = errors.New("unsupported event type")
)

type Event struct {
	Type      string      `json:"type"`
	ChannelId string      `json:"channelId"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// rawEvent defers decoding of data until the type is known.
type rawEvent struct {
	Type      string          `json:"type"`
	ChannelId string          `json:"channelId"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// BroadcastMessage carries one typing change to a channel's connections.
// Each recipient gets its own rendering without its own entry.
type BroadcastMessage struct {
	ChannelId string
	Change    typing.Change
}

// Specific event data structures

type MessageCreatedData struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	ImageUrl     string `json:"imageUrl,omitempty"`
	AuthorId     string `json:"authorId"`
	AuthorName   string `json:"authorName"`
	AuthorEmail  string `json:"authorEmail"`
	AuthorAvatar string `json:"authorAvatar"`
	RootId       string `json:"rootId,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

type TypingData struct {
	UserId   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
	ThreadId string `json:"threadId,omitempty"`
}

type TypingSummaryData struct {
	ThreadId  string   `json:"threadId,omitempty"`
	UserNames []string `json:"userNames"`
	Summary   string   `json:"summary"`
}

// Decode parses one envelope into a typing event. Types the tracker does not
// consume return ErrUnsupportedEvent; missing ids return ErrMalformedEvent.
func Decode(payload []byte) (typing.Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if raw.ChannelId == "" {
		return nil, fmt.Errorf("%w: %s without channelId", ErrMalformedEvent, raw.Type)
	}

	switch raw.Type {
	case TypeTypingStart, TypeTypingStop:
		var data TypingData
		if err := decodeData(raw, &data); err != nil {
			return nil, err
		}
		if data.UserId == "" {
			return nil, fmt.Errorf("%w: %s without userId", ErrMalformedEvent, raw.Type)
		}
		if raw.Type == TypeTypingStop {
			return typing.StoppedTyping{
				UserID:    data.UserId,
				ChannelID: raw.ChannelId,
				RootID:    data.ThreadId,
			}, nil
		}
		return typing.StartedTyping{
			UserID:      data.UserId,
			DisplayName: data.UserName,
			ChannelID:   raw.ChannelId,
			RootID:      data.ThreadId,
			OccurredAt:  unixOrZero(raw.Timestamp),
		}, nil

	case TypeMessageCreated:
		var data MessageCreatedData
		if err := decodeData(raw, &data); err != nil {
			return nil, err
		}
		if data.AuthorId == "" {
			return nil, fmt.Errorf("%w: %s without authorId", ErrMalformedEvent, raw.Type)
		}
		return typing.PostCreated{Post: typing.Post{
			ID:        data.ID,
			UserID:    data.AuthorId,
			ChannelID: raw.ChannelId,
			RootID:    data.RootId,
		}}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, raw.Type)
	}
}

func decodeData(raw rawEvent, v interface{}) error {
	if len(raw.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrMalformedEvent, raw.Type)
	}
	if err := json.Unmarshal(raw.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrMalformedEvent, raw.Type, err)
	}
	return nil
}

func unixOrZero(ts int64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

// NewTypingSummaryEvent builds the frame pushed to WebSocket clients when a
// scope's typing list changes.
func NewTypingSummaryEvent(c typing.Change, now time.Time) Event {
	names := c.Names
	if names == nil {
		names = []string{}
	}
	return Event{
		Type:      TypeTypingSummary,
		ChannelId: c.ChannelID,
		Timestamp: now.Unix(),
		Data: TypingSummaryData{
			ThreadId:  c.RootID,
			UserNames: names,
			Summary:   c.Summary,
		},
	}
}
