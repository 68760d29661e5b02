package redis

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"go-typing/internal/clock"
	"go-typing/internal/models"
	"go-typing/internal/typing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []typing.Event
}

func (s *recordingSink) Handle(ev typing.Event) {
	s.events = append(s.events, ev)
}

// messageCreatedEvent mirrors the envelope the post service publishes.
func messageCreatedEvent(channelId string, message models.MessageCreatedData, now time.Time) models.Event {
	return models.Event{
		Type:      models.TypeMessageCreated,
		ChannelId: channelId,
		Timestamp: now.Unix(),
		Data:      message,
	}
}

func marshal(t *testing.T, ev models.Event) []byte {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	return payload
}

func TestHandlePayload_RoundTripsPublishedEvents(t *testing.T) {
	now := time.Unix(1700000000, 0)
	sink := &recordingSink{}

	handlePayload("channel:C1", marshal(t, typingStartEvent("C1", "u1", "alice", "R1", now)), sink)
	handlePayload("channel:C1", marshal(t, typingStopEvent("C1", "u1", "R1", now)), sink)
	handlePayload("channel:C1", marshal(t, messageCreatedEvent("C1", models.MessageCreatedData{
		ID:       "p1",
		AuthorId: "u2",
	}, now)), sink)

	require.Len(t, sink.events, 3)
	assert.Equal(t, typing.StartedTyping{UserID: "u1", DisplayName: "alice", ChannelID: "C1", RootID: "R1", OccurredAt: now}, sink.events[0])
	assert.Equal(t, typing.StoppedTyping{UserID: "u1", ChannelID: "C1", RootID: "R1"}, sink.events[1])
	assert.Equal(t, typing.PostCreated{Post: typing.Post{ID: "p1", UserID: "u2", ChannelID: "C1"}}, sink.events[2])
}

func TestHandlePayload_DropsBadEvents(t *testing.T) {
	sink := &recordingSink{}

	handlePayload("channel:C1", []byte(`not json`), sink)
	handlePayload("channel:C1", []byte(`{"type":"presence:join","channelId":"C1","data":{"userId":"u1"}}`), sink)
	handlePayload("channel:C1", []byte(`{"type":"typing:start","channelId":"C1","data":{}}`), sink)

	assert.Empty(t, sink.events)
}

func TestHandlePayload_DrivesTracker(t *testing.T) {
	now := time.Unix(1700000000, 0)
	fake := clock.NewFake(now)
	tr := typing.NewTracker(
		typing.WithClock(fake),
		typing.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	defer tr.Close()

	handlePayload("channel:C1", marshal(t, typingStartEvent("C1", "u1", "alice", "", now)), tr)
	handlePayload("channel:C1", marshal(t, typingStartEvent("C1", "u2", "bob", "", now)), tr)
	assert.Equal(t, "alice and bob are typing…", tr.Summary("C1", ""))

	handlePayload("channel:C1", marshal(t, messageCreatedEvent("C1", models.MessageCreatedData{ID: "p1", AuthorId: "u1"}, now)), tr)
	assert.Equal(t, "bob is typing…", tr.Summary("C1", ""))

	fake.Advance(typing.DefaultTimeout)
	assert.Equal(t, "", tr.Summary("C1", ""))
}
