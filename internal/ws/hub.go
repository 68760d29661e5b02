package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go-typing/internal/models"
	"go-typing/internal/typing"

	"github.com/goccy/go-json"
)

// TypingPublisher forwards a connected user's typing signals to the
// transport shared by every node.
type TypingPublisher interface {
	PublishTypingStart(ctx context.Context, channelId, userId, userName, threadId string) error
	PublishTypingStop(ctx context.Context, channelId, userId, threadId string) error
}

// TypingReader exposes the aggregated typing state for join snapshots.
type TypingReader interface {
	Entries(channelID, rootID string) []typing.Entry
}

// Hub maintains active WebSocket connections and pushes typing summaries
type Hub struct {
	// Registered clients by channel ID
	// Map: channelId -> Set of clients
	channels map[string]map[*Client]bool

	// Lock for thread-safe access
	mu sync.RWMutex

	register   chan *Client
	unregister chan *Client

	// Broadcast messages to clients in a channel
	Broadcast chan *models.BroadcastMessage

	publisher TypingPublisher
	typing    TypingReader
	formatter *typing.Formatter

	done chan struct{}
}

func NewHub(publisher TypingPublisher, reader TypingReader) *Hub {
	return &Hub{
		channels:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		Broadcast:  make(chan *models.BroadcastMessage, 256),
		publisher:  publisher,
		typing:     reader,
		formatter:  typing.DefaultFormatter(),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast requests until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	slog.Info("[HUB] Starting hub event loop")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			slog.Info("[HUB] Stopping hub event loop")
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.Broadcast:
			h.broadcastToChannel(message)
		}
	}
}

// PublishChange queues a typing:summary for the change's channel.
// It is registered as a typing.Tracker listener.
func (h *Hub) PublishChange(c typing.Change) {
	select {
	case h.Broadcast <- &models.BroadcastMessage{ChannelId: c.ChannelID, Change: c}:
	case <-h.done:
	}
}

// summaryFor renders c for one recipient, leaving out the recipient's own
// typing entry.
func (h *Hub) summaryFor(c typing.Change, userId string) ([]byte, error) {
	return json.Marshal(models.NewTypingSummaryEvent(c.Without(userId, h.formatter), time.Now()))
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.channels[client.channelId] == nil {
		slog.Debug("[HUB] Creating new channel", "channel", client.channelId)
		h.channels[client.channelId] = make(map[*Client]bool)
	}
	h.channels[client.channelId][client] = true
	clientCount := len(h.channels[client.channelId])
	h.mu.Unlock()

	slog.Info("[HUB] Client registered",
		"conn", client.id, "user", client.userId, "channel", client.channelId, "clients", clientCount)

	// Snapshot of the channel-level indicator only; thread indicators
	// arrive with the next change in that thread.
	if h.typing != nil {
		entries := h.typing.Entries(client.channelId, "")
		snapshot := typing.ChangeFromEntries(client.channelId, "", entries, h.formatter)
		payload, err := h.summaryFor(snapshot, client.userId)
		if err != nil {
			slog.Error("[HUB] Failed to marshal typing snapshot", "channel", client.channelId, "error", err)
			return
		}
		select {
		case client.send <- payload:
		default:
		}
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.channels[client.channelId]
	if !ok {
		slog.Warn("[HUB] Attempted to unregister client from non-existent channel", "channel", client.channelId)
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.send)

	slog.Info("[HUB] Client unregistered",
		"conn", client.id, "user", client.userId, "channel", client.channelId, "clients", len(clients))

	// Clean up empty channels
	if len(clients) == 0 {
		delete(h.channels, client.channelId)
	}
}

func (h *Hub) broadcastToChannel(message *models.BroadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.channels[message.ChannelId]
	if !ok {
		slog.Debug("[HUB] No clients connected to channel", "channel", message.ChannelId)
		return
	}

	// Clients of the same user share one rendering.
	rendered := make(map[string][]byte)
	sentCount := 0
	failedCount := 0
	for client := range clients {
		payload, ok := rendered[client.userId]
		if !ok {
			var err error
			payload, err = h.summaryFor(message.Change, client.userId)
			if err != nil {
				slog.Error("[HUB] Failed to marshal typing summary", "channel", message.ChannelId, "error", err)
				return
			}
			rendered[client.userId] = payload
		}

		select {
		case client.send <- payload:
			sentCount++
		default:
			// Client buffer full, disconnect
			slog.Warn("[HUB] Client buffer full, disconnecting", "conn", client.id, "user", client.userId, "channel", client.channelId)
			close(client.send)
			delete(clients, client)
			failedCount++
		}
	}
	if len(clients) == 0 {
		delete(h.channels, message.ChannelId)
	}

	slog.Debug("[HUB] Broadcast complete", "channel", message.ChannelId, "sent", sentCount, "failed", failedCount)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for channelId, clients := range h.channels {
		for client := range clients {
			close(client.send)
		}
		delete(h.channels, channelId)
	}
}

// ChannelClientCount returns how many connections are open on a channel.
func (h *Hub) ChannelClientCount(channelId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channelId])
}

// GetChannelUsers returns the distinct users connected to a channel
func (h *Hub) GetChannelUsers(channelId string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]bool)
	users := []string{}
	for client := range h.channels[channelId] {
		if !seen[client.userId] {
			seen[client.userId] = true
			users = append(users, client.userId)
		}
	}
	return users
}
