package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go-typing/internal/models"
	"go-typing/internal/typing"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message
	writeWait = 10 * time.Second

	// Time allowed to read next pong message
	pongWait = 60 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Client frames only carry typing signals.
	maxMessageSize = 4 * 1024

	// Time allowed to publish one typing signal
	publishWait = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Validate origin against an allow-list once the web origins are configurable
		return true
	},
}

type Client struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	channelId string
	userId    string
	userName  string
	throttle  *typing.Throttle
}

// clientMessage is a frame sent by the browser.
type clientMessage struct {
	Type string            `json:"type"`
	Data models.TypingData `json:"data"`
}

// ReadPump pumps messages from WebSocket to hub
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("[CLIENT] Unexpected close", "conn", c.id, "user", c.userId, "channel", c.channelId, "error", err)
			}
			break
		}

		c.handleClientMessage(message)
	}
}

// WritePump pumps messages from hub to WebSocket
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Error("[CLIENT] Failed to write message", "conn", c.id, "user", c.userId, "channel", c.channelId, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Error("[CLIENT] Failed to send ping", "conn", c.id, "user", c.userId, "channel", c.channelId, "error", err)
				return
			}
		}
	}
}

func (c *Client) handleClientMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		slog.Warn("[CLIENT] Error unmarshaling message", "conn", c.id, "user", c.userId, "channel", c.channelId, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishWait)
	defer cancel()

	threadId := msg.Data.ThreadId

	switch msg.Type {
	case models.TypeTypingStart:
		scope := typing.EncodeScope(c.channelId, threadId)
		if !c.throttle.Allow(scope, len(c.hub.GetChannelUsers(c.channelId))) {
			return
		}
		if err := c.hub.publisher.PublishTypingStart(ctx, c.channelId, c.userId, c.userName, threadId); err != nil {
			slog.Error("[CLIENT] Failed to publish typing:start", "conn", c.id, "user", c.userId, "channel", c.channelId, "error", err)
		}

	case models.TypeTypingStop:
		if err := c.hub.publisher.PublishTypingStop(ctx, c.channelId, c.userId, threadId); err != nil {
			slog.Error("[CLIENT] Failed to publish typing:stop", "conn", c.id, "user", c.userId, "channel", c.channelId, "error", err)
		}

	case "":
		slog.Warn("[CLIENT] No 'type' field in message", "conn", c.id, "user", c.userId, "channel", c.channelId)

	default:
		slog.Warn("[CLIENT] Unknown event type", "type", msg.Type, "conn", c.id, "user", c.userId, "channel", c.channelId)
	}
}
