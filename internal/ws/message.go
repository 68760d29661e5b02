package ws

import (
	"log/slog"
	"net/http"

	"go-typing/internal/auth"
	"go-typing/internal/clock"
	"go-typing/internal/typing"

	"github.com/google/uuid"
)

// TokenValidator authenticates the bearer token on upgrade.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Handler upgrades authenticated requests to typing connections.
type Handler struct {
	Hub       *Hub
	Validator TokenValidator
	Throttle  typing.ThrottleConfig
	Clock     clock.Clock
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr

	token := auth.ExtractTokenFromRequest(r)
	if token == "" {
		slog.Warn("[WS] No token provided", "from", remoteAddr)
		http.Error(w, "Unauthorized: token required", http.StatusUnauthorized)
		return
	}

	claims, err := h.Validator.ValidateToken(token)
	if err != nil {
		slog.Warn("[WS] Token validation failed", "from", remoteAddr, "error", err)
		http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
		return
	}

	channelId := r.URL.Query().Get("channelId")
	if channelId == "" {
		slog.Warn("[WS] No channelId provided", "user", claims.Subject, "from", remoteAddr)
		http.Error(w, "channelId required", http.StatusBadRequest)
		return
	}

	// TODO: Verify channel membership once a membership service is available to query

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("[WS] Failed to upgrade connection", "user", claims.Subject, "channel", channelId, "error", err)
		return
	}

	client := &Client{
		id:        uuid.NewString(),
		hub:       h.Hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		channelId: channelId,
		userId:    claims.Subject,
		userName:  claims.DisplayName(),
		throttle:  typing.NewThrottle(h.Throttle, h.Clock),
	}

	slog.Info("[WS] Connection upgraded", "conn", client.id, "user", client.userId, "channel", channelId)

	select {
	case h.Hub.register <- client:
	case <-h.Hub.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
