package websocket

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lcalzada-xor/auditchain/internal/core/services/broadcast"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Allow same-origin (no Origin header)
		if origin == "" {
			return true
		}

		allowedOrigins := []string{
			"http://localhost:8080",
			"http://127.0.0.1:8080",
			"http://[::1]:8080",
		}
		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}

		slog.Warn("websocket rejected origin", "origin", origin)
		return false
	},
}

// Manager bridges the event broadcaster onto live websocket connections.
// Each connection gets its own subscription, so one slow client only ever
// sheds its own buffer.
type Manager struct {
	Broadcaster *broadcast.Broadcaster
}

// NewManager creates a websocket manager over the broadcaster.
func NewManager(b *broadcast.Broadcaster) *Manager {
	return &Manager{Broadcaster: b}
}

// HandleWebSocket upgrades the connection and streams events until either
// side goes away. Reconnecting clients backfill missed entries through the
// range endpoint.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	sub := m.Broadcaster.Subscribe()
	slog.Info("websocket connected", "subscription", sub.ID())

	// Writer: pump subscription events onto the wire.
	go func() {
		defer conn.Close()
		for event := range sub.Events() {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				m.Broadcaster.Unsubscribe(sub)
				return
			}
		}
	}()

	// Reader: detect disconnect and release the subscription buffer.
	go func() {
		defer conn.Close()
		defer func() {
			m.Broadcaster.Unsubscribe(sub)
			slog.Info("websocket disconnected", "subscription", sub.ID(), "dropped_events", sub.Dropped())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
