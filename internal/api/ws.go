package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tutu-network/wgsim/internal/domain"
)

// Websocket message types.
const (
	MessageStatus = "status"
	MessageFault  = "fault"
)

// WSMessage is the envelope of every websocket message.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StatusHub streams network status to websocket clients.
type StatusHub struct {
	source   func() domain.NetworkStatus
	interval time.Duration
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewStatusHub creates a hub reading status from source. Origins are
// accepted when allow returns true.
func NewStatusHub(source func() domain.NetworkStatus, interval time.Duration, logger *slog.Logger, allow func(string) bool) *StatusHub {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StatusHub{
		source:   source,
		interval: interval,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return allow(r.Header.Get("Origin"))
			},
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start pushes a status to every client each interval until ctx is done.
func (h *StatusHub) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				h.closeAll()
				return
			case <-ticker.C:
				h.BroadcastStatus()
			}
		}
	}()
}

// HandleWebSocket upgrades the request and registers the client. The
// client receives the current status right away.
func (h *StatusHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	first, err := json.Marshal(WSMessage{Type: MessageStatus, Payload: h.source()})
	if err != nil {
		conn.Close()
		return
	}

	// Registered under the lock so no broadcast overtakes the first status.
	h.mu.Lock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, first); err != nil {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket connected", slog.String("remote", r.RemoteAddr))

	// Drain reads so close frames are noticed.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// BroadcastStatus sends the current status to every client.
func (h *StatusHub) BroadcastStatus() {
	h.Broadcast(MessageStatus, h.source())
}

// Broadcast sends one message to every client, dropping clients that fail.
func (h *StatusHub) Broadcast(typ string, payload any) {
	data, err := json.Marshal(WSMessage{Type: typ, Payload: payload})
	if err != nil {
		h.logger.Warn("websocket marshal failed", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Clients returns the number of connected clients.
func (h *StatusHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *StatusHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

func (h *StatusHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
