package websocket

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/caleywoods/wayfindr/internal/transport"
	"github.com/caleywoods/wayfindr/pkg/streaming"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

// PlayerParam is the query parameter carrying the connecting player's id.
const PlayerParam = "player"

// Handler upgrades requests to websocket connections attached to a hub.
type Handler struct {
	hub      transport.Hub
	upgrader ws.Upgrader
	pongWait time.Duration
	logger   *slog.Logger
}

// NewHandler creates a Handler serving hub.
func NewHandler(hub transport.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub: hub,
		upgrader: ws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pongWait: defaultPongWait,
		logger:   logger,
	}
}

// ServeHTTP runs one peer connection until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	player, err := uuid.Parse(r.URL.Query().Get(PlayerParam))
	if err != nil || player == uuid.Nil {
		http.Error(w, "missing or invalid player id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "player", player, "error", err)
		return
	}

	logger := h.logger.With("player", player)
	p := newPeer(conn, h.pongWait, logger)
	go p.writeLoop()

	connID, err := h.hub.Join(player, p)
	if err != nil {
		logger.Warn("Hub refused peer", "error", err)
		p.close()
		return
	}
	logger.Info("Peer connected", "remote", r.RemoteAddr)

	p.readLoop(func(env streaming.Envelope) {
		h.hub.Receive(player, env)
	})

	h.hub.Leave(player, connID)
	p.close()
	logger.Info("Peer disconnected")
}
