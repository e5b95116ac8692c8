package ws

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nwrussi/openquiz-rooms/internal/broadcast"
	"github.com/nwrussi/openquiz-rooms/internal/services/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The coordinator enforces no origin policy of its own; deployments
	// needing one should front this with a reverse proxy
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests to room-protocol websocket connections
type Handler struct {
	coordinator *session.Coordinator
	logger      *slog.Logger
}

// NewHandler creates a new websocket Handler
func NewHandler(coordinator *session.Coordinator, logger *slog.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		logger:      logger.With(slog.String("component", "ws")),
	}
}

// ServeHTTP handles one websocket session from upgrade to disconnect.
// A dropped connection is an implicit leaveRoom.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	connID := broadcast.ConnectionID("conn_" + uuid.NewString())
	events := h.coordinator.Register(connID)

	conn := newConn(connID, sock, h.coordinator, events, h.logger)
	h.logger.Info("websocket connected", slog.String("conn_id", string(connID)))

	defer func() {
		h.coordinator.Disconnect(r.Context(), connID)
		conn.close()
		h.logger.Info("websocket disconnected", slog.String("conn_id", string(connID)))
	}()

	go conn.writePump()
	conn.readPump(r.Context())
}
