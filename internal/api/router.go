package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nwrussi/openquiz-rooms/internal/api/handler"
	"github.com/nwrussi/openquiz-rooms/internal/middleware"
	"github.com/nwrussi/openquiz-rooms/internal/services/room"
	"github.com/nwrussi/openquiz-rooms/internal/services/session"
	"github.com/nwrussi/openquiz-rooms/internal/ws"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	RoomController *room.Controller
	Coordinator    *session.Coordinator
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	roomHandler := handler.NewRoomHandler(cfg.RoomController)
	wsHandler := ws.NewHandler(cfg.Coordinator, cfg.Logger)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	api.HandleFunc("/health", handler.Health).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{code}", roomHandler.Get).Methods(http.MethodGet)
	api.Handle("/ws", wsHandler).Methods(http.MethodGet)

	return r
}
