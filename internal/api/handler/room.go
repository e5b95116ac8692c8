package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nwrussi/openquiz-rooms/internal/api/apierr"
	"github.com/nwrussi/openquiz-rooms/internal/api/response"
	"github.com/nwrussi/openquiz-rooms/internal/model"
	"github.com/nwrussi/openquiz-rooms/internal/services/room"
)

// RoomHandler serves read-only room snapshots
type RoomHandler struct {
	rooms *room.Controller
}

// NewRoomHandler creates a new RoomHandler
func NewRoomHandler(rooms *room.Controller) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// Get handles GET /api/v1/rooms/{code}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := model.NormalizeRoomCode(mux.Vars(r)["code"])

	snapshot, err := h.rooms.GetRoom(r.Context(), code)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, snapshot)
}

// Health handles GET /api/v1/health
func Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
