package model

import "time"

// EventType identifies the type of a broadcast event
type EventType string

const (
	EventPlayerJoined EventType = "playerJoined"
	EventPlayerLeft   EventType = "playerLeft"
	EventGameStarted  EventType = "gameStarted"
	EventRoomUpdated  EventType = "roomUpdated"
	EventPlayerAction EventType = "playerAction"
)

// Event is a room-scoped broadcast delivered to every subscriber of a room code
type Event struct {
	Type      EventType `json:"event"`
	RoomCode  RoomCode  `json:"roomCode"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"data"`
}

// PlayerJoinedPayload contains data for playerJoined events
type PlayerJoinedPayload struct {
	Player Player `json:"player"`
	Room   *Room  `json:"room"`
}

// PlayerLeftPayload contains data for playerLeft events
type PlayerLeftPayload struct {
	PlayerID PlayerID `json:"playerId"`
	Room     *Room    `json:"room"`
}

// GameStartedPayload contains data for gameStarted events
type GameStartedPayload struct {
	Room *Room `json:"room"`
}

// RoomUpdatedPayload contains data for roomUpdated events.
// Fired whenever room contents change, as a catch-all signal for
// consumers that do not track the specific event types.
type RoomUpdatedPayload struct {
	Room *Room `json:"room"`
}

// PlayerActionPayload contains data for playerAction events
type PlayerActionPayload struct {
	PlayerID   PlayerID  `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Action     string    `json:"actionName"`
	Data       any       `json:"payload"`
	Timestamp  time.Time `json:"timestamp"`
}
