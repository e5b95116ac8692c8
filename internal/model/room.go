package model

import (
	"strings"
	"time"
)

// RoomCode is a human-readable identifier for joining rooms.
// Codes are always stored uppercase; use NormalizeRoomCode on user input.
type RoomCode string

// RoomCodeLength is the length of generated room codes
const RoomCodeLength = 4

// RoomStatus represents the lifecycle state of a room
type RoomStatus string

const (
	RoomStatusLobby    RoomStatus = "lobby"    // Players may join
	RoomStatusPlaying  RoomStatus = "playing"  // Game in progress
	RoomStatusFinished RoomStatus = "finished" // Terminal
)

// DeckRef is an opaque reference to the deck being studied.
// The coordinator never interprets its contents.
type DeckRef string

// Room represents a transient multiplayer study session
type Room struct {
	Code      RoomCode   `json:"code"`
	HostID    PlayerID   `json:"hostId"`
	DeckRef   DeckRef    `json:"deckRef"`
	Players   []Player   `json:"players"` // Insertion order = join order
	Status    RoomStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// GetHost returns the current host player, or nil if none
func (r *Room) GetHost() *Player {
	for i := range r.Players {
		if r.Players[i].IsHost {
			return &r.Players[i]
		}
	}
	return nil
}

// GetPlayer returns the player with the given ID, or nil if not found
func (r *Room) GetPlayer(id PlayerID) *Player {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i]
		}
	}
	return nil
}

// CanTransition reports whether the room may move to the given status.
// Transitions are monotonic: lobby -> playing -> finished.
func (r *Room) CanTransition(to RoomStatus) bool {
	switch to {
	case RoomStatusPlaying:
		return r.Status == RoomStatusLobby
	case RoomStatusFinished:
		return r.Status == RoomStatusPlaying
	default:
		return false
	}
}

// Clone returns a deep copy of the room.
// Storage backends hand out clones so readers always see a consistent snapshot.
func (r *Room) Clone() *Room {
	c := *r
	c.Players = make([]Player, len(r.Players))
	copy(c.Players, r.Players)
	return &c
}

// NormalizeRoomCode uppercases a user-supplied room code
func NormalizeRoomCode(code string) RoomCode {
	return RoomCode(strings.ToUpper(strings.TrimSpace(code)))
}
