package model

import (
	"strings"
	"time"
)

// PlayerID uniquely identifies a player across the system.
// IDs are generated per connection at join/create time and never reused.
type PlayerID string

// MaxDisplayNameLength is the longest allowed display name after trimming
const MaxDisplayNameLength = 20

// Player represents a room participant
type Player struct {
	ID          PlayerID  `json:"id"`
	DisplayName string    `json:"name"`
	Avatar      string    `json:"avatar"` // Cosmetic display token, no identity significance
	IsHost      bool      `json:"isHost"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// ValidateDisplayName trims the given name and checks its length.
// Returns the trimmed name, or ErrInvalidName if it is empty or too long.
func ValidateDisplayName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || len([]rune(trimmed)) > MaxDisplayNameLength {
		return "", ErrInvalidName
	}
	return trimmed, nil
}
