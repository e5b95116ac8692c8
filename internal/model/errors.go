package model

import "errors"

// Common errors used across the application.
// All are caller-recoverable; none are fatal to the service.
var (
	// ErrRoomNotFound means an operation referenced a code with no active room
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomNotJoinable means the room exists but is no longer in the lobby state
	ErrRoomNotJoinable = errors.New("room is not joinable")

	// ErrInvalidName means a display name was empty or over-length after trimming
	ErrInvalidName = errors.New("invalid display name")

	// ErrNotHost means a non-host attempted a host-only operation
	ErrNotHost = errors.New("player is not the host")

	// ErrInvalidTransition means a state transition was attempted from a state
	// that disallows it
	ErrInvalidTransition = errors.New("invalid room state transition")

	// ErrNotInRoom means the player is not a member of the room
	ErrNotInRoom = errors.New("player is not in the room")
)
