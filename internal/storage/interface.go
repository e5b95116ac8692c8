package storage

import (
	"context"

	"github.com/nwrussi/openquiz-rooms/internal/model"
)

// Storage defines the interface for room persistence.
// Implementations must return defensive copies from GetRoom and ListRooms
// so readers always observe a consistent snapshot of the roster.
type Storage interface {
	// SaveRoom creates or replaces a room
	SaveRoom(ctx context.Context, room *model.Room) error

	// GetRoom retrieves a room by code, or model.ErrRoomNotFound
	GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error)

	// DeleteRoom removes a room; deleting an absent room is a no-op
	DeleteRoom(ctx context.Context, code model.RoomCode) error

	// RoomExists reports whether a room with the given code is active
	RoomExists(ctx context.Context, code model.RoomCode) (bool, error)

	// ListRooms returns snapshots of all active rooms
	ListRooms(ctx context.Context) ([]*model.Room, error)
}
