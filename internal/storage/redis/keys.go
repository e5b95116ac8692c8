package redis

import (
	"fmt"

	"github.com/nwrussi/openquiz-rooms/internal/model"
)

// Key prefix for all room data
const keyPrefix = "oqrooms"

// roomKey returns the Redis key for a Room
func roomKey(code model.RoomCode) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, code)
}

// roomKeyPattern matches all room keys, for scans
func roomKeyPattern() string {
	return fmt.Sprintf("%s:room:*", keyPrefix)
}
