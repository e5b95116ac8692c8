package room

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nwrussi/openquiz-rooms/internal/dependencies/clock"
	"github.com/nwrussi/openquiz-rooms/internal/dependencies/random"
	"github.com/nwrussi/openquiz-rooms/internal/model"
	"github.com/nwrussi/openquiz-rooms/internal/storage"
)

// RoomCodeAlphabet is the characters used in room codes
const RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// HostAvatar is the display token assigned to room creators
const HostAvatar = "\U0001F468‍\U0001F3EB" // 👨‍🏫

// AvatarPalette is the fixed set of display tokens assigned to joining players
var AvatarPalette = []string{
	"\U0001F600", // 😀
	"\U0001F60E", // 😎
	"\U0001F913", // 🤓
	"\U0001F973", // 🥳
	"\U0001F929", // 🤩
	"\U0001F607", // 😇
	"\U0001F917", // 🤗
	"\U0001F984", // 🦄
	"\U0001F431", // 🐱
	"\U0001F436", // 🐶
	"\U0001F98A", // 🦊
	"\U0001F43C", // 🐼
}

// Controller owns room creation, lookup and deletion, and enforces the
// room state machine (lobby -> playing -> finished) and roster rules.
// Mutating operations on a given room code are serialized; operations on
// different codes proceed in parallel.
type Controller struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	// createMu serializes code generation against registration, so two
	// concurrent creates cannot race the collision check
	createMu sync.Mutex

	roomMu sync.Mutex
	locks  map[model.RoomCode]*sync.Mutex
}

// NewController creates a new room Controller
func NewController(storage storage.Storage, clock clock.Clock, random random.Random, logger *slog.Logger) *Controller {
	return &Controller{
		storage: storage,
		clock:   clock,
		random:  random,
		logger:  logger.With(slog.String("component", "room")),
		locks:   make(map[model.RoomCode]*sync.Mutex),
	}
}

// lockRoom returns the mutex serializing writes for one room code
func (c *Controller) lockRoom(code model.RoomCode) *sync.Mutex {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	mu, ok := c.locks[code]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[code] = mu
	}
	return mu
}

// releaseRoomLock drops the per-room mutex once the room is gone
func (c *Controller) releaseRoomLock(code model.RoomCode) {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	delete(c.locks, code)
}

// newPlayerID generates a per-connection player identity, never reused
func newPlayerID() model.PlayerID {
	return model.PlayerID("player_" + uuid.NewString())
}

// CreateRoom creates a new room with a single host player and lobby status
func (c *Controller) CreateRoom(ctx context.Context, deckRef model.DeckRef, hostName string) (*model.Room, error) {
	name, err := model.ValidateDisplayName(hostName)
	if err != nil {
		return nil, err
	}

	c.createMu.Lock()
	defer c.createMu.Unlock()

	// Generate a unique room code; retry on collision with an active room
	var code model.RoomCode
	for {
		code = model.RoomCode(c.random.String(model.RoomCodeLength, RoomCodeAlphabet))
		exists, err := c.storage.RoomExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if !exists {
			break
		}
	}

	now := c.clock.Now()
	host := model.Player{
		ID:          newPlayerID(),
		DisplayName: name,
		Avatar:      HostAvatar,
		IsHost:      true,
		JoinedAt:    now,
	}

	room := &model.Room{
		Code:      code,
		HostID:    host.ID,
		DeckRef:   deckRef,
		Players:   []model.Player{host},
		Status:    model.RoomStatusLobby,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	c.logger.Info("room created",
		slog.String("room", string(code)),
		slog.String("host_id", string(host.ID)))
	return room, nil
}

// GetRoom retrieves a room snapshot by code
func (c *Controller) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	return c.storage.GetRoom(ctx, code)
}

// RemoveRoom deletes a room; removing an absent room is a no-op
func (c *Controller) RemoveRoom(ctx context.Context, code model.RoomCode) error {
	mu := c.lockRoom(code)
	mu.Lock()
	defer mu.Unlock()

	if err := c.storage.DeleteRoom(ctx, code); err != nil {
		return err
	}
	c.releaseRoomLock(code)
	return nil
}

// AddPlayer adds a player to a lobby-status room and returns the updated
// room and the new player
func (c *Controller) AddPlayer(ctx context.Context, code model.RoomCode, playerName string) (*model.Room, *model.Player, error) {
	name, err := model.ValidateDisplayName(playerName)
	if err != nil {
		return nil, nil, err
	}

	mu := c.lockRoom(code)
	mu.Lock()
	defer mu.Unlock()

	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if room.Status != model.RoomStatusLobby {
		return nil, nil, model.ErrRoomNotJoinable
	}

	player := model.Player{
		ID:          newPlayerID(),
		DisplayName: name,
		Avatar:      c.random.Pick(AvatarPalette),
		IsHost:      false,
		JoinedAt:    c.clock.Now(),
	}

	room.Players = append(room.Players, player)
	room.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, nil, err
	}

	c.logger.Info("player joined",
		slog.String("room", string(code)),
		slog.String("player_id", string(player.ID)))
	return room, &player, nil
}

// RemovePlayer removes the player with the given id. If the removed player
// was host and others remain, the earliest-joined remaining player (ties
// broken by player id) is promoted. When the last player leaves, the room
// is deleted and the returned room is nil.
func (c *Controller) RemovePlayer(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*model.Room, error) {
	mu := c.lockRoom(code)
	mu.Lock()
	defer mu.Unlock()

	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	member := room.GetPlayer(playerID)
	if member == nil {
		return nil, model.ErrNotInRoom
	}
	wasHost := member.IsHost

	for i := range room.Players {
		if room.Players[i].ID == playerID {
			room.Players = append(room.Players[:i], room.Players[i+1:]...)
			break
		}
	}

	// Last leaver deletes the room
	if len(room.Players) == 0 {
		if err := c.storage.DeleteRoom(ctx, code); err != nil {
			return nil, err
		}
		c.releaseRoomLock(code)
		c.logger.Info("room deleted - last player left", slog.String("room", string(code)))
		return nil, nil
	}

	if wasHost {
		next := nextHost(room.Players)
		room.Players[next].IsHost = true
		room.HostID = room.Players[next].ID
		c.logger.Info("host promoted",
			slog.String("room", string(code)),
			slog.String("host_id", string(room.HostID)))
	}

	room.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// nextHost picks the promotion target: earliest JoinedAt, ties by player id,
// so replaying the same departures always promotes the same player
func nextHost(players []model.Player) int {
	best := 0
	for i := 1; i < len(players); i++ {
		switch {
		case players[i].JoinedAt.Before(players[best].JoinedAt):
			best = i
		case players[i].JoinedAt.Equal(players[best].JoinedAt) && players[i].ID < players[best].ID:
			best = i
		}
	}
	return best
}

// StartGame transitions a room from lobby to playing. Host-only.
func (c *Controller) StartGame(ctx context.Context, code model.RoomCode, requesterID model.PlayerID) (*model.Room, error) {
	return c.transition(ctx, code, requesterID, model.RoomStatusPlaying)
}

// FinishGame transitions a room from playing to finished. Host-only; the
// finishing condition itself (e.g. all cards exhausted) is the caller's.
func (c *Controller) FinishGame(ctx context.Context, code model.RoomCode, requesterID model.PlayerID) (*model.Room, error) {
	return c.transition(ctx, code, requesterID, model.RoomStatusFinished)
}

func (c *Controller) transition(ctx context.Context, code model.RoomCode, requesterID model.PlayerID, to model.RoomStatus) (*model.Room, error) {
	mu := c.lockRoom(code)
	mu.Lock()
	defer mu.Unlock()

	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	host := room.GetHost()
	if host == nil || host.ID != requesterID {
		return nil, model.ErrNotHost
	}
	if !room.CanTransition(to) {
		return nil, model.ErrInvalidTransition
	}

	room.Status = to
	room.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	c.logger.Info("room status changed",
		slog.String("room", string(code)),
		slog.String("status", string(to)))
	return room, nil
}

// Touch refreshes a room's activity timestamp without other mutation.
// Used by the coordinator on player actions so active rooms never expire.
func (c *Controller) Touch(ctx context.Context, code model.RoomCode) error {
	mu := c.lockRoom(code)
	mu.Lock()
	defer mu.Unlock()

	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	room.UpdatedAt = c.clock.Now()
	return c.storage.SaveRoom(ctx, room)
}

// ExpireIdle deletes rooms with no activity since the cutoff and returns
// the deleted codes
func (c *Controller) ExpireIdle(ctx context.Context, idleFor time.Duration) ([]model.RoomCode, error) {
	rooms, err := c.storage.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := c.clock.Now().Add(-idleFor)
	var expired []model.RoomCode
	for _, room := range rooms {
		if room.UpdatedAt.After(cutoff) {
			continue
		}
		if err := c.RemoveRoom(ctx, room.Code); err != nil {
			return expired, err
		}
		c.logger.Info("idle room expired", slog.String("room", string(room.Code)))
		expired = append(expired, room.Code)
	}
	return expired, nil
}
