package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nwrussi/openquiz-rooms/internal/broadcast"
	"github.com/nwrussi/openquiz-rooms/internal/dependencies/clock"
	"github.com/nwrussi/openquiz-rooms/internal/model"
	"github.com/nwrussi/openquiz-rooms/internal/services/room"
)

// Config holds coordinator tuning knobs
type Config struct {
	// ActionsPerSecond limits playerAction fan-out per connection;
	// 0 disables the limit
	ActionsPerSecond float64
	// ActionBurst is the burst allowance for the action limiter
	ActionBurst int
}

// ErrUnregisteredConnection means an operation was issued for a connection
// id that was never registered (or already disconnected)
var ErrUnregisteredConnection = errors.New("connection is not registered")

// DefaultConfig returns sensible defaults for coordinator configuration
func DefaultConfig() Config {
	return Config{
		ActionsPerSecond: 20,
		ActionBurst:      40,
	}
}

// session tracks one connection's identity and room membership.
// Fields are guarded by the Coordinator mutex.
type session struct {
	connID     broadcast.ConnectionID
	events     chan model.Event
	limiter    *rate.Limiter
	playerID   model.PlayerID
	playerName string
	roomCode   model.RoomCode
}

func (s *session) inRoom() bool {
	return s.roomCode != ""
}

// Coordinator is the connection-facing API surface. It translates client
// intents into room registry/state-machine calls and triggers broadcasts
// on success. All room mutation flows through here; per-room locks keep
// the broadcast order identical to the mutation order.
type Coordinator struct {
	rooms       *room.Controller
	broadcaster *broadcast.Broadcaster
	clock       clock.Clock
	logger      *slog.Logger
	cfg         Config

	mu       sync.Mutex
	sessions map[broadcast.ConnectionID]*session

	orderMu    sync.Mutex
	orderLocks map[model.RoomCode]*sync.Mutex
}

// NewCoordinator creates a new Coordinator
func NewCoordinator(rooms *room.Controller, broadcaster *broadcast.Broadcaster, clock clock.Clock, cfg Config, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		rooms:       rooms,
		broadcaster: broadcaster,
		clock:       clock,
		logger:      logger.With(slog.String("component", "session")),
		cfg:         cfg,
		sessions:    make(map[broadcast.ConnectionID]*session),
		orderLocks:  make(map[model.RoomCode]*sync.Mutex),
	}
}

// Register attaches a new connection and returns the channel its broadcast
// events will be delivered on. Registering an existing connection id
// replaces the previous session.
func (c *Coordinator) Register(connID broadcast.ConnectionID) <-chan model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var limiter *rate.Limiter
	if c.cfg.ActionsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.cfg.ActionsPerSecond), c.cfg.ActionBurst)
	}

	sess := &session{
		connID:  connID,
		events:  make(chan model.Event, broadcast.SubscriberBufferSize),
		limiter: limiter,
	}
	c.sessions[connID] = sess
	return sess.events
}

// Disconnect detaches a connection, treating it as an implicit leaveRoom
// for any room it was in
func (c *Coordinator) Disconnect(ctx context.Context, connID broadcast.ConnectionID) {
	_ = c.LeaveRoom(ctx, connID)
	c.mu.Lock()
	delete(c.sessions, connID)
	c.mu.Unlock()
}

// lockOrder serializes mutate+publish sequences for one room code, so
// subscribers observe events in mutation order
func (c *Coordinator) lockOrder(code model.RoomCode) *sync.Mutex {
	c.orderMu.Lock()
	defer c.orderMu.Unlock()
	mu, ok := c.orderLocks[code]
	if !ok {
		mu = &sync.Mutex{}
		c.orderLocks[code] = mu
	}
	return mu
}

func (c *Coordinator) dropOrderLock(code model.RoomCode) {
	c.orderMu.Lock()
	defer c.orderMu.Unlock()
	delete(c.orderLocks, code)
}

func (c *Coordinator) getSession(connID broadcast.ConnectionID) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[connID]
}

// CreateRoom creates a room with the caller as host and subscribes the
// caller to it. Nobody else is subscribed yet, so nothing is broadcast.
func (c *Coordinator) CreateRoom(ctx context.Context, connID broadcast.ConnectionID, deckRef model.DeckRef, hostName string) (*model.Room, error) {
	sess := c.getSession(connID)
	if sess == nil {
		return nil, ErrUnregisteredConnection
	}

	// A connection can be in one room at a time; creating while in a
	// room leaves the old one first
	if sess.inRoom() {
		_ = c.LeaveRoom(ctx, connID)
	}

	created, err := c.rooms.CreateRoom(ctx, deckRef, hostName)
	if err != nil {
		return nil, err
	}

	host := created.GetHost()

	c.mu.Lock()
	sess.playerID = host.ID
	sess.playerName = host.DisplayName
	sess.roomCode = created.Code
	c.mu.Unlock()

	c.broadcaster.Subscribe(created.Code, connID, sess.events)
	return created, nil
}

// JoinRoom adds the caller to a room and subscribes it. Existing
// subscribers receive playerJoined and roomUpdated; the caller's own join
// is reflected in the returned room only, never echoed back to it.
func (c *Coordinator) JoinRoom(ctx context.Context, connID broadcast.ConnectionID, roomCode string, playerName string) (*model.Room, error) {
	sess := c.getSession(connID)
	if sess == nil {
		return nil, ErrUnregisteredConnection
	}
	if sess.inRoom() {
		_ = c.LeaveRoom(ctx, connID)
	}

	code := model.NormalizeRoomCode(roomCode)

	mu := c.lockOrder(code)
	mu.Lock()
	defer mu.Unlock()

	updated, player, err := c.rooms.AddPlayer(ctx, code, playerName)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	sess.playerID = player.ID
	sess.playerName = player.DisplayName
	sess.roomCode = code
	c.mu.Unlock()

	now := c.clock.Now()
	c.broadcaster.Publish(code, model.EventPlayerJoined, now, model.PlayerJoinedPayload{
		Player: *player,
		Room:   updated,
	})
	c.broadcaster.Publish(code, model.EventRoomUpdated, now, model.RoomUpdatedPayload{Room: updated})

	// Subscribe after publishing so the joiner does not double-apply its
	// own join notification
	c.broadcaster.Subscribe(code, connID, sess.events)

	return updated, nil
}

// StartGame transitions the caller's room to playing and broadcasts
// gameStarted to all subscribers. Host-only.
func (c *Coordinator) StartGame(ctx context.Context, connID broadcast.ConnectionID) (*model.Room, error) {
	return c.transition(ctx, connID, model.RoomStatusPlaying)
}

// FinishGame transitions the caller's room to finished. Host-only; the
// quiz flow decides when the deck is exhausted.
func (c *Coordinator) FinishGame(ctx context.Context, connID broadcast.ConnectionID) (*model.Room, error) {
	return c.transition(ctx, connID, model.RoomStatusFinished)
}

func (c *Coordinator) transition(ctx context.Context, connID broadcast.ConnectionID, to model.RoomStatus) (*model.Room, error) {
	sess := c.getSession(connID)
	if sess == nil || !sess.inRoom() {
		return nil, model.ErrRoomNotFound
	}
	code := sess.roomCode

	mu := c.lockOrder(code)
	mu.Lock()
	defer mu.Unlock()

	var updated *model.Room
	var err error
	switch to {
	case model.RoomStatusPlaying:
		updated, err = c.rooms.StartGame(ctx, code, sess.playerID)
	default:
		updated, err = c.rooms.FinishGame(ctx, code, sess.playerID)
	}
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	if to == model.RoomStatusPlaying {
		c.broadcaster.Publish(code, model.EventGameStarted, now, model.GameStartedPayload{Room: updated})
	}
	c.broadcaster.Publish(code, model.EventRoomUpdated, now, model.RoomUpdatedPayload{Room: updated})

	return updated, nil
}

// LeaveRoom removes the caller from its room. Idempotent: leaving twice,
// or leaving while not in a room, is a no-op rather than an error.
func (c *Coordinator) LeaveRoom(ctx context.Context, connID broadcast.ConnectionID) error {
	sess := c.getSession(connID)
	if sess == nil || !sess.inRoom() {
		return nil
	}
	code := sess.roomCode
	playerID := sess.playerID

	mu := c.lockOrder(code)
	mu.Lock()
	defer mu.Unlock()

	c.mu.Lock()
	sess.roomCode = ""
	sess.playerID = ""
	sess.playerName = ""
	c.mu.Unlock()

	c.broadcaster.Unsubscribe(code, connID)

	updated, err := c.rooms.RemovePlayer(ctx, code, playerID)
	if err != nil {
		// Room already gone or player already removed; leave stays silent
		c.logger.Debug("leave with no effect",
			slog.String("conn_id", string(connID)),
			slog.String("room", string(code)),
			slog.Any("error", err))
		return nil
	}

	if updated == nil {
		// Last player left; the room was deleted with no broadcast
		c.broadcaster.CloseRoom(code)
		c.dropOrderLock(code)
		return nil
	}

	now := c.clock.Now()
	c.broadcaster.Publish(code, model.EventPlayerLeft, now, model.PlayerLeftPayload{
		PlayerID: playerID,
		Room:     updated,
	})
	c.broadcaster.Publish(code, model.EventRoomUpdated, now, model.RoomUpdatedPayload{Room: updated})

	return nil
}

// SendAction fans a player action out to every subscriber of the caller's
// room, including the caller. Fire-and-forget: a caller with no room, or
// one over its rate limit, is logged and ignored.
func (c *Coordinator) SendAction(ctx context.Context, connID broadcast.ConnectionID, action string, data any) {
	sess := c.getSession(connID)
	if sess == nil || !sess.inRoom() {
		c.logger.Debug("action from connection with no room",
			slog.String("conn_id", string(connID)),
			slog.String("action", action))
		return
	}
	if sess.limiter != nil && !sess.limiter.Allow() {
		c.logger.Warn("action rate limit exceeded",
			slog.String("conn_id", string(connID)),
			slog.String("action", action))
		return
	}

	code := sess.roomCode

	mu := c.lockOrder(code)
	mu.Lock()
	defer mu.Unlock()

	now := c.clock.Now()
	c.broadcaster.Publish(code, model.EventPlayerAction, now, model.PlayerActionPayload{
		PlayerID:   sess.playerID,
		PlayerName: sess.playerName,
		Action:     action,
		Data:       data,
		Timestamp:  now,
	})

	// Keep actively-played rooms out of idle expiry
	if err := c.rooms.Touch(ctx, code); err != nil {
		c.logger.Debug("touch failed",
			slog.String("room", string(code)),
			slog.Any("error", err))
	}
}

// CurrentRoom returns a snapshot of the caller's current room, or
// ErrRoomNotFound if it is not in one
func (c *Coordinator) CurrentRoom(ctx context.Context, connID broadcast.ConnectionID) (*model.Room, error) {
	sess := c.getSession(connID)
	if sess == nil || !sess.inRoom() {
		return nil, model.ErrRoomNotFound
	}
	return c.rooms.GetRoom(ctx, sess.roomCode)
}

// PlayerID returns the player identity of a connection, if any
func (c *Coordinator) PlayerID(connID broadcast.ConnectionID) (model.PlayerID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[connID]
	if !ok || !sess.inRoom() {
		return "", false
	}
	return sess.playerID, true
}
