package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/nwrussi/openquiz-rooms/internal/dependencies/mocks"
	"github.com/nwrussi/openquiz-rooms/internal/model"
	"github.com/nwrussi/openquiz-rooms/internal/storage/memory"
	"github.com/nwrussi/openquiz-rooms/internal/testutil"
)

type ControllerSuite struct {
	suite.Suite
	storage    *memory.Storage
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	controller *Controller
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.controller = NewController(s.storage, s.clock, s.random, testutil.NopLogger())
	s.ctx = context.Background()
}

// CreateRoom tests

func (s *ControllerSuite) TestCreateRoomSucceeds() {
	s.random.QueueString("WXTB")

	room, err := s.controller.CreateRoom(s.ctx, "deck-geography", "Alice")
	s.Require().NoError(err)

	s.Equal(model.RoomCode("WXTB"), room.Code)
	s.Equal(model.RoomStatusLobby, room.Status)
	s.Equal(model.DeckRef("deck-geography"), room.DeckRef)
	s.Require().Len(room.Players, 1)

	host := room.Players[0]
	s.Equal("Alice", host.DisplayName)
	s.True(host.IsHost)
	s.Equal(HostAvatar, host.Avatar)
	s.Equal(host.ID, room.HostID)
	s.Equal(s.clock.Now(), room.CreatedAt)
}

func (s *ControllerSuite) TestCreateRoomIsPersisted() {
	s.random.QueueString("WXTB")

	room, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")

	retrieved, err := s.controller.GetRoom(s.ctx, room.Code)
	s.Require().NoError(err)
	s.Equal(room.Code, retrieved.Code)
}

func (s *ControllerSuite) TestCreateRoomRetriesOnCodeCollision() {
	s.random.QueueString("AAAA", "AAAA", "BBBB")

	first, err := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")
	s.Require().NoError(err)
	s.Equal(model.RoomCode("AAAA"), first.Code)

	second, err := s.controller.CreateRoom(s.ctx, "deck-1", "Bob")
	s.Require().NoError(err)
	s.Equal(model.RoomCode("BBBB"), second.Code)
}

func (s *ControllerSuite) TestCreateRoomTrimsDisplayName() {
	s.random.QueueString("WXTB")

	room, err := s.controller.CreateRoom(s.ctx, "deck-1", "  Alice  ")
	s.Require().NoError(err)
	s.Equal("Alice", room.Players[0].DisplayName)
}

func (s *ControllerSuite) TestCreateRoomRejectsEmptyName() {
	_, err := s.controller.CreateRoom(s.ctx, "deck-1", "   ")
	s.ErrorIs(err, model.ErrInvalidName)
}

func (s *ControllerSuite) TestCreateRoomRejectsOverlongName() {
	_, err := s.controller.CreateRoom(s.ctx, "deck-1", "abcdefghijklmnopqrstu")
	s.ErrorIs(err, model.ErrInvalidName)
}

func (s *ControllerSuite) TestCreateRoomCountsNameLengthInRunes() {
	s.random.QueueString("WXTB")

	// 20 multi-byte runes is exactly at the limit
	_, err := s.controller.CreateRoom(s.ctx, "deck-1", "ääääääääääääääääääää")
	s.NoError(err)
}

// GetRoom tests

func (s *ControllerSuite) TestGetRoomNotFound() {
	_, err := s.controller.GetRoom(s.ctx, "ZZZZ")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

// AddPlayer tests

func (s *ControllerSuite) TestAddPlayerSucceeds() {
	s.random.QueueString("WXTB")
	s.random.QueuePick("\U0001F60E")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")

	s.clock.Advance(time.Minute)
	room, player, err := s.controller.AddPlayer(s.ctx, created.Code, "Bob")
	s.Require().NoError(err)

	s.Len(room.Players, 2)
	s.Equal("Bob", player.DisplayName)
	s.False(player.IsHost)
	s.Equal("\U0001F60E", player.Avatar)
	s.Equal(s.clock.Now(), player.JoinedAt)
	s.NotEqual(room.Players[0].ID, player.ID)
}

func (s *ControllerSuite) TestAddPlayerPreservesJoinOrder() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")

	_, _, _ = s.controller.AddPlayer(s.ctx, created.Code, "Bob")
	room, _, err := s.controller.AddPlayer(s.ctx, created.Code, "Carol")
	s.Require().NoError(err)

	s.Equal("Alice", room.Players[0].DisplayName)
	s.Equal("Bob", room.Players[1].DisplayName)
	s.Equal("Carol", room.Players[2].DisplayName)
}

func (s *ControllerSuite) TestAddPlayerFailsIfNotFound() {
	_, _, err := s.controller.AddPlayer(s.ctx, "ZZZZ", "Bob")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *ControllerSuite) TestAddPlayerFailsOncePlaying() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")
	_, err := s.controller.StartGame(s.ctx, created.Code, created.HostID)
	s.Require().NoError(err)

	_, _, err = s.controller.AddPlayer(s.ctx, created.Code, "Bob")
	s.ErrorIs(err, model.ErrRoomNotJoinable)
}

func (s *ControllerSuite) TestAddPlayerFailsOnceFinished() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")
	_, _ = s.controller.StartGame(s.ctx, created.Code, created.HostID)
	_, err := s.controller.FinishGame(s.ctx, created.Code, created.HostID)
	s.Require().NoError(err)

	_, _, err = s.controller.AddPlayer(s.ctx, created.Code, "Bob")
	s.ErrorIs(err, model.ErrRoomNotJoinable)
}

func (s *ControllerSuite) TestAddPlayerRejectsInvalidName() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")

	_, _, err := s.controller.AddPlayer(s.ctx, created.Code, "")
	s.ErrorIs(err, model.ErrInvalidName)
}

// RemovePlayer tests

func (s *ControllerSuite) TestRemovePlayerKeepsHost() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")
	_, bob, _ := s.controller.AddPlayer(s.ctx, created.Code, "Bob")

	room, err := s.controller.RemovePlayer(s.ctx, created.Code, bob.ID)
	s.Require().NoError(err)
	s.Require().NotNil(room)

	s.Len(room.Players, 1)
	s.Equal(created.HostID, room.HostID)
}

func (s *ControllerSuite) TestRemovePlayerPromotesEarliestJoiner() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")
	s.clock.Advance(time.Minute)
	_, bob, _ := s.controller.AddPlayer(s.ctx, created.Code, "Bob")
	s.clock.Advance(time.Minute)
	_, _, _ = s.controller.AddPlayer(s.ctx, created.Code, "Carol")

	room, err := s.controller.RemovePlayer(s.ctx, created.Code, created.HostID)
	s.Require().NoError(err)
	s.Require().NotNil(room)

	s.Equal(bob.ID, room.HostID)
	s.True(room.GetPlayer(bob.ID).IsHost)
}

func (s *ControllerSuite) TestRemovePlayerPromotionBreaksTiesByID() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")

	// Both joiners share the same JoinedAt (clock not advanced)
	_, bob, _ := s.controller.AddPlayer(s.ctx, created.Code, "Bob")
	_, carol, _ := s.controller.AddPlayer(s.ctx, created.Code, "Carol")

	expected := bob.ID
	if carol.ID < bob.ID {
		expected = carol.ID
	}

	room, err := s.controller.RemovePlayer(s.ctx, created.Code, created.HostID)
	s.Require().NoError(err)
	s.Equal(expected, room.HostID)
}

func (s *ControllerSuite) TestRemoveLastPlayerDeletesRoom() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")

	room, err := s.controller.RemovePlayer(s.ctx, created.Code, created.HostID)
	s.Require().NoError(err)
	s.Nil(room)

	_, err = s.controller.GetRoom(s.ctx, created.Code)
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *ControllerSuite) TestRemovePlayerNotInRoom() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")

	_, err := s.controller.RemovePlayer(s.ctx, created.Code, "player_unknown")
	s.ErrorIs(err, model.ErrNotInRoom)
}

func (s *ControllerSuite) TestRemovePlayerRoomNotFound() {
	_, err := s.controller.RemovePlayer(s.ctx, "ZZZZ", "player_unknown")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *ControllerSuite) TestRoomCodeFreedAfterDeletion() {
	s.random.QueueString("WXTB", "WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")
	_, _ = s.controller.RemovePlayer(s.ctx, created.Code, created.HostID)

	room, err := s.controller.CreateRoom(s.ctx, "deck-2", "Bob")
	s.Require().NoError(err)
	s.Equal(model.RoomCode("WXTB"), room.Code)
}

// State transition tests

func (s *ControllerSuite) TestStartGameSucceeds() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")

	room, err := s.controller.StartGame(s.ctx, created.Code, created.HostID)
	s.Require().NoError(err)
	s.Equal(model.RoomStatusPlaying, room.Status)
}

func (s *ControllerSuite) TestStartGameNonHostRejected() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")
	_, bob, _ := s.controller.AddPlayer(s.ctx, created.Code, "Bob")

	_, err := s.controller.StartGame(s.ctx, created.Code, bob.ID)
	s.ErrorIs(err, model.ErrNotHost)
}

func (s *ControllerSuite) TestStartGameTwiceRejected() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")
	_, _ = s.controller.StartGame(s.ctx, created.Code, created.HostID)

	_, err := s.controller.StartGame(s.ctx, created.Code, created.HostID)
	s.ErrorIs(err, model.ErrInvalidTransition)
}

func (s *ControllerSuite) TestFinishGameFromLobbyRejected() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")

	_, err := s.controller.FinishGame(s.ctx, created.Code, created.HostID)
	s.ErrorIs(err, model.ErrInvalidTransition)
}

func (s *ControllerSuite) TestFinishGameSucceeds() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")
	_, _ = s.controller.StartGame(s.ctx, created.Code, created.HostID)

	room, err := s.controller.FinishGame(s.ctx, created.Code, created.HostID)
	s.Require().NoError(err)
	s.Equal(model.RoomStatusFinished, room.Status)
}

func (s *ControllerSuite) TestNonHostTransitionReportedBeforeInvalidTransition() {
	s.random.QueueString("WXTB")
	created, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")
	_, bob, _ := s.controller.AddPlayer(s.ctx, created.Code, "Bob")
	_, _ = s.controller.StartGame(s.ctx, created.Code, created.HostID)

	// Start by a non-host on an already-playing room: the permission
	// error wins over the state error
	_, err := s.controller.StartGame(s.ctx, created.Code, bob.ID)
	s.ErrorIs(err, model.ErrNotHost)
}

// Idle expiry tests

func (s *ControllerSuite) TestExpireIdleDeletesStaleRooms() {
	s.random.QueueString("AAAA", "BBBB")
	stale, _ := s.controller.CreateRoom(s.ctx, "deck-1", "Alice")
	_, _ = s.controller.CreateRoom(s.ctx, "deck-1", "Bob")

	s.clock.Advance(2 * time.Hour)
	s.Require().NoError(s.controller.Touch(s.ctx, "BBBB"))

	expired, err := s.controller.ExpireIdle(s.ctx, time.Hour)
	s.Require().NoError(err)
	s.Equal([]model.RoomCode{stale.Code}, expired)

	_, err = s.controller.GetRoom(s.ctx, "AAAA")
	s.ErrorIs(err, model.ErrRoomNotFound)
	_, err = s.controller.GetRoom(s.ctx, "BBBB")
	s.NoError(err)
}

func (s *ControllerSuite) TestExpireIdleNoStaleRooms() {
	s.random.QueueString("AAAA")
	_, _ = s.controller.CreateRoom(s.ctx, "deck-1", "Alice")

	expired, err := s.controller.ExpireIdle(s.ctx, time.Hour)
	s.Require().NoError(err)
	s.Empty(expired)
}
