package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/nwrussi/openquiz-rooms/internal/broadcast"
	"github.com/nwrussi/openquiz-rooms/internal/model"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

// drain pulls every event currently queued on a subscriber channel
func (s *IntegrationSuite) drain(ch <-chan model.Event) []model.Event {
	var events []model.Event
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		default:
			return events
		}
	}
}

// Test: complete session flow from room creation to last leaver
func (s *IntegrationSuite) TestCompleteSessionFlow() {
	s.app.MockRandom.QueueString("WXTB")

	aliceConn := broadcast.ConnectionID("conn_alice")
	bobConn := broadcast.ConnectionID("conn_bob")
	aliceEvents := s.app.Coordinator.Register(aliceConn)
	bobEvents := s.app.Coordinator.Register(bobConn)

	// Step 1: Alice creates a room; nothing is broadcast yet
	created, err := s.app.Coordinator.CreateRoom(s.ctx, aliceConn, "deck-geography", "Alice")
	s.Require().NoError(err)
	s.Equal(model.RoomCode("WXTB"), created.Code)
	s.Equal(model.RoomStatusLobby, created.Status)
	s.Len(created.Players, 1)
	s.True(created.Players[0].IsHost)
	s.Empty(s.drain(aliceEvents))

	// Step 2: Bob joins; Alice sees playerJoined then roomUpdated, Bob sees nothing
	joined, err := s.app.Coordinator.JoinRoom(s.ctx, bobConn, "wxtb", "Bob")
	s.Require().NoError(err)
	s.Len(joined.Players, 2)

	aliceGot := s.drain(aliceEvents)
	s.Require().Len(aliceGot, 2)
	s.Equal(model.EventPlayerJoined, aliceGot[0].Type)
	s.Equal(model.EventRoomUpdated, aliceGot[1].Type)
	s.Empty(s.drain(bobEvents))

	// Step 3: Bob cannot start; only the host can
	_, err = s.app.Coordinator.StartGame(s.ctx, bobConn)
	s.Require().ErrorIs(err, model.ErrNotHost)

	// Step 4: Alice starts the game; both see gameStarted then roomUpdated
	playing, err := s.app.Coordinator.StartGame(s.ctx, aliceConn)
	s.Require().NoError(err)
	s.Equal(model.RoomStatusPlaying, playing.Status)

	for _, ch := range []<-chan model.Event{aliceEvents, bobEvents} {
		got := s.drain(ch)
		s.Require().Len(got, 2)
		s.Equal(model.EventGameStarted, got[0].Type)
		s.Equal(model.EventRoomUpdated, got[1].Type)
	}

	// Step 5: late joiners are rejected once play has begun
	carolConn := broadcast.ConnectionID("conn_carol")
	s.app.Coordinator.Register(carolConn)
	_, err = s.app.Coordinator.JoinRoom(s.ctx, carolConn, "WXTB", "Carol")
	s.Require().ErrorIs(err, model.ErrRoomNotJoinable)

	// Step 6: Bob sends an action; both Alice and Bob receive it
	s.app.Coordinator.SendAction(s.ctx, bobConn, "answerSubmitted", map[string]any{"cardId": 7})

	aliceGot = s.drain(aliceEvents)
	s.Require().Len(aliceGot, 1)
	s.Equal(model.EventPlayerAction, aliceGot[0].Type)
	action, ok := aliceGot[0].Payload.(model.PlayerActionPayload)
	s.Require().True(ok)
	s.Equal("Bob", action.PlayerName)
	s.Equal("answerSubmitted", action.Action)

	bobGot := s.drain(bobEvents)
	s.Require().Len(bobGot, 1)
	s.Equal(model.EventPlayerAction, bobGot[0].Type)

	// Step 7: Alice leaves; Bob is promoted to host
	err = s.app.Coordinator.LeaveRoom(s.ctx, aliceConn)
	s.Require().NoError(err)

	bobGot = s.drain(bobEvents)
	s.Require().Len(bobGot, 2)
	s.Equal(model.EventPlayerLeft, bobGot[0].Type)
	s.Equal(model.EventRoomUpdated, bobGot[1].Type)

	remaining, err := s.app.Coordinator.CurrentRoom(s.ctx, bobConn)
	s.Require().NoError(err)
	s.Require().Len(remaining.Players, 1)
	s.True(remaining.Players[0].IsHost)
	bobID, ok := s.app.Coordinator.PlayerID(bobConn)
	s.Require().True(ok)
	s.Equal(bobID, remaining.HostID)

	// Step 8: the promoted host can finish the game
	finished, err := s.app.Coordinator.FinishGame(s.ctx, bobConn)
	s.Require().NoError(err)
	s.Equal(model.RoomStatusFinished, finished.Status)

	bobGot = s.drain(bobEvents)
	s.Require().Len(bobGot, 1)
	s.Equal(model.EventRoomUpdated, bobGot[0].Type)

	// Step 9: last leaver deletes the room
	err = s.app.Coordinator.LeaveRoom(s.ctx, bobConn)
	s.Require().NoError(err)

	_, err = s.app.RoomController.GetRoom(s.ctx, "WXTB")
	s.Require().ErrorIs(err, model.ErrRoomNotFound)
}

// Test: disconnecting a connection acts as an implicit leave
func (s *IntegrationSuite) TestDisconnectLeavesRoom() {
	s.app.MockRandom.QueueString("KQZD")

	hostConn := broadcast.ConnectionID("conn_host")
	guestConn := broadcast.ConnectionID("conn_guest")
	s.app.Coordinator.Register(hostConn)
	guestEvents := s.app.Coordinator.Register(guestConn)

	created, err := s.app.Coordinator.CreateRoom(s.ctx, hostConn, "deck-history", "Hana")
	s.Require().NoError(err)

	_, err = s.app.Coordinator.JoinRoom(s.ctx, guestConn, string(created.Code), "Gus")
	s.Require().NoError(err)

	s.app.Coordinator.Disconnect(s.ctx, hostConn)

	got := s.drain(guestEvents)
	s.Require().Len(got, 2)
	s.Equal(model.EventPlayerLeft, got[0].Type)
	s.Equal(model.EventRoomUpdated, got[1].Type)

	room, err := s.app.RoomController.GetRoom(s.ctx, created.Code)
	s.Require().NoError(err)
	s.Len(room.Players, 1)
	s.Equal("Gus", room.Players[0].DisplayName)

	// Further operations on the dropped connection are rejected
	_, err = s.app.Coordinator.CreateRoom(s.ctx, hostConn, "deck-history", "Hana")
	s.Require().Error(err)
}

// Test: idle rooms are reaped without touching active ones
func (s *IntegrationSuite) TestIdleRoomExpiry() {
	s.app.MockRandom.QueueString("AAAA", "BBBB")

	idleConn := broadcast.ConnectionID("conn_idle")
	busyConn := broadcast.ConnectionID("conn_busy")
	s.app.Coordinator.Register(idleConn)
	s.app.Coordinator.Register(busyConn)

	_, err := s.app.Coordinator.CreateRoom(s.ctx, idleConn, "deck-a", "Ida")
	s.Require().NoError(err)
	_, err = s.app.Coordinator.CreateRoom(s.ctx, busyConn, "deck-b", "Ben")
	s.Require().NoError(err)

	s.app.MockClock.Advance(2 * time.Hour)
	s.Require().NoError(s.app.RoomController.Touch(s.ctx, "BBBB"))

	expired, err := s.app.RoomController.ExpireIdle(s.ctx, time.Hour)
	s.Require().NoError(err)
	s.Equal([]model.RoomCode{"AAAA"}, expired)

	_, err = s.app.RoomController.GetRoom(s.ctx, "AAAA")
	s.Require().ErrorIs(err, model.ErrRoomNotFound)
	_, err = s.app.RoomController.GetRoom(s.ctx, "BBBB")
	s.Require().NoError(err)
}
