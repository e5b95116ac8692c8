package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoomCode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  RoomCode
	}{
		{"already normalized", "WXTB", "WXTB"},
		{"lowercase", "wxtb", "WXTB"},
		{"mixed case", "wXtB", "WXTB"},
		{"surrounding whitespace", "  wxtb\n", "WXTB"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRoomCode(tt.input))
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from RoomStatus
		to   RoomStatus
		want bool
	}{
		{RoomStatusLobby, RoomStatusPlaying, true},
		{RoomStatusPlaying, RoomStatusFinished, true},
		{RoomStatusLobby, RoomStatusFinished, false},
		{RoomStatusPlaying, RoomStatusLobby, false},
		{RoomStatusFinished, RoomStatusPlaying, false},
		{RoomStatusFinished, RoomStatusLobby, false},
		{RoomStatusLobby, RoomStatusLobby, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+" to "+string(tt.to), func(t *testing.T) {
			r := &Room{Status: tt.from}
			assert.Equal(t, tt.want, r.CanTransition(tt.to))
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "Alice", "Alice", false},
		{"trimmed", "  Alice  ", "Alice", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"at limit", "abcdefghijklmnopqrst", "abcdefghijklmnopqrst", false},
		{"over limit", "abcdefghijklmnopqrstu", "", true},
		{"multibyte at limit", "ääääääääääääääääääää", "ääääääääääääääääääää", false},
		{"inner whitespace kept", "Alice B", "Alice B", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateDisplayName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	original := &Room{
		Code:   "WXTB",
		HostID: "player_a",
		Players: []Player{
			{ID: "player_a", DisplayName: "Alice", IsHost: true, JoinedAt: now},
		},
		Status: RoomStatusLobby,
	}

	clone := original.Clone()
	clone.Status = RoomStatusPlaying
	clone.Players[0].DisplayName = "Mallory"
	clone.Players = append(clone.Players, Player{ID: "player_b"})

	assert.Equal(t, RoomStatusLobby, original.Status)
	assert.Equal(t, "Alice", original.Players[0].DisplayName)
	assert.Len(t, original.Players, 1)
}

func TestGetHostAndGetPlayer(t *testing.T) {
	r := &Room{
		Players: []Player{
			{ID: "player_a", DisplayName: "Alice"},
			{ID: "player_b", DisplayName: "Bob", IsHost: true},
		},
	}

	host := r.GetHost()
	require.NotNil(t, host)
	assert.Equal(t, PlayerID("player_b"), host.ID)

	assert.Nil(t, r.GetPlayer("player_z"))
	require.NotNil(t, r.GetPlayer("player_a"))
	assert.Equal(t, "Alice", r.GetPlayer("player_a").DisplayName)

	empty := &Room{}
	assert.Nil(t, empty.GetHost())
}
