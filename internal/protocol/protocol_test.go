package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/red-tetris-backend/internal/engine"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Intent
	}{
		{"join", `{"type":"join-room","room":"alpha","player":"bob","maxPlayers":3}`,
			JoinRoom{Room: "alpha", Player: "bob", MaxPlayers: 3}},
		{"join no capacity", `{"type":"join-room","room":"alpha","player":"bob"}`,
			JoinRoom{Room: "alpha", Player: "bob"}},
		{"start", `{"type":"start-game","room":"alpha"}`, StartGame{Room: "alpha"}},
		{"start bare", `{"type":"start-game"}`, StartGame{}},
		{"lines", `{"type":"lines-cleared","room":"alpha","player":"bob","count":3}`,
			LinesCleared{Room: "alpha", Player: "bob", Count: 3}},
		{"spectrum", `{"type":"spectrum-update","room":"alpha","player":"bob","spectrum":[0,1,2]}`,
			SpectrumUpdate{Room: "alpha", Player: "bob", Spectrum: []int{0, 1, 2}}},
		{"game over", `{"type":"player-game-over","room":"alpha","player":"bob"}`,
			PlayerGameOver{Room: "alpha", Player: "bob"}},
		{"leave", `{"type":"leave-room","room":"alpha"}`, LeaveRoom{Room: "alpha"}},
		{"leaderboard", `{"type":"request-leaderboard","limit":5}`, RequestLeaderboard{Limit: 5}},
		{"rooms", `{"type":"request-rooms"}`, RequestRooms{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.in))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want.Type(), got.Type())
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
		text string
	}{
		{"bad json", `{"type":`, ErrBadJSON, "bad json"},
		{"unknown", `{"type":"dance"}`, ErrUnknownType, "unknown type"},
		{"missing type", `{}`, ErrUnknownType, "unknown type"},
		{"join without room", `{"type":"join-room","player":"bob"}`, ErrMissingRoom, "missing room"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.in))
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.text, ErrorText(err))
		})
	}
}

func TestEncode_DecodesBack(t *testing.T) {
	in := LinesCleared{Room: "alpha", Player: "bob", Count: 2}
	data, err := Encode(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"lines-cleared","room":"alpha","player":"bob","count":2}`, string(data))

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestServerMessage_WireShape(t *testing.T) {
	tests := []struct {
		name string
		msg  ServerMessage
		want string
	}{
		{"start game", StartGameMsg([]engine.Kind{engine.KindT, engine.KindI}, engine.Spawn{X: 3, Y: 0}),
			`{"type":"start-game","sequence":["T","I"],"spawn":{"x":3,"y":0}}`},
		{"garbage", GarbageMsg("bob", 2), `{"type":"garbage","from":"bob","count":2}`},
		{"denied", JoinDeniedMsg("room-full"), `{"type":"join-denied","reason":"room-full"}`},
		{"ended", GameEndedMsg("alice"), `{"type":"game-ended","winner":"alice"}`},
		{"players", RoomPlayersMsg([]PlayerInfo{{ID: "c1", Username: "alice", IsHost: true}}),
			`{"type":"room-players","players":[{"id":"c1","username":"alice","isHost":true}]}`},
		{"leaderboard", LeaderboardMsg([]Entry{{Name: "alice", Score: 3}}),
			`{"type":"leaderboard-data","entries":[{"name":"alice","score":3}]}`},
		{"error", ErrorMsg("unknown type"), `{"type":"error","error":"unknown type"}`},
		{"empty leaderboard", LeaderboardMsg(nil), `{"type":"leaderboard-data","entries":[]}`},
		{"empty room list", RoomListMsg(nil), `{"type":"room-list","rooms":[]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(data))
		})
	}
}

func TestServerMessage_SequenceDecodes(t *testing.T) {
	var msg ServerMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"start-game","sequence":["L","O"],"spawn":{"x":4,"y":0}}`), &msg))
	assert.Equal(t, []engine.Kind{engine.KindL, engine.KindO}, msg.Sequence)
	require.NotNil(t, msg.Spawn)
	assert.Equal(t, engine.Spawn{X: 4}, *msg.Spawn)
}
