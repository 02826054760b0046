package protocol

import (
	"github.com/DoyleJ11/red-tetris-backend/internal/engine"
)

// Client -> Server
//
// join-room:           room, player, maxPlayers?
// start-game:          room?
// lines-cleared:       room, player, count
// spectrum-update:     room, player, spectrum
// player-game-over:    room, player
// leave-room:          room?
// request-leaderboard: limit?
// request-rooms:       {}
const (
	TypeJoinRoom           = "join-room"
	TypeStartGame          = "start-game"
	TypeLinesCleared       = "lines-cleared"
	TypeSpectrumUpdate     = "spectrum-update"
	TypePlayerGameOver     = "player-game-over"
	TypeLeaveRoom          = "leave-room"
	TypeRequestLeaderboard = "request-leaderboard"
	TypeRequestRooms       = "request-rooms"
)

// Server -> Client
//
// room-list:        rooms
// room-players:     players [{id, username, isHost}]
// join-denied:      reason (room-full | game-already-started | name-taken | invalid-name)
// start-game:       sequence, spawn {x, y}
// garbage:          from, count
// spectrum:         from, spectrum
// game-ended:       winner
// leaderboard-data: entries [{name, score}]
// error:            error
const (
	TypeRoomList        = "room-list"
	TypeRoomPlayers     = "room-players"
	TypeJoinDenied      = "join-denied"
	TypeGarbage         = "garbage"
	TypeSpectrum        = "spectrum"
	TypeGameEnded       = "game-ended"
	TypeLeaderboardData = "leaderboard-data"
	TypeError           = "error"
)

type ClientMessage struct {
	Type       string `json:"type"`
	Room       string `json:"room,omitempty"`
	Player     string `json:"player,omitempty"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
	Count      int    `json:"count,omitempty"`
	Spectrum   []int  `json:"spectrum,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type ServerMessage struct {
	Type     string        `json:"type"`
	Rooms    []RoomInfo    `json:"rooms,omitzero"`
	Players  []PlayerInfo  `json:"players,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Sequence []engine.Kind `json:"sequence,omitempty"`
	Spawn    *engine.Spawn `json:"spawn,omitempty"`
	From     string        `json:"from,omitempty"`
	Count    int           `json:"count,omitempty"`
	Spectrum []int         `json:"spectrum,omitempty"`
	Winner   string        `json:"winner,omitempty"`
	Entries  []Entry       `json:"entries,omitzero"`
	Error    string        `json:"error,omitempty"`
}

type RoomInfo struct {
	Name     string `json:"name"`
	Players  int    `json:"players"`
	Capacity int    `json:"capacity"`
	Running  bool   `json:"running"`
}

type PlayerInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsHost   bool   `json:"isHost"`
}

type Entry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// RoomListMsg always carries a rooms array, empty included.
func RoomListMsg(rooms []RoomInfo) ServerMessage {
	if rooms == nil {
		rooms = []RoomInfo{}
	}
	return ServerMessage{Type: TypeRoomList, Rooms: rooms}
}

func RoomPlayersMsg(players []PlayerInfo) ServerMessage {
	return ServerMessage{Type: TypeRoomPlayers, Players: players}
}

func JoinDeniedMsg(reason string) ServerMessage {
	return ServerMessage{Type: TypeJoinDenied, Reason: reason}
}

func StartGameMsg(seq []engine.Kind, spawn engine.Spawn) ServerMessage {
	return ServerMessage{Type: TypeStartGame, Sequence: seq, Spawn: &spawn}
}

func GarbageMsg(from string, count int) ServerMessage {
	return ServerMessage{Type: TypeGarbage, From: from, Count: count}
}

func SpectrumMsg(from string, spectrum []int) ServerMessage {
	return ServerMessage{Type: TypeSpectrum, From: from, Spectrum: spectrum}
}

func GameEndedMsg(winner string) ServerMessage {
	return ServerMessage{Type: TypeGameEnded, Winner: winner}
}

// LeaderboardMsg always carries an entries array, empty included.
func LeaderboardMsg(entries []Entry) ServerMessage {
	if entries == nil {
		entries = []Entry{}
	}
	return ServerMessage{Type: TypeLeaderboardData, Entries: entries}
}

func ErrorMsg(text string) ServerMessage {
	return ServerMessage{Type: TypeError, Error: text}
}
