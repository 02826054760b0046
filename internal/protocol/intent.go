package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrBadJSON = errors.New("bad json")
var ErrUnknownType = errors.New("unknown type")
var ErrMissingRoom = errors.New("missing room")

// Intent is one decoded client request. The set is closed; the hub switches
// over it exhaustively.
type Intent interface {
	Type() string
	message() ClientMessage
}

type JoinRoom struct {
	Room       string
	Player     string
	MaxPlayers int
}

type StartGame struct{ Room string }

type LinesCleared struct {
	Room   string
	Player string
	Count  int
}

type SpectrumUpdate struct {
	Room     string
	Player   string
	Spectrum []int
}

type PlayerGameOver struct {
	Room   string
	Player string
}

type LeaveRoom struct{ Room string }

type RequestLeaderboard struct{ Limit int }

type RequestRooms struct{}

func (JoinRoom) Type() string           { return TypeJoinRoom }
func (StartGame) Type() string          { return TypeStartGame }
func (LinesCleared) Type() string       { return TypeLinesCleared }
func (SpectrumUpdate) Type() string     { return TypeSpectrumUpdate }
func (PlayerGameOver) Type() string     { return TypePlayerGameOver }
func (LeaveRoom) Type() string          { return TypeLeaveRoom }
func (RequestLeaderboard) Type() string { return TypeRequestLeaderboard }
func (RequestRooms) Type() string       { return TypeRequestRooms }

func (i JoinRoom) message() ClientMessage {
	return ClientMessage{Type: TypeJoinRoom, Room: i.Room, Player: i.Player, MaxPlayers: i.MaxPlayers}
}

func (i StartGame) message() ClientMessage {
	return ClientMessage{Type: TypeStartGame, Room: i.Room}
}

func (i LinesCleared) message() ClientMessage {
	return ClientMessage{Type: TypeLinesCleared, Room: i.Room, Player: i.Player, Count: i.Count}
}

func (i SpectrumUpdate) message() ClientMessage {
	return ClientMessage{Type: TypeSpectrumUpdate, Room: i.Room, Player: i.Player, Spectrum: i.Spectrum}
}

func (i PlayerGameOver) message() ClientMessage {
	return ClientMessage{Type: TypePlayerGameOver, Room: i.Room, Player: i.Player}
}

func (i LeaveRoom) message() ClientMessage {
	return ClientMessage{Type: TypeLeaveRoom, Room: i.Room}
}

func (i RequestLeaderboard) message() ClientMessage {
	return ClientMessage{Type: TypeRequestLeaderboard, Limit: i.Limit}
}

func (RequestRooms) message() ClientMessage {
	return ClientMessage{Type: TypeRequestRooms}
}

// Decode parses one text frame into an Intent.
func Decode(data []byte) (Intent, error) {
	var cm ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	return cm.Intent()
}

func (m ClientMessage) Intent() (Intent, error) {
	switch m.Type {
	case TypeJoinRoom:
		if m.Room == "" {
			return nil, ErrMissingRoom
		}
		return JoinRoom{Room: m.Room, Player: m.Player, MaxPlayers: m.MaxPlayers}, nil
	case TypeStartGame:
		return StartGame{Room: m.Room}, nil
	case TypeLinesCleared:
		return LinesCleared{Room: m.Room, Player: m.Player, Count: m.Count}, nil
	case TypeSpectrumUpdate:
		return SpectrumUpdate{Room: m.Room, Player: m.Player, Spectrum: m.Spectrum}, nil
	case TypePlayerGameOver:
		return PlayerGameOver{Room: m.Room, Player: m.Player}, nil
	case TypeLeaveRoom:
		return LeaveRoom{Room: m.Room}, nil
	case TypeRequestLeaderboard:
		return RequestLeaderboard{Limit: m.Limit}, nil
	case TypeRequestRooms:
		return RequestRooms{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
}

// Encode renders an Intent as a client text frame.
func Encode(i Intent) ([]byte, error) {
	return json.Marshal(i.message())
}

// ErrorText is the text sent back in an error frame for a Decode failure.
func ErrorText(err error) string {
	switch {
	case errors.Is(err, ErrBadJSON):
		return "bad json"
	case errors.Is(err, ErrUnknownType):
		return "unknown type"
	case errors.Is(err, ErrMissingRoom):
		return "missing room"
	default:
		return "bad request"
	}
}
