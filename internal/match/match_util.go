package match

import "errors"

// Roster lists players in join order with the host flagged.
func (s State) Roster() []PlayerInfo {
	out := make([]PlayerInfo, 0, len(s.Order))
	for _, id := range s.Order {
		p := s.Players[id]
		out = append(out, PlayerInfo{ID: id, Username: p.Username, IsHost: id == s.Host})
	}
	return out
}

func (s State) Has(conn ConnID) bool {
	_, ok := s.Players[conn]
	return ok
}

func (s State) Empty() bool { return len(s.Players) == 0 }

func (s State) Running() bool { return s.Phase == PhaseRunning }

func (s State) Full() bool { return len(s.Players) >= s.Capacity }

// CheckJoin reports whether a new connection could join as username, and
// the trimmed name it would get. It does not look at who is already seated.
func (s State) CheckJoin(username string) (string, error) {
	name, ok := ValidName(username)
	switch {
	case !ok:
		return "", ErrInvalidName
	case s.Phase != PhaseLobby:
		return "", ErrGameAlreadyStarted
	case s.Full():
		return "", ErrRoomFull
	case s.nameTaken(name):
		return "", ErrNameTaken
	}
	return name, nil
}

// Reason is the join-denied code sent to the client, or "" if err is not a rejection.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrRoomFull):
		return "room-full"
	case errors.Is(err, ErrGameAlreadyStarted):
		return "game-already-started"
	case errors.Is(err, ErrNameTaken):
		return "name-taken"
	case errors.Is(err, ErrInvalidName):
		return "invalid-name"
	default:
		return ""
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
