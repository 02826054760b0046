package match

import (
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/DoyleJ11/red-tetris-backend/internal/engine"
)

// Rejected joins. Each maps to a wire reason via Reason.
var ErrRoomFull = errors.New("room is full")
var ErrGameAlreadyStarted = errors.New("game already started")
var ErrNameTaken = errors.New("username already taken")
var ErrInvalidName = errors.New("invalid username")

// Silent no-ops: the caller logs them and moves on.
var ErrNotHost = errors.New("only the host can start")
var ErrNotInLobby = errors.New("match not in lobby")
var ErrTooFewPlayers = errors.New("not enough players to start")
var ErrNotRunning = errors.New("match not running")
var ErrUnknownPlayer = errors.New("player not in match")
var ErrUnsupportedCommand = errors.New("unsupported command")

const (
	MinCapacity   = 2
	MaxCapacity   = 4
	MaxNameLength = 12

	DefaultSequenceLength = 200
)

type ConnID string

type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhaseRunning Phase = "running"
	PhaseEnded   Phase = "ended"
)

type Player struct {
	ID       ConnID
	Username string
}

type Rules struct {
	SequenceLength int
	Spawn          engine.Spawn
}

func DefaultRules() Rules {
	return Rules{SequenceLength: DefaultSequenceLength, Spawn: engine.DefaultSpawn}
}

type State struct {
	Name     string
	Capacity int
	Phase    Phase
	Players  map[ConnID]Player
	Order    []ConnID // join order; host re-election walks it
	Host     ConnID
	Alive    map[ConnID]bool
	Rules    Rules
}

type CommandType string

const (
	CmdJoin         CommandType = "Join"
	CmdStart        CommandType = "Start"
	CmdEliminate    CommandType = "Eliminate"
	CmdLeave        CommandType = "Leave"
	CmdLinesCleared CommandType = "LinesCleared"
	CmdSpectrum     CommandType = "Spectrum"
)

/*
	CmdJoin         -> EvtPlayersChanged
	CmdStart        -> EvtGameStarted
	CmdEliminate    -> EvtGameEnded (only when one player is left alive)
	CmdLeave        -> EvtPlayersChanged -> EvtGameEnded? -> EvtRoomEmptied?
	CmdLinesCleared -> EvtGarbage (count - 1 lines, to everyone but the sender)
	CmdSpectrum     -> EvtSpectrum (to everyone but the sender)
*/

type Command struct {
	Type     CommandType
	Conn     ConnID
	Username string
	Count    int
	Spectrum []int
}

type EventType string

const (
	EvtPlayersChanged EventType = "PlayersChanged"
	EvtGameStarted    EventType = "GameStarted"
	EvtGameEnded      EventType = "GameEnded"
	EvtGarbage        EventType = "Garbage"
	EvtSpectrum       EventType = "Spectrum"
	EvtRoomEmptied    EventType = "RoomEmptied"
)

// Audience says which members of the room an event is for.
type Audience int

const (
	AudienceRoom Audience = iota
	AudienceOthers
	AudienceSender
	AudienceNone
)

type PlayerInfo struct {
	ID       ConnID
	Username string
	IsHost   bool
}

type Event struct {
	Type     EventType
	Audience Audience
	Conn     ConnID
	Players  []PlayerInfo
	Sequence []engine.Kind
	Spawn    engine.Spawn
	Winner   string
	From     string
	Count    int
	Spectrum []int
}

// newSequence is swapped out in tests for a fixed sequence.
var newSequence = func(n int) []engine.Kind {
	return engine.GenerateSequence(n, nil)
}

func NewState(name string, capacity int, rules Rules) State {
	if rules.SequenceLength <= 0 {
		rules.SequenceLength = DefaultSequenceLength
	}
	return State{
		Name:     name,
		Capacity: ClampCapacity(capacity),
		Phase:    PhaseLobby,
		Players:  map[ConnID]Player{},
		Alive:    map[ConnID]bool{},
		Rules:    rules,
	}
}

func ClampCapacity(n int) int {
	return min(max(n, MinCapacity), MaxCapacity)
}

// ValidName trims surrounding whitespace and checks the 1..12 rune bound.
func ValidName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	return name, n >= 1 && n <= MaxNameLength
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	ns := s.clone()

	switch cmd.Type {
	case CmdJoin:
		if _, ok := s.Players[cmd.Conn]; ok {
			// Already seated: just show them the roster again.
			return []Event{ns.rosterEvent(AudienceSender, cmd.Conn)}, ns, nil
		}
		name, err := s.CheckJoin(cmd.Username)
		if err != nil {
			return nil, s, err
		}

		ns.Players[cmd.Conn] = Player{ID: cmd.Conn, Username: name}
		ns.Order = append(ns.Order, cmd.Conn)
		if ns.Host == "" {
			ns.Host = cmd.Conn
		}
		return []Event{ns.rosterEvent(AudienceRoom, cmd.Conn)}, ns, nil

	case CmdStart:
		if cmd.Conn != s.Host {
			return nil, s, ErrNotHost
		}
		if s.Phase != PhaseLobby {
			return nil, s, ErrNotInLobby
		}
		if len(s.Players) < MinCapacity {
			return nil, s, ErrTooFewPlayers
		}

		ns.Phase = PhaseRunning
		ns.Alive = make(map[ConnID]bool, len(ns.Players))
		for id := range ns.Players {
			ns.Alive[id] = true
		}
		return []Event{{
			Type:     EvtGameStarted,
			Audience: AudienceRoom,
			Conn:     cmd.Conn,
			Sequence: newSequence(s.Rules.SequenceLength),
			Spawn:    s.Rules.Spawn,
		}}, ns, nil

	case CmdEliminate:
		if s.Phase != PhaseRunning {
			return nil, s, ErrNotRunning
		}
		if !s.Alive[cmd.Conn] {
			return nil, s, ErrUnknownPlayer
		}
		delete(ns.Alive, cmd.Conn)
		return ns.settle(nil), ns, nil

	case CmdLeave:
		if _, ok := s.Players[cmd.Conn]; !ok {
			return nil, s, ErrUnknownPlayer
		}
		delete(ns.Players, cmd.Conn)
		delete(ns.Alive, cmd.Conn)
		ns.Order = slices.DeleteFunc(ns.Order, func(id ConnID) bool { return id == cmd.Conn })
		if ns.Host == cmd.Conn {
			ns.Host = ""
			if len(ns.Order) > 0 {
				ns.Host = ns.Order[0]
			}
		}

		events := []Event{ns.rosterEvent(AudienceRoom, cmd.Conn)}
		events = ns.settle(events)
		if len(ns.Players) == 0 {
			events = append(events, Event{Type: EvtRoomEmptied, Audience: AudienceNone, Conn: cmd.Conn})
		}
		return events, ns, nil

	case CmdLinesCleared:
		if s.Phase != PhaseRunning {
			return nil, s, ErrNotRunning
		}
		penalty := Penalty(cmd.Count)
		if penalty == 0 {
			return nil, s, nil
		}
		return []Event{{
			Type:     EvtGarbage,
			Audience: AudienceOthers,
			Conn:     cmd.Conn,
			From:     s.displayName(cmd),
			Count:    penalty,
		}}, ns, nil

	case CmdSpectrum:
		return []Event{{
			Type:     EvtSpectrum,
			Audience: AudienceOthers,
			Conn:     cmd.Conn,
			From:     s.displayName(cmd),
			Spectrum: slices.Clone(cmd.Spectrum),
		}}, ns, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// Penalty is the garbage sent to each opponent for a clear of count lines.
func Penalty(count int) int {
	return max(0, count-1)
}

// settle ends a running match once at most one player is alive. The ended
// phase is transient: the room goes straight back to the lobby.
func (s *State) settle(events []Event) []Event {
	if s.Phase != PhaseRunning {
		return events
	}
	switch len(s.Alive) {
	case 0:
		s.reset()
	case 1:
		var winner ConnID
		for id := range s.Alive {
			winner = id
		}
		s.Phase = PhaseEnded
		events = append(events, Event{
			Type:     EvtGameEnded,
			Audience: AudienceRoom,
			Conn:     winner,
			Winner:   s.Players[winner].Username,
		})
		s.reset()
	}
	return events
}

func (s *State) reset() {
	s.Phase = PhaseLobby
	s.Alive = map[ConnID]bool{}
}

func (s State) clone() State {
	ns := s
	ns.Players = make(map[ConnID]Player, len(s.Players))
	for id, p := range s.Players {
		ns.Players[id] = p
	}
	ns.Alive = make(map[ConnID]bool, len(s.Alive))
	for id, v := range s.Alive {
		ns.Alive[id] = v
	}
	ns.Order = slices.Clone(s.Order)
	return ns
}

func (s State) nameTaken(name string) bool {
	for _, p := range s.Players {
		if p.Username == name {
			return true
		}
	}
	return false
}

func (s State) displayName(cmd Command) string {
	if p, ok := s.Players[cmd.Conn]; ok {
		return p.Username
	}
	return cmd.Username
}

func (s State) rosterEvent(aud Audience, conn ConnID) Event {
	return Event{Type: EvtPlayersChanged, Audience: aud, Conn: conn, Players: s.Roster()}
}
