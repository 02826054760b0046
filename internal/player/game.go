// Package player runs one player's local simulation: the active piece,
// gravity, lock delay and queued garbage on top of the pure board engine.
package player

import (
	"errors"
	"slices"
	"time"

	"github.com/DoyleJ11/red-tetris-backend/internal/engine"
)

type Input int

const (
	MoveLeft Input = iota + 1
	MoveRight
	SoftDrop
	HardDrop
	Rotate
	Hold
)

func (in Input) String() string {
	switch in {
	case MoveLeft:
		return "left"
	case MoveRight:
		return "right"
	case SoftDrop:
		return "soft-drop"
	case HardDrop:
		return "hard-drop"
	case Rotate:
		return "rotate"
	case Hold:
		return "hold"
	default:
		return "unknown"
	}
}

type ReportKind int

const (
	ReportLinesCleared ReportKind = iota + 1
	ReportGameOver
)

// Report is something the session layer has to hear about.
type Report struct {
	Kind  ReportKind
	Lines int
}

type Timing struct {
	Gravity          time.Duration
	SoftDrop         time.Duration
	LockDelay        time.Duration
	MaxLockResets    int
	Frame            time.Duration
	SpectrumInterval time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Gravity:          500 * time.Millisecond,
		SoftDrop:         50 * time.Millisecond,
		LockDelay:        500 * time.Millisecond,
		MaxLockResets:    15,
		Frame:            16 * time.Millisecond,
		SpectrumInterval: 250 * time.Millisecond,
	}
}

// points per clear size, multiplied by level+1
var lineScore = [5]int{0, 100, 300, 500, 800}

// Game is owned by a single goroutine; nothing in it is synchronized.
type Game struct {
	board  engine.Board
	active engine.Piece
	seq    []engine.Kind
	next   int
	spawn  engine.Spawn
	rng    engine.Rand
	timing Timing

	hold     engine.Kind
	holdUsed bool
	pending  int

	fallAcc    time.Duration
	lockAcc    time.Duration
	lockResets int
	softDrop   bool

	score int
	lines int
	level int
	over  bool
}

// NewGame spawns the first piece of seq. An empty seq gets one local bag.
func NewGame(seq []engine.Kind, spawn engine.Spawn, timing Timing, rng engine.Rand) *Game {
	if len(seq) == 0 {
		seq = engine.GenerateBag(rng)
	}
	g := &Game{
		board:  engine.NewBoard(),
		seq:    slices.Clone(seq),
		spawn:  spawn,
		rng:    rng,
		timing: timing,
	}
	g.spawnNext()
	return g
}

func (g *Game) Apply(in Input) []Report {
	if g.over {
		return nil
	}
	switch in {
	case MoveLeft:
		g.shift(engine.Move(g.board, g.active, -1, 0))
	case MoveRight:
		g.shift(engine.Move(g.board, g.active, 1, 0))
	case Rotate:
		g.shift(engine.Rotate(g.board, g.active))
	case SoftDrop:
		np := engine.SoftDrop(g.board, g.active)
		if np.Y != g.active.Y {
			g.active = np
			g.score++
			g.fallAcc = 0
		}
	case HardDrop:
		np := engine.HardDrop(g.board, g.active)
		g.score += 2 * (np.Y - g.active.Y)
		g.active = np
		return g.lock()
	case Hold:
		g.swapHold()
	}
	if g.over {
		return []Report{{Kind: ReportGameOver}}
	}
	return nil
}

// Advance runs gravity and lock delay for dt of elapsed time.
func (g *Game) Advance(dt time.Duration) []Report {
	if g.over || dt <= 0 {
		return nil
	}
	if g.grounded() {
		g.fallAcc = 0
		g.lockAcc += dt
		if g.lockAcc >= g.timing.LockDelay {
			return g.lock()
		}
		return nil
	}

	g.lockAcc = 0
	g.fallAcc += dt
	interval := g.timing.Gravity
	if g.softDrop {
		interval = g.timing.SoftDrop
	}
	if interval <= 0 {
		return nil
	}
	for g.fallAcc >= interval {
		g.fallAcc -= interval
		if g.grounded() {
			g.fallAcc = 0
			break
		}
		g.active = engine.Move(g.board, g.active, 0, 1)
	}
	return nil
}

// SetSoftDrop switches gravity to the soft-drop interval while held.
func (g *Game) SetSoftDrop(on bool) { g.softDrop = on }

// AddGarbage queues penalty lines; they land after the next lock.
func (g *Game) AddGarbage(n int) {
	if n > 0 {
		g.pending += n
	}
}

func (g *Game) Board() engine.Board  { return g.board }
func (g *Game) Active() engine.Piece { return g.active }
func (g *Game) Spectrum() []int      { return engine.Spectrum(g.board) }
func (g *Game) Held() engine.Kind    { return g.hold }
func (g *Game) Pending() int         { return g.pending }
func (g *Game) Over() bool           { return g.over }
func (g *Game) Score() int           { return g.score }
func (g *Game) Lines() int           { return g.lines }
func (g *Game) Level() int           { return g.level }

// Next previews the following k kinds, wrapping like the spawner does.
func (g *Game) Next(k int) []engine.Kind {
	out := make([]engine.Kind, 0, max(k, 0))
	for i := 0; i < k; i++ {
		out = append(out, g.seq[(g.next+i)%len(g.seq)])
	}
	return out
}

func (g *Game) grounded() bool {
	return engine.Collides(g.board, g.active, 0, 1)
}

// shift accepts a moved or rotated piece and spends a lock reset if it was
// resting on the stack.
func (g *Game) shift(np engine.Piece) {
	if samePlace(np, g.active) {
		return
	}
	g.active = np
	if g.lockAcc > 0 && g.lockResets < g.timing.MaxLockResets {
		g.lockAcc = 0
		g.lockResets++
	}
}

func samePlace(a, b engine.Piece) bool {
	return a.X == b.X && a.Y == b.Y && a.Rotation == b.Rotation
}

func (g *Game) swapHold() {
	if g.holdUsed {
		return
	}
	cur := g.active.Kind
	if g.hold == 0 {
		g.hold = cur
		g.spawnNext()
	} else {
		g.place(engine.NewPiece(g.hold, g.spawn))
		g.hold = cur
	}
	g.holdUsed = true
}

// lock writes the active piece, clears lines, lands queued garbage and
// spawns the next piece.
func (g *Game) lock() []Report {
	var reports []Report

	g.board = engine.Lock(g.board, g.active)
	board, n := engine.ClearLines(g.board)
	g.board = board
	if n > 0 {
		reports = append(reports, Report{Kind: ReportLinesCleared, Lines: n})
		g.lines += n
		g.score += lineScore[min(n, 4)] * (g.level + 1)
		g.level = g.lines / 10
	}

	if g.pending > 0 {
		board, err := engine.InjectGarbage(g.board, g.pending, g.rng)
		g.pending = 0
		if errors.Is(err, engine.ErrTopOut) {
			g.over = true
			return append(reports, Report{Kind: ReportGameOver})
		}
		g.board = board
	}

	if engine.TopRowOccupied(g.board) {
		g.over = true
		return append(reports, Report{Kind: ReportGameOver})
	}

	g.spawnNext()
	if g.over {
		reports = append(reports, Report{Kind: ReportGameOver})
	}
	return reports
}

func (g *Game) spawnNext() {
	kind := g.seq[g.next%len(g.seq)]
	g.next++
	g.holdUsed = false
	g.place(engine.NewPiece(kind, g.spawn))
}

func (g *Game) place(p engine.Piece) {
	g.active = p
	g.fallAcc = 0
	g.lockAcc = 0
	g.lockResets = 0
	if engine.Collides(g.board, p, 0, 0) {
		g.over = true
	}
}
