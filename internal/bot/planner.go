package bot

import (
	"math"
	"slices"
	"time"

	"github.com/DoyleJ11/red-tetris-backend/internal/engine"
	"github.com/DoyleJ11/red-tetris-backend/internal/player"
)

// Weights for the placement heuristic. Lines are rewarded, everything else
// that makes the stack harder to play is penalized.
const (
	weightHeight    = -0.51
	weightLines     = 0.76
	weightHoles     = -0.36
	weightBumpiness = -0.18
	toppedOut       = -1000.0
)

// Plan returns the key presses that put p where the heuristic likes it best.
// The last press is always a hard drop.
func Plan(b engine.Board, p engine.Piece) []player.Input {
	best := math.Inf(-1)
	plan := []player.Input{player.HardDrop}

	q := p
	var turns []player.Input
	for rot := 0; rot < 4; rot++ {
		if rot > 0 {
			next := engine.Rotate(b, q)
			if next.Rotation == q.Rotation {
				break
			}
			q = next
			turns = append(turns, player.Rotate)
		}
		for _, dir := range []int{0, -1, 1} {
			c := q
			var shifts []player.Input
			for {
				if score := evaluate(b, c); score > best {
					best = score
					plan = slices.Concat(turns, shifts, []player.Input{player.HardDrop})
				}
				if dir == 0 {
					break
				}
				moved := engine.Move(b, c, dir, 0)
				if moved.X == c.X {
					break
				}
				c = moved
				if dir < 0 {
					shifts = append(shifts, player.MoveLeft)
				} else {
					shifts = append(shifts, player.MoveRight)
				}
			}
		}
	}
	return plan
}

func evaluate(b engine.Board, p engine.Piece) float64 {
	landed := engine.Lock(b, engine.HardDrop(b, p))
	after, lines := engine.ClearLines(landed)

	heights := engine.Spectrum(after)
	agg, bump := 0, 0
	for x, h := range heights {
		agg += h
		if x > 0 {
			bump += abs(h - heights[x-1])
		}
	}

	score := weightHeight*float64(agg) +
		weightLines*float64(lines) +
		weightHoles*float64(holes(after)) +
		weightBumpiness*float64(bump)
	if engine.TopRowOccupied(after) {
		score += toppedOut
	}
	return score
}

// holes counts empty cells with something above them in the same column.
func holes(b engine.Board) int {
	n := 0
	for x := 0; x < engine.Width; x++ {
		covered := false
		for y := 0; y < engine.Height; y++ {
			switch {
			case b[y][x] != engine.Empty:
				covered = true
			case covered:
				n++
			}
		}
	}
	return n
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Pilot feeds a planned placement to a game one key press at a time.
type Pilot struct {
	think time.Duration
	now   func() time.Time
	queue []player.Input
	last  time.Time
}

func NewPilot(think time.Duration) *Pilot {
	return &Pilot{think: think, now: time.Now}
}

// Next is a player.Autopilot.
func (p *Pilot) Next(g *player.Game) []player.Input {
	now := p.now()
	if !p.last.IsZero() && now.Sub(p.last) < p.think {
		return nil
	}
	if len(p.queue) == 0 {
		p.queue = Plan(g.Board(), g.Active())
	}
	in := p.queue[0]
	p.queue = p.queue[1:]
	p.last = now
	return []player.Input{in}
}
