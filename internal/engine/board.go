package engine

import (
	"errors"
	"math/rand/v2"
)

// ErrTopOut signals elimination: garbage would push existing blocks off the top.
var ErrTopOut = errors.New("top out")

const (
	Height = 20
	Width  = 10
)

// Cell is one board square. Zero is empty; locked pieces keep their Kind value.
type Cell uint8

const (
	Empty   Cell = 0
	Garbage Cell = 8
)

func CellOf(k Kind) Cell { return Cell(k) }

func (c Cell) IsGarbage() bool { return c == Garbage }

func (c Cell) String() string {
	switch {
	case c == Empty:
		return ""
	case c == Garbage:
		return "G"
	default:
		return Kind(c).String()
	}
}

func (c Cell) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Board is a value type; every operation below returns a new board.
type Board [Height][Width]Cell

// Rand is the randomness the engine needs. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

func orGlobal(r Rand) Rand {
	if r == nil {
		return globalRand{}
	}
	return r
}

func NewBoard() Board { return Board{} }

// Collides reports whether p shifted by (dx, dy) leaves the well or overlaps a block.
// Cells above the top edge only have to respect the side walls.
func Collides(b Board, p Piece, dx, dy int) bool {
	for row := range p.Shape {
		for col, v := range p.Shape[row] {
			if v == 0 {
				continue
			}
			x := p.X + col + dx
			y := p.Y + row + dy
			if x < 0 || x >= Width || y >= Height {
				return true
			}
			if y < 0 {
				continue
			}
			if b[y][x] != Empty {
				return true
			}
		}
	}
	return false
}

func Move(b Board, p Piece, dx, dy int) Piece {
	if Collides(b, p, dx, dy) {
		return p
	}
	return p.offset(dx, dy)
}

func SoftDrop(b Board, p Piece) Piece {
	return Move(b, p, 0, 1)
}

func HardDrop(b Board, p Piece) Piece {
	for !Collides(b, p, 0, 1) {
		p = p.offset(0, 1)
	}
	return p
}

// Ghost is the landing position shown under the active piece.
func Ghost(b Board, p Piece) Piece {
	return HardDrop(b, p)
}

// Rotate turns p clockwise, trying each kick offset for the transition in order.
func Rotate(b Board, p Piece) Piece {
	if p.Kind == KindO {
		return p
	}
	to := (p.Rotation + 1) % 4
	rotated := Piece{
		Kind:     p.Kind,
		Shape:    rotateCW(p.Shape),
		X:        p.X,
		Y:        p.Y,
		Rotation: to,
	}
	for _, k := range kicksFor(p.Kind, p.Rotation) {
		if !Collides(b, rotated, k.dx, k.dy) {
			return rotated.offset(k.dx, k.dy)
		}
	}
	return p
}

// Lock writes the piece into the board. Cells above the top edge are dropped.
func Lock(b Board, p Piece) Board {
	cell := CellOf(p.Kind)
	for _, c := range p.Cells() {
		x, y := c[0], c[1]
		if y < 0 || y >= Height || x < 0 || x >= Width {
			continue
		}
		b[y][x] = cell
	}
	return b
}

func rowClears(row [Width]Cell) bool {
	for _, c := range row {
		if c == Empty || c.IsGarbage() {
			return false
		}
	}
	return true
}

func ClearLines(b Board) (Board, int) {
	var out Board
	dst := Height - 1
	cleared := 0
	for y := Height - 1; y >= 0; y-- {
		if rowClears(b[y]) {
			cleared++
			continue
		}
		out[dst] = b[y]
		dst--
	}
	return out, cleared
}

func TopRowOccupied(b Board) bool {
	for _, c := range b[0] {
		if c != Empty {
			return true
		}
	}
	return false
}

// InjectGarbage shifts the board up by count rows and fills the bottom with garbage,
// leaving one random hole per row.
func InjectGarbage(b Board, count int, rng Rand) (Board, error) {
	if count <= 0 {
		return b, nil
	}
	if TopRowOccupied(b) {
		return b, ErrTopOut
	}
	if count > Height {
		count = Height
	}
	rng = orGlobal(rng)

	var out Board
	copy(out[:Height-count], b[count:])
	for y := Height - count; y < Height; y++ {
		hole := rng.IntN(Width)
		for x := 0; x < Width; x++ {
			if x == hole {
				continue
			}
			out[y][x] = Garbage
		}
	}
	return out, nil
}

// Spectrum returns the stack height of every column.
func Spectrum(b Board) []int {
	heights := make([]int, Width)
	for x := 0; x < Width; x++ {
		for y := 0; y < Height; y++ {
			if b[y][x] != Empty {
				heights[x] = Height - y
				break
			}
		}
	}
	return heights
}
