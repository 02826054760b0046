package engine

import (
	"errors"
	"fmt"
)

var ErrUnknownKind = errors.New("unknown piece kind")

type Kind uint8

const (
	KindI Kind = iota + 1
	KindO
	KindT
	KindS
	KindZ
	KindJ
	KindL
)

// Kinds is the catalog order used when building bags.
var Kinds = [7]Kind{KindI, KindO, KindT, KindS, KindZ, KindJ, KindL}

var kindLetters = map[Kind]string{
	KindI: "I",
	KindO: "O",
	KindT: "T",
	KindS: "S",
	KindZ: "Z",
	KindJ: "J",
	KindL: "L",
}

func (k Kind) String() string {
	if s, ok := kindLetters[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) Valid() bool {
	_, ok := kindLetters[k]
	return ok
}

// ParseKind accepts the single-letter form used on the wire.
func ParseKind(s string) (Kind, error) {
	for k, letter := range kindLetters {
		if letter == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
	return []byte(kindLetters[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

var shapes = map[Kind][][]uint8{
	KindI: {
		{0, 0, 0, 0},
		{1, 1, 1, 1},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	},
	KindO: {
		{1, 1},
		{1, 1},
	},
	KindT: {
		{0, 1, 0},
		{1, 1, 1},
		{0, 0, 0},
	},
	KindS: {
		{0, 1, 1},
		{1, 1, 0},
		{0, 0, 0},
	},
	KindZ: {
		{1, 1, 0},
		{0, 1, 1},
		{0, 0, 0},
	},
	KindJ: {
		{1, 0, 0},
		{1, 1, 1},
		{0, 0, 0},
	},
	KindL: {
		{0, 0, 1},
		{1, 1, 1},
		{0, 0, 0},
	},
}

// Shape returns a fresh copy of the spawn-orientation matrix for kind.
func Shape(kind Kind) [][]uint8 {
	return cloneShape(shapes[kind])
}

// Spawn is the top-left corner every player's pieces appear at.
type Spawn struct {
	X int `json:"x"`
	Y int `json:"y"`
}

var DefaultSpawn = Spawn{X: 3, Y: 0}

type Piece struct {
	Kind     Kind
	Shape    [][]uint8
	X        int
	Y        int
	Rotation int
}

func NewPiece(kind Kind, at Spawn) Piece {
	return Piece{
		Kind:  kind,
		Shape: Shape(kind),
		X:     at.X,
		Y:     at.Y,
	}
}

// Cells returns the board coordinates covered by the piece.
func (p Piece) Cells() [][2]int {
	cells := make([][2]int, 0, 4)
	for row := range p.Shape {
		for col, v := range p.Shape[row] {
			if v == 0 {
				continue
			}
			cells = append(cells, [2]int{p.X + col, p.Y + row})
		}
	}
	return cells
}

func (p Piece) offset(dx, dy int) Piece {
	p.X += dx
	p.Y += dy
	return p
}

func cloneShape(s [][]uint8) [][]uint8 {
	out := make([][]uint8, len(s))
	for i := range s {
		out[i] = append([]uint8(nil), s[i]...)
	}
	return out
}

// rotateCW turns a square matrix 90° clockwise.
func rotateCW(m [][]uint8) [][]uint8 {
	n := len(m)
	out := make([][]uint8, n)
	for i := range out {
		out[i] = make([]uint8, n)
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			out[x][n-1-y] = m[y][x]
		}
	}
	return out
}
