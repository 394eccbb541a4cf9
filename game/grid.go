package game

import (
	"fmt"
	"strings"
)

const (
	EmptyCell = '-'
	PlayerX   = 'X'
	PlayerO   = 'O'
)

// Grid is the board geometry shared by the in-a-row games.
// Cells are stored column-major with row 0 at the bottom: index = col*Height + row.
type Grid struct {
	Width  int
	Height int
	Win    int // pieces in a row needed to win
}

var directions = [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

func NewGrid(width, height, win int) (Grid, error) {
	if width <= 0 || height <= 0 {
		return Grid{}, fmt.Errorf("%w: %dx%d", ErrInvalidGeometry, width, height)
	}
	if win <= 0 || (win > width && win > height) {
		return Grid{}, fmt.Errorf("%w: win length %d on %dx%d", ErrInvalidGeometry, win, width, height)
	}
	return Grid{Width: width, Height: height, Win: win}, nil
}

func (g Grid) Cells() int {
	return g.Width * g.Height
}

func (g Grid) Index(col, row int) int {
	return col*g.Height + row
}

func (g Grid) Empty() Position {
	return Position(strings.Repeat(string(rune(EmptyCell)), g.Cells()))
}

func (g Grid) String() string {
	return fmt.Sprintf("%dx%d-%d", g.Width, g.Height, g.Win)
}

// Depth is the number of pieces on the board
func (g Grid) Depth(p Position) int {
	x, o := g.counts(p)
	return x + o
}

func (g Grid) counts(p Position) (x, o int) {
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case PlayerX:
			x++
		case PlayerO:
			o++
		}
	}
	return x, o
}

// turn is the player to move. X starts, so X moves whenever the counts are level.
func (g Grid) turn(p Position) byte {
	x, o := g.counts(p)
	if x > o {
		return PlayerO
	}
	return PlayerX
}

func opponent(piece byte) byte {
	if piece == PlayerX {
		return PlayerO
	}
	return PlayerX
}

func (g Grid) validate(p Position) error {
	if len(p) != g.Cells() {
		return fmt.Errorf("%w: position %q has %d cells, want %d", ErrRulesViolation, p, len(p), g.Cells())
	}
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case EmptyCell, PlayerX, PlayerO:
		default:
			return fmt.Errorf("%w: position %q has unknown cell %q", ErrRulesViolation, p, p[i])
		}
	}
	x, o := g.counts(p)
	if x != o && x != o+1 {
		return fmt.Errorf("%w: position %q has %d X and %d O", ErrRulesViolation, p, x, o)
	}
	return nil
}

func (g Grid) full(p Position) bool {
	return strings.IndexByte(string(p), EmptyCell) < 0
}

// hasLine reports whether piece has at least Win in a row anywhere on the board.
func (g Grid) hasLine(p Position, piece byte) bool {
	for col := 0; col < g.Width; col++ {
		for row := 0; row < g.Height; row++ {
			if p[g.Index(col, row)] != piece {
				continue
			}
			for _, d := range directions {
				if g.runFrom(p, piece, col, row, d) >= g.Win {
					return true
				}
			}
		}
	}
	return false
}

func (g Grid) runFrom(p Position, piece byte, col, row int, d [2]int) int {
	count := 0
	for col >= 0 && col < g.Width && row >= 0 && row < g.Height && p[g.Index(col, row)] == piece {
		count++
		col += d[0]
		row += d[1]
	}
	return count
}

func (g Grid) classify(p Position) Outcome {
	mover := g.turn(p)
	switch {
	case g.hasLine(p, opponent(mover)):
		return Lose
	case g.hasLine(p, mover):
		return Win
	case g.full(p):
		return Tie
	}
	return Undecided
}

// Mirror reflects a position left to right
func (g Grid) Mirror(p Position) Position {
	out := []byte(p)
	for col := 0; col < g.Width; col++ {
		for row := 0; row < g.Height; row++ {
			out[g.Index(g.Width-1-col, row)] = p[g.Index(col, row)]
		}
	}
	return Position(out)
}

// Render draws the board top row first, for logs and the inspect command.
func (g Grid) Render(p Position) string {
	var b strings.Builder
	for row := g.Height - 1; row >= 0; row-- {
		for col := 0; col < g.Width; col++ {
			b.WriteByte(p[g.Index(col, row)])
		}
		if row > 0 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func withCell(p Position, i int, piece byte) Position {
	b := []byte(p)
	b[i] = piece
	return Position(b)
}
