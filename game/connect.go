package game

import "fmt"

// Connect is connect-N: pieces drop to the lowest empty row of a column.
type Connect struct {
	Grid
}

func NewConnect(width, height, win int) (*Connect, error) {
	g, err := NewGrid(width, height, win)
	if err != nil {
		return nil, err
	}
	return &Connect{Grid: g}, nil
}

func (c *Connect) Name() string {
	return "connect4-" + c.Grid.String()
}

func (c *Connect) Initial() Position {
	return c.Empty()
}

func (c *Connect) Classify(p Position) Outcome {
	return c.classify(p)
}

// height returns the number of pieces stacked in a column
func (c *Connect) height(p Position, col int) int {
	row := 0
	for row < c.Height && p[c.Index(col, row)] != EmptyCell {
		row++
	}
	return row
}

func (c *Connect) LegalMoves(p Position) []Move {
	if c.classify(p) != Undecided {
		return nil
	}
	moves := make([]Move, 0, c.Width)
	for col := 0; col < c.Width; col++ {
		if c.height(p, col) < c.Height {
			moves = append(moves, Move(col))
		}
	}
	return moves
}

func (c *Connect) validate(p Position) error {
	if err := c.Grid.validate(p); err != nil {
		return err
	}
	for col := 0; col < c.Width; col++ {
		for row := c.height(p, col); row < c.Height; row++ {
			if p[c.Index(col, row)] != EmptyCell {
				return fmt.Errorf("%w: floating piece at column %d row %d of %q", ErrRulesViolation, col, row, p)
			}
		}
	}
	return nil
}

func (c *Connect) Play(p Position, m Move) (Position, error) {
	if err := c.validate(p); err != nil {
		return "", err
	}
	if c.classify(p) != Undecided {
		return "", fmt.Errorf("%w: move %d on terminal position %q", ErrRulesViolation, m, p)
	}
	col := int(m)
	if col < 0 || col >= c.Width {
		return "", fmt.Errorf("%w: column %d out of range", ErrRulesViolation, m)
	}
	row := c.height(p, col)
	if row == c.Height {
		return "", fmt.Errorf("%w: column %d of %q is full", ErrRulesViolation, m, p)
	}
	return withCell(p, c.Index(col, row), c.turn(p)), nil
}

func (c *Connect) Unplay(p Position) ([]Position, error) {
	if err := c.validate(p); err != nil {
		return nil, err
	}
	last := opponent(c.turn(p))
	var parents []Position
	for col := 0; col < c.Width; col++ {
		row := c.height(p, col) - 1
		if row < 0 {
			continue
		}
		i := c.Index(col, row)
		if p[i] != last {
			continue
		}
		parent := withCell(p, i, EmptyCell)
		if c.classify(parent) == Undecided {
			parents = append(parents, parent)
		}
	}
	return parents, nil
}
