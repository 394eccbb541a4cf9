package game

import "fmt"

// TicTacToe is the m,n,k game: players alternate placing a piece on any
// empty cell and the first to get Win in a row wins.
type TicTacToe struct {
	Grid
}

func NewTicTacToe(width, height, win int) (*TicTacToe, error) {
	g, err := NewGrid(width, height, win)
	if err != nil {
		return nil, err
	}
	return &TicTacToe{Grid: g}, nil
}

func (t *TicTacToe) Name() string {
	return "tictactoe-" + t.Grid.String()
}

func (t *TicTacToe) Initial() Position {
	return t.Empty()
}

func (t *TicTacToe) Classify(p Position) Outcome {
	return t.classify(p)
}

func (t *TicTacToe) LegalMoves(p Position) []Move {
	if t.classify(p) != Undecided {
		return nil
	}
	moves := make([]Move, 0, len(p))
	for i := 0; i < len(p); i++ {
		if p[i] == EmptyCell {
			moves = append(moves, Move(i))
		}
	}
	return moves
}

func (t *TicTacToe) Play(p Position, m Move) (Position, error) {
	if err := t.validate(p); err != nil {
		return "", err
	}
	if t.classify(p) != Undecided {
		return "", fmt.Errorf("%w: move %d on terminal position %q", ErrRulesViolation, m, p)
	}
	if m < 0 || int(m) >= len(p) {
		return "", fmt.Errorf("%w: cell %d out of range", ErrRulesViolation, m)
	}
	if p[m] != EmptyCell {
		return "", fmt.Errorf("%w: cell %d of %q is occupied", ErrRulesViolation, m, p)
	}
	return withCell(p, int(m), t.turn(p)), nil
}

func (t *TicTacToe) Unplay(p Position) ([]Position, error) {
	if err := t.validate(p); err != nil {
		return nil, err
	}
	last := opponent(t.turn(p))
	var parents []Position
	for i := 0; i < len(p); i++ {
		if p[i] != last {
			continue
		}
		parent := withCell(p, i, EmptyCell)
		if t.classify(parent) == Undecided {
			parents = append(parents, parent)
		}
	}
	return parents, nil
}
