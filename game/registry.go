package game

import "fmt"

const (
	TicTacToeName = "tictactoe"
	ConnectName   = "connect4"
)

// Names lists the built-in rulesets accepted by New
var Names = []string{TicTacToeName, ConnectName}

// Board is implemented by the built-in grid games
type Board interface {
	Rules
	Render(Position) string
	Mirror(Position) Position
}

func New(name string, width, height, win int) (Board, error) {
	var (
		b   Board
		err error
	)
	switch name {
	case TicTacToeName:
		b, err = NewTicTacToe(width, height, win)
	case ConnectName:
		b, err = NewConnect(width, height, win)
	default:
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownGame, name, Names)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
