package game

import (
	"errors"
	"fmt"
)

var (
	ErrRulesViolation  = errors.New("rules violation")
	ErrUnknownGame     = errors.New("unknown game")
	ErrInvalidGeometry = errors.New("invalid board geometry")
)

// Position is an immutable board encoding, one byte per cell in canonical order.
// Two positions are the same game state iff they are equal strings.
type Position string

// Move identifies one legal move from a position (a cell or a column).
type Move int

type Outcome uint8

const (
	Undecided Outcome = iota
	Win
	Lose
	Tie
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "WIN"
	case Lose:
		return "LOSE"
	case Tie:
		return "TIE"
	default:
		return "UNDECIDED"
	}
}

// Flip returns the outcome seen from the other player
func (o Outcome) Flip() Outcome {
	switch o {
	case Win:
		return Lose
	case Lose:
		return Win
	}
	return o
}

func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "WIN":
		return Win, nil
	case "LOSE":
		return Lose, nil
	case "TIE":
		return Tie, nil
	case "UNDECIDED":
		return Undecided, nil
	}
	return Undecided, fmt.Errorf("unknown outcome %q", s)
}

// Rules is everything the solver needs to know about a game.
// Implementations must be pure: the same inputs always give the same outputs,
// and they are called concurrently from many goroutines.
type Rules interface {
	// Name identifies the ruleset including its parameters
	Name() string
	Initial() Position
	// LegalMoves is empty exactly when the position is terminal
	LegalMoves(Position) []Move
	Play(Position, Move) (Position, error)
	// Unplay returns every non-terminal position that reaches the given
	// position in one move by the player who moved last.
	Unplay(Position) ([]Position, error)
	// Classify is from the perspective of the player to move
	Classify(Position) Outcome
}

// DepthOracle is implemented by rules where the number of moves played can be
// read off the position itself (e.g. the piece count).
type DepthOracle interface {
	Depth(Position) int
}

func IsTerminal(r Rules, p Position) bool {
	return r.Classify(p) != Undecided
}
