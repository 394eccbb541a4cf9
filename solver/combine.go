package solver

import (
	"fmt"

	"retro/game"
)

// Summary is a partial aggregate over the contributions a parent received.
// Merge is commutative and associative.
type Summary struct {
	Depth         int
	Children      int
	Wins          int
	MinWin        int
	Ties          int
	MinTie        int
	MaxRemoteness int
}

// Summarize turns one contribution (a child's Parent value) into a summary.
func Summarize(v Value) Summary {
	s := Summary{Depth: v.Depth, Children: 1, MaxRemoteness: v.Remoteness}
	switch v.Outcome {
	case game.Win:
		s.Wins, s.MinWin = 1, v.Remoteness
	case game.Tie:
		s.Ties, s.MinTie = 1, v.Remoteness
	}
	return s
}

func (s Summary) Merge(o Summary) (Summary, error) {
	if s.Depth != o.Depth {
		return s, fmt.Errorf("%w: contributions at depths %d and %d", ErrDepthInconsistency, s.Depth, o.Depth)
	}
	out := Summary{
		Depth:         s.Depth,
		Children:      s.Children + o.Children,
		Wins:          s.Wins + o.Wins,
		MinWin:        minOf(s.Wins, s.MinWin, o.Wins, o.MinWin),
		Ties:          s.Ties + o.Ties,
		MinTie:        minOf(s.Ties, s.MinTie, o.Ties, o.MinTie),
		MaxRemoteness: max(s.MaxRemoteness, o.MaxRemoteness),
	}
	return out, nil
}

// minOf is the smaller of a and b, ignoring a side with no members
func minOf(na, a, nb, b int) int {
	switch {
	case na == 0:
		return b
	case nb == 0:
		return a
	}
	return min(a, b)
}

// Value applies the combine rule: any winning move wins as fast as possible,
// a position where every move loses loses as slowly as possible, and anything
// else is a tie reached as fast as possible.
func (s Summary) Value() Value {
	switch {
	case s.Wins > 0:
		return SolvedValue(s.Depth, game.Win, s.MinWin)
	case s.Ties > 0:
		return SolvedValue(s.Depth, game.Tie, s.MinTie)
	}
	return SolvedValue(s.Depth, game.Lose, s.MaxRemoteness)
}

// Combine merges contributions into the parent's value in one pass.
func Combine(children ...Value) (Value, error) {
	if len(children) == 0 {
		return Value{}, fmt.Errorf("%w: no children", ErrIncompleteChildSet)
	}
	s := Summarize(children[0])
	for _, child := range children[1:] {
		var err error
		s, err = s.Merge(Summarize(child))
		if err != nil {
			return Value{}, err
		}
	}
	return s.Value(), nil
}
