package solver

import (
	"encoding/binary"
	"errors"
	"fmt"

	"retro/dataset"
	"retro/game"
)

var ErrCorruptValue = errors.New("corrupt value encoding")

type Kind uint8

const (
	Frontier Kind = iota // Reached but not yet expanded
	Terminal             // Decided by the rules, remoteness 0
	Solved               // Decided by combining children
)

func (k Kind) String() string {
	switch k {
	case Frontier:
		return "FRONTIER"
	case Terminal:
		return "TERMINAL"
	case Solved:
		return "SOLVED"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "FRONTIER":
		return Frontier, nil
	case "TERMINAL":
		return Terminal, nil
	case "SOLVED":
		return Solved, nil
	}
	return Frontier, fmt.Errorf("unknown kind %q", s)
}

// Value is what the engine knows about one position. Frontier values carry
// only a depth; Outcome and Remoteness are meaningful for the other kinds.
type Value struct {
	Kind       Kind
	Depth      int
	Outcome    game.Outcome
	Remoteness int
}

// Record pairs a position with its value; it is the element type of every
// dataset the engine builds.
type Record = dataset.Pair[game.Position, Value]

func FrontierValue(depth int) Value {
	return Value{Kind: Frontier, Depth: depth}
}

func TerminalValue(depth int, outcome game.Outcome) Value {
	return Value{Kind: Terminal, Depth: depth, Outcome: outcome}
}

func SolvedValue(depth int, outcome game.Outcome, remoteness int) Value {
	return Value{Kind: Solved, Depth: depth, Outcome: outcome, Remoteness: remoteness}
}

// Parent is this value as a contribution to a position one move earlier:
// seen by the other player and one move further from the end.
func (v Value) Parent() Value {
	return SolvedValue(v.Depth-1, v.Outcome.Flip(), v.Remoteness+1)
}

// IsFinal reports whether the value may be stored in a Table.
func (v Value) IsFinal() bool {
	return v.Kind == Terminal || v.Kind == Solved
}

func (v Value) String() string {
	if v.Kind == Frontier {
		return fmt.Sprintf("FRONTIER@%d", v.Depth)
	}
	return fmt.Sprintf("%s(%d)@%d", v.Outcome, v.Remoteness, v.Depth)
}

func (v Value) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 2, 2+2*binary.MaxVarintLen64)
	buf[0] = byte(v.Kind)
	buf[1] = byte(v.Outcome)
	buf = binary.AppendUvarint(buf, uint64(v.Depth))
	buf = binary.AppendUvarint(buf, uint64(v.Remoteness))
	return buf, nil
}

func (v *Value) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("%w: %d bytes", ErrCorruptValue, len(data))
	}
	kind, outcome := Kind(data[0]), game.Outcome(data[1])
	if kind > Solved || outcome > game.Tie {
		return fmt.Errorf("%w: kind %d outcome %d", ErrCorruptValue, data[0], data[1])
	}
	depth, n := binary.Uvarint(data[2:])
	if n <= 0 {
		return fmt.Errorf("%w: depth", ErrCorruptValue)
	}
	remoteness, m := binary.Uvarint(data[2+n:])
	if m <= 0 || 2+n+m != len(data) {
		return fmt.Errorf("%w: remoteness", ErrCorruptValue)
	}
	*v = Value{Kind: kind, Depth: int(depth), Outcome: outcome, Remoteness: int(remoteness)}
	return nil
}
