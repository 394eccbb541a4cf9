package game

import (
	"fmt"
	"slices"

	"golang.org/x/exp/rand"
)

// CheckInverse plays random games and checks that the rules agree with
// themselves: every move must be undone by Unplay, and LegalMoves must be empty
// exactly on terminal positions. It returns the number of moves checked.
func CheckInverse(r Rules, rng *rand.Rand, playouts int) (int, error) {
	checked := 0
	for i := 0; i < playouts; i++ {
		p := r.Initial()
		for {
			moves := r.LegalMoves(p)
			if terminal := IsTerminal(r, p); terminal != (len(moves) == 0) {
				return checked, fmt.Errorf("%w: %q terminal=%t with %d legal moves", ErrRulesViolation, p, terminal, len(moves))
			}
			if len(moves) == 0 {
				break
			}

			m := moves[rng.Intn(len(moves))]
			child, err := r.Play(p, m)
			if err != nil {
				return checked, err
			}
			parents, err := r.Unplay(child)
			if err != nil {
				return checked, err
			}
			if !slices.Contains(parents, p) {
				return checked, fmt.Errorf("%w: unplay of %q does not give back %q (move %d)", ErrRulesViolation, child, p, m)
			}
			if o, ok := r.(DepthOracle); ok && o.Depth(child) != o.Depth(p)+1 {
				return checked, fmt.Errorf("%w: move %d on %q does not advance depth", ErrRulesViolation, m, p)
			}
			checked++
			p = child
		}
	}
	return checked, nil
}
