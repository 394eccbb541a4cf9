package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"retro/dataset"
	"retro/game"
	"retro/metrics"
)

type forward struct {
	terminals []Record
	// levels holds the non-terminal positions reached at each depth
	levels   map[int][]game.Position
	maxDepth int
}

// enumerate expands the game breadth first from the initial position until
// no non-terminal position is left.
func (s *Solver) enumerate(ctx context.Context) (*forward, error) {
	out := &forward{levels: map[int][]game.Position{}}
	oracle, _ := s.rules.(game.DepthOracle)
	// seen is only written between stages
	seen := map[game.Position]int{}

	frontier := dataset.Parallelize(s.env, []Record{{Key: s.rules.Initial(), Value: FrontierValue(0)}})
	for depth := 0; !frontier.IsEmpty(); depth++ {
		start := time.Now()
		s.metrics.Start(metrics.Forward, depth, frontier.Len())

		classified, err := dataset.Map(ctx, frontier, fmt.Sprintf("classify-%d", depth), func(r Record) (Record, error) {
			return s.classify(r, oracle, seen)
		})
		if err != nil {
			return nil, err
		}
		terminals, err := dataset.Filter(ctx, classified, fmt.Sprintf("terminals-%d", depth), func(r Record) bool {
			return r.Value.Kind == Terminal
		})
		if err != nil {
			return nil, err
		}
		open, err := dataset.Filter(ctx, classified, fmt.Sprintf("open-%d", depth), func(r Record) bool {
			return r.Value.Kind == Frontier
		})
		if err != nil {
			return nil, err
		}

		next, err := dataset.FlatMap(ctx, open, fmt.Sprintf("expand-%d", depth), s.expand)
		if err != nil {
			return nil, err
		}
		next, err = dataset.DistinctByKey(ctx, next, fmt.Sprintf("dedupe-%d", depth), recordKey, depthConflict)
		if err != nil {
			return nil, err
		}

		// commit the round
		found := terminals.Collect()
		out.terminals = append(out.terminals, found...)
		for _, r := range found {
			seen[r.Key] = depth
		}
		level := make([]game.Position, 0, open.Len())
		for _, r := range open.Collect() {
			seen[r.Key] = depth
			level = append(level, r.Key)
		}
		if len(level) > 0 {
			out.levels[depth] = level
		}
		out.maxDepth = depth
		frontier = next

		s.metrics.AddTerminals(len(found))
		s.metrics.Complete(len(out.terminals))
		log.Info().
			Str("run", s.runID).
			Int("level", depth).
			Int("terminals", len(found)).
			Int("open", len(level)).
			Int("next", next.Len()).
			Dur("took", time.Since(start)).
			Msg("forward round complete")
	}
	return out, nil
}

func (s *Solver) classify(r Record, oracle game.DepthOracle, seen map[game.Position]int) (Record, error) {
	depth := r.Value.Depth
	if oracle != nil {
		if d := oracle.Depth(r.Key); d != depth {
			return r, dataset.Fatal(fmt.Errorf("%w: %q reached after %d moves but holds %d", ErrDepthInconsistency, r.Key, depth, d))
		}
	}
	if d, ok := seen[r.Key]; ok {
		return r, dataset.Fatal(fmt.Errorf("%w: %q reached at depths %d and %d", ErrDepthInconsistency, r.Key, d, depth))
	}
	if outcome := s.rules.Classify(r.Key); outcome != game.Undecided {
		return Record{Key: r.Key, Value: TerminalValue(depth, outcome)}, nil
	}
	return r, nil
}

func (s *Solver) expand(r Record) ([]Record, error) {
	moves := s.rules.LegalMoves(r.Key)
	if len(moves) == 0 {
		return nil, dataset.Fatal(fmt.Errorf("%w: %q is undecided but has no legal moves", game.ErrRulesViolation, r.Key))
	}
	out := make([]Record, 0, len(moves))
	for _, m := range moves {
		child, err := s.rules.Play(r.Key, m)
		if err != nil {
			return nil, dataset.Fatal(err)
		}
		out = append(out, Record{Key: child, Value: FrontierValue(r.Value.Depth + 1)})
	}
	return out, nil
}

func recordKey(r Record) game.Position {
	return r.Key
}

func depthConflict(a, b Record) error {
	if a.Value.Depth != b.Value.Depth {
		return dataset.Fatal(fmt.Errorf("%w: %q at depths %d and %d", ErrDepthInconsistency, a.Key, a.Value.Depth, b.Value.Depth))
	}
	return nil
}
