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

// verdict is a parent's combined value and how many children fed it.
type verdict struct {
	value    Value
	children int
}

// induce finalizes every reachable non-terminal position at depth level-1
// from the table entries at depth level.
func (s *Solver) induce(ctx context.Context, table *Table, level int, reachable []game.Position) ([]Record, error) {
	start := time.Now()
	live := dataset.Parallelize(s.env, table.Level(level))
	s.metrics.Start(metrics.Backward, level, live.Len())

	preds, err := dataset.FlatMap(ctx, live, fmt.Sprintf("unplay-%d", level), func(r Record) ([]Record, error) {
		return s.unplay(r, level)
	})
	if err != nil {
		return nil, err
	}
	kept, err := dataset.Restrict(ctx, preds, dataset.Parallelize(s.env, reachable), fmt.Sprintf("restrict-%d", level))
	if err != nil {
		return nil, err
	}
	dropped := preds.Len() - kept.Len()

	var verdicts *dataset.Dataset[dataset.Pair[game.Position, verdict]]
	switch s.strategy {
	case GroupStrategy:
		verdicts, err = s.group(ctx, kept, level)
	default:
		verdicts, err = s.reduce(ctx, kept, level)
	}
	if err != nil {
		return nil, err
	}

	finalized, err := dataset.Map(ctx, verdicts, fmt.Sprintf("finalize-%d", level), s.finalize)
	if err != nil {
		return nil, err
	}
	out := finalized.Collect()
	if len(out) != len(reachable) {
		return nil, fmt.Errorf("%w: finalized %d of %d positions at depth %d", ErrIncompleteChildSet, len(out), len(reachable), level-1)
	}

	s.metrics.AddDropped(dropped)
	s.metrics.AddFinalized(len(out))
	s.metrics.Complete(table.Len() + len(out))
	log.Info().
		Str("run", s.runID).
		Int("level", level).
		Int("live", live.Len()).
		Int("predecessors", preds.Len()).
		Int("dropped", dropped).
		Int("finalized", len(out)).
		Dur("took", time.Since(start)).
		Msg("backward round complete")
	return out, nil
}

func (s *Solver) unplay(r Record, level int) ([]Record, error) {
	if r.Value.Depth != level {
		return nil, dataset.Fatal(fmt.Errorf("%w: %q stored at depth %d, expected %d", ErrDepthInconsistency, r.Key, r.Value.Depth, level))
	}
	parents, err := s.rules.Unplay(r.Key)
	if err != nil {
		return nil, dataset.Fatal(err)
	}
	contribution := r.Value.Parent()
	out := make([]Record, 0, len(parents))
	for _, p := range parents {
		out = append(out, Record{Key: p, Value: contribution})
	}
	return out, nil
}

func (s *Solver) reduce(ctx context.Context, preds *dataset.Dataset[Record], level int) (*dataset.Dataset[dataset.Pair[game.Position, verdict]], error) {
	summaries, err := dataset.Map(ctx, preds, fmt.Sprintf("summarize-%d", level), func(r Record) (dataset.Pair[game.Position, Summary], error) {
		return dataset.Pair[game.Position, Summary]{Key: r.Key, Value: Summarize(r.Value)}, nil
	})
	if err != nil {
		return nil, err
	}
	reduced, err := dataset.ReduceByKey(ctx, summaries, fmt.Sprintf("reduce-%d", level), func(a, b Summary) (Summary, error) {
		merged, err := a.Merge(b)
		return merged, dataset.Fatal(err)
	})
	if err != nil {
		return nil, err
	}
	return dataset.Map(ctx, reduced, fmt.Sprintf("value-%d", level), func(p dataset.Pair[game.Position, Summary]) (dataset.Pair[game.Position, verdict], error) {
		return dataset.Pair[game.Position, verdict]{Key: p.Key, Value: verdict{value: p.Value.Value(), children: p.Value.Children}}, nil
	})
}

func (s *Solver) group(ctx context.Context, preds *dataset.Dataset[Record], level int) (*dataset.Dataset[dataset.Pair[game.Position, verdict]], error) {
	grouped, err := dataset.GroupByKey(ctx, preds, fmt.Sprintf("group-%d", level))
	if err != nil {
		return nil, err
	}
	return dataset.Map(ctx, grouped, fmt.Sprintf("combine-%d", level), func(p dataset.Pair[game.Position, []Value]) (dataset.Pair[game.Position, verdict], error) {
		v, err := Combine(p.Value...)
		if err != nil {
			return dataset.Pair[game.Position, verdict]{}, dataset.Fatal(err)
		}
		return dataset.Pair[game.Position, verdict]{Key: p.Key, Value: verdict{value: v, children: len(p.Value)}}, nil
	})
}

func (s *Solver) finalize(p dataset.Pair[game.Position, verdict]) (Record, error) {
	if moves := len(s.rules.LegalMoves(p.Key)); p.Value.children != moves {
		return Record{}, dataset.Fatal(fmt.Errorf("%w: %q has %d legal moves but %d solved children", ErrIncompleteChildSet, p.Key, moves, p.Value.children))
	}
	return Record{Key: p.Key, Value: p.Value.value}, nil
}
