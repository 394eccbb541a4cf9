// Package solver computes the value and remoteness of every reachable
// position of a game by retrograde analysis: a breadth-first forward pass
// that finds the terminal positions, then a level-by-level backward pass that
// rebuilds predecessors with inverse moves and combines their children.
package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"retro/dataset"
	"retro/game"
	"retro/metrics"
)

var (
	ErrDepthInconsistency = errors.New("position reached at more than one depth")
	ErrIncompleteChildSet = errors.New("incomplete child set")
	ErrSnapshotMismatch   = errors.New("snapshot belongs to a different game")
)

type Strategy int

const (
	// ReduceStrategy folds partial summaries with ReduceByKey
	ReduceStrategy Strategy = iota
	// GroupStrategy collects every contribution with GroupByKey, then combines
	GroupStrategy
)

func (s Strategy) String() string {
	switch s {
	case ReduceStrategy:
		return "reduce"
	case GroupStrategy:
		return "group"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "reduce", "":
		return ReduceStrategy, nil
	case "group":
		return GroupStrategy, nil
	}
	return ReduceStrategy, fmt.Errorf("unknown strategy %q", s)
}

// Checkpoint describes the last round that was fully committed.
type Checkpoint struct {
	RunID    string    `json:"run_id"`
	Game     string    `json:"game"`
	MaxDepth int       `json:"max_depth"`
	Level    int       `json:"level"` // Next level to finalize; 0 once solved
	Updated  time.Time `json:"updated"`
}

// Restored is a snapshot as loaded back from a Snapshotter.
type Restored struct {
	Checkpoint Checkpoint
	Records    []Record
	Levels     map[int][]game.Position
}

// Snapshotter persists committed rounds so an interrupted solve can resume.
// Load returns nil when nothing has been saved.
type Snapshotter interface {
	SaveForward(ctx context.Context, cp Checkpoint, terminals []Record, levels map[int][]game.Position) error
	SaveRound(ctx context.Context, cp Checkpoint, finalized []Record) error
	Load(ctx context.Context) (*Restored, error)
}

type Option func(s *Solver)

type Solver struct {
	rules     game.Rules
	env       *dataset.Env
	strategy  Strategy
	snapshots Snapshotter
	metrics   metrics.Collector
	runID     string
}

func WithStrategy(strategy Strategy) Option {
	return func(s *Solver) {
		s.strategy = strategy
	}
}

func WithSnapshots(snapshots Snapshotter) Option {
	return func(s *Solver) {
		s.snapshots = snapshots
	}
}

func WithMetrics(collector metrics.Collector) Option {
	return func(s *Solver) {
		if collector != nil {
			s.metrics = collector
		}
	}
}

func WithRunID(id string) Option {
	return func(s *Solver) {
		if id != "" {
			s.runID = id
		}
	}
}

func New(rules game.Rules, env *dataset.Env, options ...Option) *Solver {
	if env == nil {
		env = dataset.NewEnv()
	}
	s := &Solver{ // Default values
		rules:    rules,
		env:      env,
		strategy: ReduceStrategy,
		metrics:  metrics.NewDummyCollector(),
		runID:    uuid.NewString(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *Solver) RunID() string {
	return s.runID
}

// Solve runs both passes and returns the complete table. When snapshots are
// configured, a saved run of the same game is resumed from its checkpoint.
func (s *Solver) Solve(ctx context.Context) (*Table, error) {
	start := time.Now()
	table := NewTable()

	var (
		cp     Checkpoint
		levels map[int][]game.Position
	)
	restored, err := s.restore(ctx)
	if err != nil {
		return nil, err
	}
	if restored != nil {
		if _, err := table.Union(restored.Records); err != nil {
			return nil, fmt.Errorf("failed to restore table: %w", err)
		}
		cp, levels = restored.Checkpoint, restored.Levels
		log.Info().Str("run", s.runID).Str("resumed", cp.RunID).Int("level", cp.Level).Int("table", table.Len()).Msg("resuming from snapshot")
	} else {
		fwd, err := s.enumerate(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := table.Union(fwd.terminals); err != nil {
			return nil, err
		}
		cp = Checkpoint{RunID: s.runID, Game: s.rules.Name(), MaxDepth: fwd.maxDepth, Level: fwd.maxDepth, Updated: time.Now().UTC()}
		levels = fwd.levels
		if s.snapshots != nil {
			if err := s.snapshots.SaveForward(ctx, cp, fwd.terminals, levels); err != nil {
				return nil, fmt.Errorf("failed to save forward snapshot: %w", err)
			}
		}
	}

	for level := cp.Level; level > 0; level-- {
		finalized, err := s.induce(ctx, table, level, levels[level-1])
		if err != nil {
			return nil, err
		}
		if _, err := table.Union(finalized); err != nil {
			return nil, err
		}
		delete(levels, level-1)

		cp.Level = level - 1
		cp.Updated = time.Now().UTC()
		if s.snapshots != nil {
			if err := s.snapshots.SaveRound(ctx, cp, finalized); err != nil {
				return nil, fmt.Errorf("failed to save round %d: %w", level, err)
			}
		}
	}

	initial, ok := table.Get(s.rules.Initial())
	if !ok {
		return nil, fmt.Errorf("%w: initial position was never finalized", ErrIncompleteChildSet)
	}
	log.Info().
		Str("run", s.runID).
		Str("game", s.rules.Name()).
		Int("positions", table.Len()).
		Stringer("initial", initial).
		Dur("took", time.Since(start)).
		Msg("solved")
	return table, nil
}

func (s *Solver) restore(ctx context.Context) (*Restored, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	restored, err := s.snapshots.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if restored == nil {
		return nil, nil
	}
	if restored.Checkpoint.Game != s.rules.Name() {
		return nil, fmt.Errorf("%w: snapshot is %q, solving %q", ErrSnapshotMismatch, restored.Checkpoint.Game, s.rules.Name())
	}
	if restored.Levels == nil {
		restored.Levels = map[int][]game.Position{}
	}
	return restored, nil
}
