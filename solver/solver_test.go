package solver

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"retro/dataset"
	"retro/game"
	"retro/metrics"
)

func newBoard(t *testing.T, name string, w, h, k int) game.Board {
	b, err := game.New(name, w, h, k)
	require.NoError(t, err)
	return b
}

func solve(t *testing.T, rules game.Rules, env *dataset.Env, options ...Option) *Table {
	table, err := New(rules, env, options...).Solve(context.Background())
	require.NoError(t, err)
	return table
}

// reachable is a plain sequential BFS returning the depth of every position.
func reachable(t *testing.T, rules game.Rules) map[game.Position]int {
	depths := map[game.Position]int{rules.Initial(): 0}
	queue := []game.Position{rules.Initial()}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, m := range rules.LegalMoves(p) {
			child, err := rules.Play(p, m)
			require.NoError(t, err)
			if _, ok := depths[child]; !ok {
				depths[child] = depths[p] + 1
				queue = append(queue, child)
			}
		}
	}
	return depths
}

func TestSolveSmallestBoard(t *testing.T) {
	rules := newBoard(t, game.TicTacToeName, 1, 3, 3)
	table := solve(t, rules, dataset.NewEnv(dataset.WithPartitions(3)))

	require.Equal(t, 13, table.Len())
	initial, ok := table.Get(rules.Initial())
	require.True(t, ok)
	require.Equal(t, SolvedValue(0, game.Tie, 3), initial)

	for _, r := range table.Level(3) {
		require.Equal(t, TerminalValue(3, game.Tie), r.Value)
	}
	for _, r := range table.Level(2) {
		require.Equal(t, SolvedValue(2, game.Tie, 1), r.Value)
	}
}

func TestSolveTicTacToe(t *testing.T) {
	rules := newBoard(t, game.TicTacToeName, 3, 3, 3)
	env := dataset.NewEnv(dataset.WithPartitions(4))
	table := solve(t, rules, env)

	depths := reachable(t, rules)
	require.Equal(t, 5478, len(depths))
	require.Equal(t, len(depths), table.Len())

	initial, ok := table.Get(rules.Initial())
	require.True(t, ok)
	require.Equal(t, SolvedValue(0, game.Tie, 9), initial)

	oracle := rules.(game.DepthOracle)
	for _, r := range table.Records() {
		require.Equal(t, depths[r.Key], r.Value.Depth, "depth of %q", r.Key)
		require.Equal(t, oracle.Depth(r.Key), r.Value.Depth)

		switch r.Value.Kind {
		case Terminal:
			require.Zero(t, r.Value.Remoteness)
			require.Equal(t, rules.Classify(r.Key), r.Value.Outcome)
		case Solved:
			require.Equal(t, game.Undecided, rules.Classify(r.Key))
		default:
			t.Fatalf("unexpected kind %s for %q", r.Value.Kind, r.Key)
		}
	}
}

// Every solved value equals the combine rule applied to its children as
// stored in the table.
func TestMinimaxConsistency(t *testing.T) {
	for _, rules := range []game.Board{
		newBoard(t, game.TicTacToeName, 3, 3, 3),
		newBoard(t, game.ConnectName, 3, 3, 3),
		newBoard(t, game.ConnectName, 4, 3, 3),
	} {
		t.Run(rules.Name(), func(t *testing.T) {
			table := solve(t, rules, dataset.NewEnv())
			require.Equal(t, len(reachable(t, rules)), table.Len())

			for _, r := range table.Records() {
				if r.Value.Kind != Solved {
					continue
				}
				var children []Value
				for _, m := range rules.LegalMoves(r.Key) {
					child, err := rules.Play(r.Key, m)
					require.NoError(t, err)
					v, ok := table.Get(child)
					require.True(t, ok, "child %q of %q missing", child, r.Key)
					children = append(children, v.Parent())
				}
				want, err := Combine(children...)
				require.NoError(t, err)
				require.Equal(t, want, r.Value, "position %q", r.Key)
			}
		})
	}
}

func TestDeterminism(t *testing.T) {
	rules := newBoard(t, game.ConnectName, 4, 3, 3)
	want := solve(t, rules, dataset.NewEnv(dataset.WithPartitions(1), dataset.WithWorkers(1))).Records()

	for _, tt := range []struct {
		partitions int
		workers    int
		strategy   Strategy
	}{
		{partitions: 1, workers: 1, strategy: GroupStrategy},
		{partitions: 7, workers: 3, strategy: ReduceStrategy},
		{partitions: 16, workers: 8, strategy: GroupStrategy},
	} {
		t.Run(fmt.Sprintf("%s-%d", tt.strategy, tt.partitions), func(t *testing.T) {
			env := dataset.NewEnv(dataset.WithPartitions(tt.partitions), dataset.WithWorkers(tt.workers))
			got := solve(t, rules, env, WithStrategy(tt.strategy)).Records()
			require.Equal(t, want, got)
		})
	}
}

func TestMirrorSymmetry(t *testing.T) {
	for _, rules := range []game.Board{
		newBoard(t, game.TicTacToeName, 3, 3, 3),
		newBoard(t, game.ConnectName, 4, 3, 3),
	} {
		table := solve(t, rules, dataset.NewEnv())
		for _, r := range table.Records() {
			mirrored, ok := table.Get(rules.Mirror(r.Key))
			require.True(t, ok)
			require.Equal(t, r.Value, mirrored, "%q and its mirror disagree", r.Key)
		}
	}
}

func TestSolveWithFaults(t *testing.T) {
	rules := newBoard(t, game.TicTacToeName, 3, 3, 3)
	want := solve(t, rules, dataset.NewEnv()).Records()

	var mu sync.Mutex
	failed := map[string]int{}
	env := dataset.NewEnv(dataset.WithAttempts(3), dataset.WithFaults(func(stage string, partition, attempt int) error {
		if partition%3 != 0 || attempt > 2 {
			return nil
		}
		mu.Lock()
		failed[stage]++
		mu.Unlock()
		return errors.New("worker lost")
	}))
	got := solve(t, rules, env, WithStrategy(GroupStrategy)).Records()
	require.Equal(t, want, got)
	require.NotEmpty(t, failed)
}

func TestSolveRetriesExhausted(t *testing.T) {
	rules := newBoard(t, game.TicTacToeName, 3, 3, 3)
	env := dataset.NewEnv(dataset.WithAttempts(2), dataset.WithFaults(func(stage string, partition, attempt int) error {
		if stage == "expand-4" {
			return errors.New("disk full")
		}
		return nil
	}))
	_, err := New(rules, env).Solve(context.Background())
	require.ErrorIs(t, err, dataset.ErrRetriesExhausted)

	var taskErr *dataset.TaskError
	require.ErrorAs(t, err, &taskErr)
	require.Equal(t, "expand-4", taskErr.Stage)
}

func TestSolveCancelled(t *testing.T) {
	rules := newBoard(t, game.TicTacToeName, 3, 3, 3)
	ctx, cancel := context.WithCancel(context.Background())
	snapshots := &memorySnapshots{}

	env := dataset.NewEnv(dataset.WithFaults(func(stage string, partition, attempt int) error {
		if stage == "unplay-6" {
			cancel()
			return ctx.Err()
		}
		return nil
	}))
	table, err := New(rules, env, WithSnapshots(snapshots)).Solve(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, table)

	// rounds 9..7 were committed, round 6 was not
	restored, err := snapshots.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 6, restored.Checkpoint.Level)
	for _, r := range restored.Records {
		require.GreaterOrEqual(t, r.Value.Depth, 5)
		if r.Value.Depth == 5 {
			require.Equal(t, Terminal, r.Value.Kind)
		}
	}
}

func TestSolveResume(t *testing.T) {
	rules := newBoard(t, game.ConnectName, 4, 3, 3)
	want := solve(t, rules, dataset.NewEnv()).Records()

	snapshots := &memorySnapshots{}
	crash := errors.New("node crashed")
	env := dataset.NewEnv(dataset.WithFaults(func(stage string, partition, attempt int) error {
		if stage == "restrict-5" {
			return dataset.Fatal(crash)
		}
		return nil
	}))
	first := New(rules, env, WithSnapshots(snapshots))
	_, err := first.Solve(context.Background())
	require.ErrorIs(t, err, crash)

	collector := metrics.NewCollector()
	second := New(rules, dataset.NewEnv(), WithSnapshots(snapshots), WithMetrics(collector))
	table, err := second.Solve(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, table.Records())

	// only the remaining backward rounds ran
	rounds := collector.Rounds()
	require.Len(t, rounds, 5)
	for i, round := range rounds {
		require.Equal(t, metrics.Backward, round.Phase)
		require.Equal(t, 5-i, round.Level)
	}

	restored, err := snapshots.Load(context.Background())
	require.NoError(t, err)
	require.Zero(t, restored.Checkpoint.Level)
	require.Equal(t, first.RunID(), restored.Checkpoint.RunID)
}

func TestSnapshotMismatch(t *testing.T) {
	snapshots := &memorySnapshots{}
	solve(t, newBoard(t, game.TicTacToeName, 1, 3, 3), dataset.NewEnv(), WithSnapshots(snapshots))

	_, err := New(newBoard(t, game.TicTacToeName, 3, 1, 3), dataset.NewEnv(), WithSnapshots(snapshots)).Solve(context.Background())
	require.ErrorIs(t, err, ErrSnapshotMismatch)
}

func TestSolveMetrics(t *testing.T) {
	rules := newBoard(t, game.TicTacToeName, 1, 3, 3)
	collector := metrics.NewCollector()
	solve(t, rules, dataset.NewEnv(), WithMetrics(collector))

	rounds := collector.Rounds()
	require.Len(t, rounds, 7) // depths 0..3 forward, 3..1 backward
	require.Equal(t, metrics.RoundMetric{Phase: metrics.Forward, Level: 3, Input: 3, Terminals: 3, TableSize: 3}, withoutDuration(rounds[3]))
	require.Equal(t, metrics.RoundMetric{Phase: metrics.Backward, Level: 1, Input: 3, Finalized: 1, TableSize: 13}, withoutDuration(rounds[6]))
}

func withoutDuration(m metrics.RoundMetric) metrics.RoundMetric {
	m.Duration = 0
	return m
}

func TestInitialTerminal(t *testing.T) {
	rules := &graph{
		initial:  "root",
		outcomes: map[game.Position]game.Outcome{"root": game.Lose},
	}
	table := solve(t, rules, dataset.NewEnv())
	require.Equal(t, 1, table.Len())
	v, _ := table.Get("root")
	require.Equal(t, TerminalValue(0, game.Lose), v)
}

func TestGraphGame(t *testing.T) {
	// every move from a hands the opponent a win; c is won by moving to d
	rules := &graph{
		initial: "a",
		edges: map[game.Position][]game.Position{
			"a": {"b", "c"},
			"c": {"d", "e"},
		},
		outcomes: map[game.Position]game.Outcome{
			"b": game.Win,
			"d": game.Lose,
			"e": game.Tie,
		},
	}
	table := solve(t, rules, dataset.NewEnv())

	c, _ := table.Get("c")
	require.Equal(t, SolvedValue(1, game.Win, 1), c)
	a, _ := table.Get("a")
	require.Equal(t, SolvedValue(0, game.Lose, 2), a)
}

func TestDepthInconsistency(t *testing.T) {
	rules := &graph{
		initial: "a",
		edges: map[game.Position][]game.Position{
			"a": {"b", "c"},
			"b": {"c"},
		},
		outcomes: map[game.Position]game.Outcome{"c": game.Lose},
	}
	var retries atomic.Int32
	env := dataset.NewEnv(dataset.WithAttempts(5), dataset.WithFaults(func(stage string, partition, attempt int) error {
		if attempt > 1 {
			retries.Add(1)
		}
		return nil
	}))
	_, err := New(rules, env).Solve(context.Background())
	require.ErrorIs(t, err, ErrDepthInconsistency)
	require.NotErrorIs(t, err, dataset.ErrRetriesExhausted)
	require.Zero(t, retries.Load(), "fatal errors must not be retried")
}

func TestIncompleteChildSet(t *testing.T) {
	rules := &graph{
		initial: "a",
		edges: map[game.Position][]game.Position{
			"a": {"b", "c"},
		},
		outcomes: map[game.Position]game.Outcome{"b": game.Lose, "c": game.Lose},
		parents: map[game.Position][]game.Position{
			"b": {"a"},
			"c": {},
		},
	}
	for _, strategy := range []Strategy{ReduceStrategy, GroupStrategy} {
		_, err := New(rules, dataset.NewEnv(), WithStrategy(strategy)).Solve(context.Background())
		require.ErrorIs(t, err, ErrIncompleteChildSet, strategy.String())
	}
}

func TestRulesViolation(t *testing.T) {
	rules := &graph{
		initial: "a",
		edges: map[game.Position][]game.Position{
			"a": {"b", "broken"},
		},
		outcomes: map[game.Position]game.Outcome{"b": game.Lose},
	}
	_, err := New(rules, dataset.NewEnv()).Solve(context.Background())
	require.ErrorIs(t, err, game.ErrRulesViolation)
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{ReduceStrategy, GroupStrategy} {
		parsed, err := ParseStrategy(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}
	_, err := ParseStrategy("scatter")
	require.Error(t, err)
}

// graph is a game given as an explicit move graph. Positions named "broken"
// cannot be played into.
type graph struct {
	initial  game.Position
	edges    map[game.Position][]game.Position
	outcomes map[game.Position]game.Outcome
	// parents overrides the inverse of edges when set
	parents map[game.Position][]game.Position
}

func (g *graph) Name() string {
	return "graph-" + string(g.initial)
}

func (g *graph) Initial() game.Position {
	return g.initial
}

func (g *graph) Classify(p game.Position) game.Outcome {
	return g.outcomes[p]
}

func (g *graph) LegalMoves(p game.Position) []game.Move {
	var moves []game.Move
	for i := range g.edges[p] {
		moves = append(moves, game.Move(i))
	}
	return moves
}

func (g *graph) Play(p game.Position, m game.Move) (game.Position, error) {
	children := g.edges[p]
	if int(m) >= len(children) || children[m] == "broken" {
		return "", fmt.Errorf("%w: move %d from %q", game.ErrRulesViolation, m, p)
	}
	return children[m], nil
}

func (g *graph) Unplay(p game.Position) ([]game.Position, error) {
	if g.parents != nil {
		return g.parents[p], nil
	}
	var out []game.Position
	for parent, children := range g.edges {
		for _, c := range children {
			if c == p {
				out = append(out, parent)
			}
		}
	}
	return out, nil
}

// memorySnapshots keeps snapshots in process.
type memorySnapshots struct {
	mu      sync.Mutex
	cp      *Checkpoint
	records []Record
	levels  map[int][]game.Position
}

func (m *memorySnapshots) SaveForward(ctx context.Context, cp Checkpoint, terminals []Record, levels map[int][]game.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]Record(nil), terminals...)
	m.levels = maps.Clone(levels)
	m.cp = &cp
	return nil
}

func (m *memorySnapshots) SaveRound(ctx context.Context, cp Checkpoint, finalized []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, finalized...)
	m.cp = &cp
	return nil
}

func (m *memorySnapshots) Load(ctx context.Context) (*Restored, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cp == nil {
		return nil, nil
	}
	levels := map[int][]game.Position{}
	for d, positions := range m.levels {
		if d < m.cp.Level {
			levels[d] = positions
		}
	}
	return &Restored{
		Checkpoint: *m.cp,
		Records:    append([]Record(nil), m.records...),
		Levels:     levels,
	}, nil
}
