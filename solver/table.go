package solver

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"retro/dataset"
	"retro/game"
)

// Table is the solved set: one final value per position, never revised.
// Reads are safe from any goroutine; Union must not race with other writers.
type Table struct {
	mu       sync.RWMutex
	entries  map[game.Position]Value
	byDepth  map[int][]game.Position
	maxDepth int
}

func NewTable() *Table {
	return &Table{
		entries: map[game.Position]Value{},
		byDepth: map[int][]game.Position{},
	}
}

// Union adds records whose position is not yet present and returns how many
// were added. Re-adding a position at the same depth is a no-op. Nothing is
// written when any record is rejected.
func (t *Table) Union(records []Record) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fresh := make(map[game.Position]Value, len(records))
	order := make([]game.Position, 0, len(records))
	for _, r := range records {
		if !r.Value.IsFinal() {
			return 0, fmt.Errorf("cannot store %s value for %q", r.Value.Kind, r.Key)
		}
		existing, ok := t.entries[r.Key]
		if !ok {
			existing, ok = fresh[r.Key]
		}
		if ok {
			if existing.Depth != r.Value.Depth {
				return 0, fmt.Errorf("%w: %q stored at depth %d, offered at %d", ErrDepthInconsistency, r.Key, existing.Depth, r.Value.Depth)
			}
			continue
		}
		fresh[r.Key] = r.Value
		order = append(order, r.Key)
	}

	for _, p := range order {
		v := fresh[p]
		t.entries[p] = v
		t.byDepth[v.Depth] = append(t.byDepth[v.Depth], p)
		t.maxDepth = max(t.maxDepth, v.Depth)
	}
	return len(order), nil
}

func (t *Table) Get(p game.Position) (Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[p]
	return v, ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *Table) MaxDepth() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.maxDepth
}

// Records returns every entry sorted by position.
func (t *Table) Records() []Record {
	t.mu.RLock()
	out := make([]Record, 0, len(t.entries))
	for p, v := range t.entries {
		out = append(out, Record{Key: p, Value: v})
	}
	t.mu.RUnlock()
	sortRecords(out)
	return out
}

// Level returns the entries at one depth sorted by position.
func (t *Table) Level(depth int) []Record {
	t.mu.RLock()
	positions := t.byDepth[depth]
	out := make([]Record, 0, len(positions))
	for _, p := range positions {
		out = append(out, Record{Key: p, Value: t.entries[p]})
	}
	t.mu.RUnlock()
	sortRecords(out)
	return out
}

func (t *Table) Dataset(env *dataset.Env) *dataset.Dataset[Record] {
	return dataset.Parallelize(env, t.Records())
}

func sortRecords(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		return strings.Compare(string(a.Key), string(b.Key))
	})
}
