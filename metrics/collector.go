package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	Forward  = "forward"
	Backward = "backward"
)

type RoundMetric struct {
	Phase     string // Forward or Backward
	Level     int    // Depth being expanded or finalized
	Input     int    // Frontier or live set size
	Terminals int
	Finalized int
	Dropped   int // Predecessors outside the reachable level index
	TableSize int
	Duration  time.Duration
}

// Collector accumulates the counters of one round at a time.
type Collector interface {
	Start(phase string, level, input int)
	AddTerminals(n int)
	AddFinalized(n int)
	AddDropped(n int)
	Complete(tableSize int) RoundMetric
	Rounds() []RoundMetric
}

type collector struct {
	phase     string
	level     int
	input     int
	startTime time.Time
	terminals atomic.Int64
	finalized atomic.Int64
	dropped   atomic.Int64

	mu     sync.Mutex
	rounds []RoundMetric
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) Start(phase string, level, input int) {
	m.startTime = time.Now()
	m.phase = phase
	m.level = level
	m.input = input
	m.terminals.Store(0)
	m.finalized.Store(0)
	m.dropped.Store(0)
}

func (m *collector) AddTerminals(n int) {
	m.terminals.Add(int64(n))
}

func (m *collector) AddFinalized(n int) {
	m.finalized.Add(int64(n))
}

func (m *collector) AddDropped(n int) {
	m.dropped.Add(int64(n))
}

func (m *collector) Complete(tableSize int) RoundMetric {
	round := RoundMetric{
		Phase:     m.phase,
		Level:     m.level,
		Input:     m.input,
		Terminals: int(m.terminals.Load()),
		Finalized: int(m.finalized.Load()),
		Dropped:   int(m.dropped.Load()),
		TableSize: tableSize,
		Duration:  time.Since(m.startTime),
	}
	observe(round)

	m.mu.Lock()
	m.rounds = append(m.rounds, round)
	m.mu.Unlock()
	return round
}

func (m *collector) Rounds() []RoundMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RoundMetric, len(m.rounds))
	copy(out, m.rounds)
	return out
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(phase string, level, input int) {}
func (m *dummyCollector) AddTerminals(n int)                   {}
func (m *dummyCollector) AddFinalized(n int)                   {}
func (m *dummyCollector) AddDropped(n int)                     {}
func (m *dummyCollector) Complete(tableSize int) RoundMetric   { return RoundMetric{} }
func (m *dummyCollector) Rounds() []RoundMetric                { return nil }
