package metrics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector()

	c.Start(Forward, 2, 10)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.AddTerminals(1)
			c.AddFinalized(2)
		}()
	}
	wg.Wait()
	c.AddDropped(3)
	round := c.Complete(42)

	require.Equal(t, Forward, round.Phase)
	require.Equal(t, 2, round.Level)
	require.Equal(t, 10, round.Input)
	require.Equal(t, 4, round.Terminals)
	require.Equal(t, 8, round.Finalized)
	require.Equal(t, 3, round.Dropped)
	require.Equal(t, 42, round.TableSize)

	// counters reset between rounds
	c.Start(Backward, 1, 5)
	second := c.Complete(50)
	require.Zero(t, second.Terminals)
	require.Zero(t, second.Finalized)

	rounds := c.Rounds()
	require.Len(t, rounds, 2)
	require.Equal(t, Backward, rounds[1].Phase)
}

func TestDummyCollector(t *testing.T) {
	c := NewDummyCollector()
	c.Start(Forward, 0, 1)
	c.AddTerminals(1)
	require.Equal(t, RoundMetric{}, c.Complete(1))
	require.Empty(t, c.Rounds())
}

func TestWriteRounds(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	err = w.WriteRounds([]RoundRecord{
		{Run: "r1", Game: "tictactoe-3x3-3", RoundMetric: RoundMetric{Phase: Forward, Level: 0, Input: 1, TableSize: 0, Duration: time.Millisecond}},
		{Run: "r1", Game: "tictactoe-3x3-3", RoundMetric: RoundMetric{Phase: Backward, Level: 9, Input: 16, Finalized: 4, TableSize: 20, Duration: 2 * time.Second}},
	})
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(w.Dir(), "rounds.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "phase", rows[0][2])
	require.Equal(t, []string{"r1", "tictactoe-3x3-3", "backward", "9", "16", "0", "4", "0", "20", "2s"}, rows[2])
}
