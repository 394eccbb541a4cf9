package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type RoundRecord struct {
	Run  string // Solver run ID
	Game string // Rules name
	RoundMetric
}

type Writer struct {
	baseDir string
}

// NewWriter creates a subfolder of dir named by the current timestamp.
func NewWriter(dir string) (*Writer, error) {
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	baseDir := filepath.Join(dir, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		baseDir: baseDir,
	}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) WriteRounds(records []RoundRecord) error {
	// Create a file
	path := filepath.Join(w.baseDir, "rounds.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create rounds file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)

	// Write header
	header := []string{"run", "game", "phase", "level", "input", "terminals", "finalized", "dropped", "table_size", "duration"}
	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write rounds header: %w", err)
	}

	// Write each row
	for _, record := range records {
		row := []string{
			record.Run,
			record.Game,
			record.Phase,
			strconv.Itoa(record.Level),
			strconv.Itoa(record.Input),
			strconv.Itoa(record.Terminals),
			strconv.Itoa(record.Finalized),
			strconv.Itoa(record.Dropped),
			strconv.Itoa(record.TableSize),
			record.Duration.String(),
		}
		err = writer.Write(row)
		if err != nil {
			return fmt.Errorf("failed to write round row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush rounds: %w", err)
	}
	return nil
}
