// Package output writes a solved table as sharded CSV files and reads them back.
package output

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"retro/dataset"
	"retro/game"
	"retro/solver"
)

var ErrOutputExists = errors.New("output already exists")

var header = []string{"position", "depth", "kind", "outcome", "remoteness"}

func ShardName(i int) string {
	return fmt.Sprintf("part-%05d.csv", i)
}

// Check reports ErrOutputExists when dir already holds shards and force is
// not set. A missing dir is fine.
func Check(dir string, force bool) error {
	if force {
		return nil
	}
	existing, err := existingShards(dir)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("%w: %d shards in %s", ErrOutputExists, len(existing), dir)
	}
	return nil
}

func existingShards(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "part-*.csv"))
}

// Write repartitions records by position into shard files under dir. Each
// shard is written to a temporary file and renamed into place.
func Write(ctx context.Context, records *dataset.Dataset[solver.Record], dir string, shards int, force bool) error {
	if shards <= 0 {
		return fmt.Errorf("shards must be positive, got %d", shards)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	existing, err := existingShards(dir)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if !force {
			return fmt.Errorf("%w: %d shards in %s", ErrOutputExists, len(existing), dir)
		}
		for _, path := range existing {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove old shard: %w", err)
			}
		}
	}

	parts, err := dataset.PartitionBy(ctx, records, "shard", shards, func(r solver.Record) game.Position {
		return r.Key
	})
	if err != nil {
		return err
	}
	err = dataset.ForeachPartition(ctx, parts, "write", func(ctx context.Context, partition int, items []solver.Record) error {
		return writeShard(filepath.Join(dir, ShardName(partition)), items)
	})
	if err != nil {
		return err
	}
	log.Info().Str("dir", dir).Int("shards", shards).Int("records", parts.Len()).Msg("wrote solved table")
	return nil
}

func writeShard(path string, records []solver.Record) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create shard: %w", err)
	}
	defer os.Remove(tmp)

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write shard header: %w", err)
	}
	for _, r := range records {
		row := []string{
			string(r.Key),
			strconv.Itoa(r.Value.Depth),
			r.Value.Kind.String(),
			r.Value.Outcome.String(),
			strconv.Itoa(r.Value.Remoteness),
		}
		if err := writer.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("failed to write shard row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush shard: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadShard parses one shard written by Write.
func ReadShard(path string) ([]solver.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(header)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", path, err)
	}

	var records []solver.Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		r, err := parseRow(row)
		if err != nil {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func parseRow(row []string) (solver.Record, error) {
	depth, err := strconv.Atoi(row[1])
	if err != nil {
		return solver.Record{}, fmt.Errorf("bad depth: %w", err)
	}
	kind, err := solver.ParseKind(row[2])
	if err != nil {
		return solver.Record{}, err
	}
	outcome, err := game.ParseOutcome(row[3])
	if err != nil {
		return solver.Record{}, err
	}
	remoteness, err := strconv.Atoi(row[4])
	if err != nil {
		return solver.Record{}, fmt.Errorf("bad remoteness: %w", err)
	}
	return solver.Record{
		Key:   game.Position(row[0]),
		Value: solver.Value{Kind: kind, Depth: depth, Outcome: outcome, Remoteness: remoteness},
	}, nil
}

// ReadDir reads every shard in dir. Record order is not meaningful.
func ReadDir(dir string) ([]solver.Record, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "part-*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no shards in %s", dir)
	}
	var records []solver.Record
	for _, path := range paths {
		shard, err := ReadShard(path)
		if err != nil {
			return nil, err
		}
		records = append(records, shard...)
	}
	return records, nil
}
