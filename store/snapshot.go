package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"retro/game"
	"retro/solver"
)

// Key layout:
//
//	t/<position>               table entry, value is solver.Value binary
//	l/<depth uint32><position> reachable level index, empty value
//	m/checkpoint               JSON checkpoint, always written last
var (
	tablePrefix   = []byte("t/")
	levelPrefix   = []byte("l/")
	checkpointKey = []byte("m/checkpoint")
)

// Snapshots implements solver.Snapshotter on top of a BadgerDB.
type Snapshots struct {
	db    *badger.DB
	owned bool
}

var _ solver.Snapshotter = (*Snapshots)(nil)

func NewSnapshots(db *badger.DB) *Snapshots {
	return &Snapshots{db: db}
}

// OpenSnapshots opens a database for cfg that is closed with the Snapshots.
func OpenSnapshots(cfg Config) (*Snapshots, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Snapshots{db: db, owned: true}, nil
}

func (s *Snapshots) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func tableKey(p game.Position) []byte {
	return append(append([]byte{}, tablePrefix...), p...)
}

func levelKey(depth int, p game.Position) []byte {
	key := levelDepthPrefix(depth)
	return append(key, p...)
}

func levelDepthPrefix(depth int) []byte {
	key := append([]byte{}, levelPrefix...)
	return binary.BigEndian.AppendUint32(key, uint32(depth))
}

// SaveForward replaces whatever was stored with the result of a forward pass.
func (s *Snapshots) SaveForward(ctx context.Context, cp solver.Checkpoint, terminals []solver.Record, levels map[int][]game.Position) error {
	if err := s.deletePrefix(ctx, checkpointKey, tablePrefix, levelPrefix); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	if err := s.writeRecords(ctx, terminals); err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for depth, positions := range levels {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, p := range positions {
			if err := wb.Set(levelKey(depth, p), nil); err != nil {
				return fmt.Errorf("failed to write level %d: %w", depth, err)
			}
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush levels: %w", err)
	}

	return s.writeCheckpoint(cp)
}

// SaveRound stores the positions finalized by one backward round, then the
// checkpoint, then drops the level index entries the round consumed.
func (s *Snapshots) SaveRound(ctx context.Context, cp solver.Checkpoint, finalized []solver.Record) error {
	if err := s.writeRecords(ctx, finalized); err != nil {
		return err
	}
	if err := s.writeCheckpoint(cp); err != nil {
		return err
	}
	if err := s.deletePrefix(ctx, levelDepthPrefix(cp.Level)); err != nil {
		log.Warn().Err(err).Int("level", cp.Level).Msg("failed to drop consumed level index")
	}
	return nil
}

func (s *Snapshots) writeRecords(ctx context.Context, records []solver.Record) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, r := range records {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		data, err := r.Value.MarshalBinary()
		if err != nil {
			return err
		}
		if err := wb.Set(tableKey(r.Key), data); err != nil {
			return fmt.Errorf("failed to write %q: %w", r.Key, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush records: %w", err)
	}
	return nil
}

func (s *Snapshots) deletePrefix(ctx context.Context, prefixes ...[]byte) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for _, prefix := range prefixes {
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (s *Snapshots) writeCheckpoint(cp solver.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkpointKey, data)
	})
}

// Checkpoint returns the stored checkpoint, or nil when there is none.
func (s *Snapshots) Checkpoint() (*solver.Checkpoint, error) {
	var cp *solver.Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checkpointKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			cp = &solver.Checkpoint{}
			return json.Unmarshal(val, cp)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return cp, nil
}

func (s *Snapshots) Load(ctx context.Context) (*solver.Restored, error) {
	cp, err := s.Checkpoint()
	if err != nil || cp == nil {
		return nil, err
	}
	restored := &solver.Restored{Checkpoint: *cp, Levels: map[int][]game.Position{}}

	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(tablePrefix); it.ValidForPrefix(tablePrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			p := game.Position(item.Key()[len(tablePrefix):])
			var v solver.Value
			if err := item.Value(v.UnmarshalBinary); err != nil {
				return fmt.Errorf("position %q: %w", p, err)
			}
			restored.Records = append(restored.Records, solver.Record{Key: p, Value: v})
		}

		for it.Seek(levelPrefix); it.ValidForPrefix(levelPrefix); it.Next() {
			key := it.Item().Key()[len(levelPrefix):]
			depth := int(binary.BigEndian.Uint32(key[:4]))
			if depth >= cp.Level {
				continue
			}
			restored.Levels[depth] = append(restored.Levels[depth], game.Position(key[4:]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return restored, nil
}
