// Package store persists solver snapshots in an embedded BadgerDB so an
// interrupted solve can restart from its last committed round.
package store

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

type Config struct {
	// Path is the database directory; ignored when InMemory is set
	Path     string
	InMemory bool
	// SyncWrites makes every commit durable before it returns
	SyncWrites bool
	// Logger receives BadgerDB's own log lines; nil silences them
	Logger *zerolog.Logger
}

func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts zerolog to BadgerDB's Logger interface.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msg(line(format, args))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msg(line(format, args))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msg(line(format, args))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msg(line(format, args))
}

func line(format string, args []interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}

// Open opens the database described by cfg, creating its directory.
// The caller must Close the returned DB.
func Open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With().Str("component", "badger").Logger()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}
