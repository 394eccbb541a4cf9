// Package config loads the solver configuration from YAML, with defaults
// from meta and overrides from RETRO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"retro/dataset"
	"retro/game"
	"retro/meta"
	"retro/solver"
)

type Config struct {
	Game     GameConfig     `yaml:"game"`
	Engine   EngineConfig   `yaml:"engine"`
	Output   OutputConfig   `yaml:"output"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type GameConfig struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Win    int    `yaml:"win"`
}

type EngineConfig struct {
	Partitions int    `yaml:"partitions"`
	Workers    int    `yaml:"workers"` // 0 means GOMAXPROCS
	Attempts   int    `yaml:"attempts"`
	Strategy   string `yaml:"strategy"`
}

type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Shards int    `yaml:"shards"`
	Force  bool   `yaml:"force"`
}

type SnapshotConfig struct {
	Dir string `yaml:"dir"` // empty disables snapshots
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // listen address for /metrics, empty disables
	Dir  string `yaml:"dir"`  // directory for rounds.csv, empty disables
}

func Default() Config {
	return Config{
		Game: GameConfig{
			Name:   meta.GAME,
			Width:  meta.WIDTH,
			Height: meta.HEIGHT,
			Win:    meta.WIN_LENGTH,
		},
		Engine: EngineConfig{
			Partitions: meta.PARTITIONS,
			Attempts:   meta.ATTEMPTS,
			Strategy:   solver.ReduceStrategy.String(),
		},
		Output: OutputConfig{
			Dir:    meta.OUTPUT_DIR,
			Shards: meta.SHARDS,
		},
		Log: LogConfig{
			Level:  zerolog.InfoLevel.String(),
			Pretty: true,
		},
	}
}

// Load is Read followed by Validate.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Read merges path over the defaults and applies environment overrides
// without validating, so callers can lay flags on top first. An empty path
// skips the file.
func Read(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RETRO_GAME"); v != "" {
		cfg.Game.Name = v
	}
	envInt("RETRO_PARTITIONS", &cfg.Engine.Partitions)
	envInt("RETRO_WORKERS", &cfg.Engine.Workers)
	envInt("RETRO_ATTEMPTS", &cfg.Engine.Attempts)
	if v := os.Getenv("RETRO_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RETRO_SNAPSHOT_DIR"); v != "" {
		cfg.Snapshot.Dir = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func (c Config) Validate() error {
	var errs []error
	if _, err := c.Board(); err != nil {
		errs = append(errs, err)
	}
	if c.Engine.Partitions <= 0 {
		errs = append(errs, fmt.Errorf("engine.partitions must be positive, got %d", c.Engine.Partitions))
	}
	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers must not be negative, got %d", c.Engine.Workers))
	}
	if c.Engine.Attempts <= 0 {
		errs = append(errs, fmt.Errorf("engine.attempts must be positive, got %d", c.Engine.Attempts))
	}
	if _, err := solver.ParseStrategy(c.Engine.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("engine.strategy: %w", err))
	}
	if c.Output.Shards <= 0 {
		errs = append(errs, fmt.Errorf("output.shards must be positive, got %d", c.Output.Shards))
	}
	if c.Output.Dir == "" {
		errs = append(errs, errors.New("output.dir is required"))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// Board builds the configured ruleset.
func (c Config) Board() (game.Board, error) {
	return game.New(c.Game.Name, c.Game.Width, c.Game.Height, c.Game.Win)
}

// Strategy returns the parsed combine strategy; call after Validate.
func (c Config) Strategy() solver.Strategy {
	s, _ := solver.ParseStrategy(c.Engine.Strategy)
	return s
}

func (c Config) Env(options ...dataset.Option) *dataset.Env {
	base := []dataset.Option{
		dataset.WithPartitions(c.Engine.Partitions),
		dataset.WithWorkers(c.Engine.Workers),
		dataset.WithAttempts(c.Engine.Attempts),
	}
	return dataset.NewEnv(append(base, options...)...)
}
