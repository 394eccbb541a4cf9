package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"retro/game"
	"retro/solver"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "retro.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	b, err := cfg.Board()
	require.NoError(t, err)
	require.Equal(t, "connect4-4x4-4", b.Name())

	env := cfg.Env()
	require.Equal(t, 8, env.Partitions())
	require.Equal(t, runtime.GOMAXPROCS(0), env.Workers())
	require.Equal(t, 3, env.Attempts())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
game:
  name: tictactoe
  width: 3
  height: 3
  win: 3
engine:
  partitions: 16
  workers: 2
  strategy: group
output:
  dir: /tmp/solved
  shards: 8
snapshot:
  dir: /tmp/snap
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, GameConfig{Name: game.TicTacToeName, Width: 3, Height: 3, Win: 3}, cfg.Game)
	require.Equal(t, 16, cfg.Engine.Partitions)
	require.Equal(t, 3, cfg.Engine.Attempts, "unset fields keep defaults")
	require.Equal(t, solver.GroupStrategy, cfg.Strategy())
	require.Equal(t, "/tmp/solved", cfg.Output.Dir)
	require.Equal(t, 8, cfg.Output.Shards)
	require.Equal(t, "/tmp/snap", cfg.Snapshot.Dir)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Log.Pretty)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RETRO_PARTITIONS", "5")
	t.Setenv("RETRO_GAME", "tictactoe")
	t.Setenv("RETRO_WORKERS", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Engine.Partitions)
	require.Equal(t, game.TicTacToeName, cfg.Game.Name)
	require.Zero(t, cfg.Engine.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"unknown game", func(c *Config) { c.Game.Name = "chess" }, game.ErrUnknownGame},
		{"bad geometry", func(c *Config) { c.Game.Win = 9 }, game.ErrInvalidGeometry},
		{"partitions", func(c *Config) { c.Engine.Partitions = 0 }, nil},
		{"attempts", func(c *Config) { c.Engine.Attempts = -1 }, nil},
		{"workers", func(c *Config) { c.Engine.Workers = -2 }, nil},
		{"strategy", func(c *Config) { c.Engine.Strategy = "map" }, nil},
		{"shards", func(c *Config) { c.Output.Shards = 0 }, nil},
		{"output dir", func(c *Config) { c.Output.Dir = "" }, nil},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "game: [not, a, map]"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "engine:\n  attempts: 0\n"))
	require.ErrorContains(t, err, "engine.attempts")
}

func TestReadSkipsValidation(t *testing.T) {
	path := writeConfig(t, "game: {name: chess}\n")

	cfg, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, "chess", cfg.Game.Name)

	_, err = Load(path)
	require.ErrorIs(t, err, game.ErrUnknownGame)

	cfg.Game.Name = game.TicTacToeName
	require.NoError(t, cfg.Validate())
}
