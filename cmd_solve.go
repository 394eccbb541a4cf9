package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"retro/config"
	"retro/metrics"
	"retro/output"
	"retro/solver"
	"retro/store"
)

type solveFlags struct {
	game        string
	width       int
	height      int
	win         int
	partitions  int
	workers     int
	attempts    int
	strategy    string
	output      string
	shards      int
	force       bool
	snapshot    string
	metricsAddr string
	metricsDir  string
}

func newSolveCmd(root *rootOptions) *cobra.Command {
	f := &solveFlags{}
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a game and write the solved table as CSV shards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSolve(ctx, cmd, cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.game, "game", "", "ruleset: tictactoe or connect4")
	fs.IntVar(&f.width, "width", 0, "board width")
	fs.IntVar(&f.height, "height", 0, "board height")
	fs.IntVar(&f.win, "win", 0, "pieces in a row needed to win")
	fs.IntVar(&f.partitions, "partitions", 0, "partitions per dataset")
	fs.IntVar(&f.workers, "workers", 0, "concurrent partition tasks")
	fs.IntVar(&f.attempts, "attempts", 0, "attempts per partition task")
	fs.StringVar(&f.strategy, "strategy", "", "combine strategy: reduce or group")
	fs.StringVar(&f.output, "output", "", "output directory")
	fs.IntVar(&f.shards, "shards", 0, "number of output shards")
	fs.BoolVar(&f.force, "force", false, "replace existing output shards")
	fs.StringVar(&f.snapshot, "snapshot", "", "snapshot directory for resuming interrupted solves")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.StringVar(&f.metricsDir, "metrics-dir", "", "write per-round metrics CSV under this directory")
	return cmd
}

// apply copies every flag the user set over the loaded config.
func (f *solveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("game") {
		cfg.Game.Name = f.game
	}
	if changed("width") {
		cfg.Game.Width = f.width
	}
	if changed("height") {
		cfg.Game.Height = f.height
	}
	if changed("win") {
		cfg.Game.Win = f.win
	}
	if changed("partitions") {
		cfg.Engine.Partitions = f.partitions
	}
	if changed("workers") {
		cfg.Engine.Workers = f.workers
	}
	if changed("attempts") {
		cfg.Engine.Attempts = f.attempts
	}
	if changed("strategy") {
		cfg.Engine.Strategy = f.strategy
	}
	if changed("output") {
		cfg.Output.Dir = f.output
	}
	if changed("shards") {
		cfg.Output.Shards = f.shards
	}
	if changed("force") {
		cfg.Output.Force = f.force
	}
	if changed("snapshot") {
		cfg.Snapshot.Dir = f.snapshot
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}
	if changed("metrics-dir") {
		cfg.Metrics.Dir = f.metricsDir
	}
}

func runSolve(ctx context.Context, cmd *cobra.Command, cfg config.Config) error {
	board, err := cfg.Board()
	if err != nil {
		return err
	}
	if err := output.Check(cfg.Output.Dir, cfg.Output.Force); err != nil {
		return err
	}
	env := cfg.Env()
	collector := metrics.NewCollector()
	runID := uuid.NewString()

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	options := []solver.Option{
		solver.WithStrategy(cfg.Strategy()),
		solver.WithMetrics(collector),
		solver.WithRunID(runID),
	}
	if cfg.Snapshot.Dir != "" {
		storeCfg := store.DefaultConfig(cfg.Snapshot.Dir)
		storeCfg.Logger = &log.Logger
		snapshots, err := store.OpenSnapshots(storeCfg)
		if err != nil {
			return err
		}
		defer snapshots.Close()
		options = append(options, solver.WithSnapshots(snapshots))
	}

	log.Info().
		Str("run", runID).
		Str("game", board.Name()).
		Int("partitions", env.Partitions()).
		Int("workers", env.Workers()).
		Str("strategy", cfg.Engine.Strategy).
		Msg("solving")

	table, err := solver.New(board, env, options...).Solve(ctx)
	if err != nil {
		return err
	}
	if err := output.Write(ctx, table.Dataset(env), cfg.Output.Dir, cfg.Output.Shards, cfg.Output.Force); err != nil {
		return err
	}
	if cfg.Metrics.Dir != "" {
		if err := writeRounds(cfg.Metrics.Dir, runID, board.Name(), collector.Rounds()); err != nil {
			return err
		}
	}

	initial, _ := table.Get(board.Initial())
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s in %d moves, %d positions, written to %s\n",
		board.Name(), initial.Outcome, initial.Remoteness, table.Len(), cfg.Output.Dir)
	return nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}

func writeRounds(dir, runID, game string, rounds []metrics.RoundMetric) error {
	writer, err := metrics.NewWriter(dir)
	if err != nil {
		return err
	}
	records := make([]metrics.RoundRecord, 0, len(rounds))
	for _, round := range rounds {
		records = append(records, metrics.RoundRecord{Run: runID, Game: game, RoundMetric: round})
	}
	if err := writer.WriteRounds(records); err != nil {
		return err
	}
	log.Info().Str("dir", writer.Dir()).Int("rounds", len(records)).Msg("wrote round metrics")
	return nil
}
