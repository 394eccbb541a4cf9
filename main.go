package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"retro/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "retro",
		Short: "Strongly solve small two-player games by retrograde analysis",
		Long: `retro enumerates every reachable position of a game breadth first,
then walks back from the terminal positions level by level to compute the
value and remoteness of each one.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides the config file")

	root.AddCommand(
		newSolveCmd(opts),
		newInspectCmd(),
		newVerifyCmd(opts),
	)
	return root
}

// load reads the config and sets up the global logger from it. Commands
// apply their own flags and then call Validate.
func (o *rootOptions) load(stderr io.Writer) (config.Config, error) {
	cfg, err := config.Read(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := setupLogging(cfg.Log, stderr); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setupLogging(cfg config.LogConfig, out io.Writer) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly})
	} else {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	}
	return nil
}
