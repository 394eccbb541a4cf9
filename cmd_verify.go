package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"retro/game"
)

func newVerifyCmd(root *rootOptions) *cobra.Command {
	var (
		playouts int
		seed     uint64
		name     string
		width    int
		height   int
		win      int
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check with random playouts that a ruleset's inverse moves undo its moves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("game") {
				cfg.Game.Name = name
			}
			if cmd.Flags().Changed("width") {
				cfg.Game.Width = width
			}
			if cmd.Flags().Changed("height") {
				cfg.Game.Height = height
			}
			if cmd.Flags().Changed("win") {
				cfg.Game.Win = win
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			board, err := cfg.Board()
			if err != nil {
				return err
			}

			checked, err := game.CheckInverse(board, rand.New(rand.NewSource(seed)), playouts)
			if err != nil {
				log.Error().Err(err).Str("game", board.Name()).Int("checked", checked).Msg("rules are inconsistent")
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d moves checked in %d playouts\n", board.Name(), checked, playouts)
			return nil
		},
	}
	cmd.Flags().IntVar(&playouts, "playouts", 500, "random games to play")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().StringVar(&name, "game", "", "ruleset: tictactoe or connect4")
	cmd.Flags().IntVar(&width, "width", 0, "board width")
	cmd.Flags().IntVar(&height, "height", 0, "board height")
	cmd.Flags().IntVar(&win, "win", 0, "pieces in a row needed to win")
	return cmd
}
