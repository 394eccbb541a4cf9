package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"retro/game"
	"retro/output"
	"retro/solver"
)

func newInspectCmd() *cobra.Command {
	var position string
	cmd := &cobra.Command{
		Use:   "inspect <dir>",
		Short: "Summarize a solved table, or look up one position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := output.ReadDir(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if position != "" {
				return lookup(out, records, game.Position(position))
			}
			summarize(out, records)
			return nil
		},
	}
	cmd.Flags().StringVar(&position, "position", "", "print the value of this position")
	return cmd
}

func lookup(out io.Writer, records []solver.Record, p game.Position) error {
	i := slices.IndexFunc(records, func(r solver.Record) bool { return r.Key == p })
	if i < 0 {
		return fmt.Errorf("position %q is not in the table", p)
	}
	v := records[i].Value
	fmt.Fprintf(out, "%s %s %s remoteness=%d depth=%d\n", p, v.Kind, v.Outcome, v.Remoteness, v.Depth)
	return nil
}

func summarize(out io.Writer, records []solver.Record) {
	outcomes := map[game.Outcome]int{}
	kinds := map[solver.Kind]int{}
	maxDepth, maxRemoteness := 0, 0
	var initial *solver.Record
	for i, r := range records {
		outcomes[r.Value.Outcome]++
		kinds[r.Value.Kind]++
		maxDepth = max(maxDepth, r.Value.Depth)
		maxRemoteness = max(maxRemoteness, r.Value.Remoteness)
		if r.Value.Depth == 0 {
			initial = &records[i]
		}
	}

	fmt.Fprintf(out, "positions:      %d\n", len(records))
	for _, o := range []game.Outcome{game.Win, game.Lose, game.Tie} {
		fmt.Fprintf(out, "%-15s %d\n", o.String()+":", outcomes[o])
	}
	fmt.Fprintf(out, "terminal:       %d\n", kinds[solver.Terminal])
	fmt.Fprintf(out, "max depth:      %d\n", maxDepth)
	fmt.Fprintf(out, "max remoteness: %d\n", maxRemoteness)
	if initial != nil {
		fmt.Fprintf(out, "initial:        %s in %d\n", initial.Value.Outcome, initial.Value.Remoteness)
	}
}
