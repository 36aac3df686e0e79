package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgo/nemesis/api/internal/model"
	"github.com/forgo/nemesis/api/internal/service"
)

// NewCycleCommand creates the cycle command group.
func NewCycleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run or inspect matching cycles",
	}
	cmd.AddCommand(newCycleRunCommand(rootOpts))
	cmd.AddCommand(newCycleListCommand(rootOpts))
	return cmd
}

func newCycleRunCommand(rootOpts *RootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one matching cycle now",
		Long: `Run one matching cycle over the whole active population and commit it.

The cycle takes the same lock as the server's scheduler. If a cycle is
already running anywhere, this command exits with an error and changes
nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return withEngine(ctx, rootOpts, func(e *Engine) error {
				result, err := e.Matches.RunCycle(ctx, model.TriggerCLI)
				if errors.Is(err, service.ErrConcurrentCycleConflict) {
					return fmt.Errorf("%w; try again once it finishes", err)
				}
				if err != nil {
					return err
				}
				return writeResult(cmd.OutOrStdout(), rootOpts.Format, result, func(w io.Writer) {
					printCycleResult(w, result)
				})
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "give up after this long")
	return cmd
}

func newCycleListCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withEngine(ctx, rootOpts, func(e *Engine) error {
				cycles, err := e.Matches.RecentCycles(ctx, limit)
				if err != nil {
					return err
				}
				return writeResult(cmd.OutOrStdout(), rootOpts.Format, cycles, func(w io.Writer) {
					for _, c := range cycles {
						fmt.Fprintf(w, "%-38s %-9s %-8s started=%s matches=%d skipped=%d\n",
							c.ID, c.Kind, c.Trigger, c.StartedAt.Format(time.RFC3339), c.MatchCount, c.SkippedCount)
					}
				})
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of cycles")
	return cmd
}

func printCycleResult(w io.Writer, r *model.CycleResult) {
	fmt.Fprintf(w, "cycle %s committed: %d matches, %d skipped\n", r.Cycle.ID, len(r.Matches), len(r.Skipped))
	for _, m := range r.Matches {
		fmt.Fprintf(w, "  %s -> %s  score=%d\n", m.UserID, m.EnemyID, m.Score)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  %s skipped (%s)\n", s.UserID, s.Reason)
	}
}
