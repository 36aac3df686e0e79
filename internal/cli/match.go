package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/forgo/nemesis/api/internal/model"
	"github.com/forgo/nemesis/api/internal/service"
)

// NewFindEnemyCommand creates the find-enemy command.
func NewFindEnemyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find-enemy <user-id>",
		Short: "Match one user right now and commit the record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withEngine(ctx, rootOpts, func(e *Engine) error {
				view, err := e.Matches.FindEnemy(ctx, args[0])
				if errors.Is(err, service.ErrNoEligibleCandidate) {
					return fmt.Errorf("%s has no eligible enemy: answer more questions or wait for the exclusion window to pass", args[0])
				}
				if err != nil {
					return err
				}
				resp := view.ToResponse()
				return writeResult(cmd.OutOrStdout(), rootOpts.Format, resp, func(w io.Writer) {
					printMatch(w, resp)
				})
			})
		},
	}
}

// NewMatchesCommand creates the matches command.
func NewMatchesCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "matches <user-id>",
		Short: "List a user's matches, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withEngine(ctx, rootOpts, func(e *Engine) error {
				views, err := e.Matches.GetMatches(ctx, args[0], limit)
				if err != nil {
					return err
				}
				matches := make([]model.MatchResponse, 0, len(views))
				for _, v := range views {
					matches = append(matches, v.ToResponse())
				}
				return writeResult(cmd.OutOrStdout(), rootOpts.Format, matches, func(w io.Writer) {
					if len(matches) == 0 {
						fmt.Fprintln(w, "no matches")
						return
					}
					for _, m := range matches {
						printMatch(w, m)
					}
				})
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of matches")
	return cmd
}

// NewScoreCommand creates the score command.
func NewScoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "score <user-a> <user-b>",
		Short: "Show how strongly two users disagree",
		Long: `Score two users from their stored answers.

100 means they gave opposite extremes on every shared question, 0 means
they agree everywhere. Nothing is written.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withEngine(ctx, rootOpts, func(e *Engine) error {
				score, err := e.Scorer.ScorePair(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return writeResult(cmd.OutOrStdout(), rootOpts.Format, score, func(w io.Writer) {
					fmt.Fprintf(w, "%s vs %s: score=%d over %d shared questions\n",
						score.UserAID, score.UserBID, score.Score, score.Overlap)
				})
			})
		},
	}
}
