package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	open EngineOpener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the nemesisctl root command. A nil opener builds
// the engine from the same environment the server reads.
func NewRootCommand(open EngineOpener) *cobra.Command {
	if open == nil {
		open = OpenFromEnv
	}
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:           "nemesisctl",
		Short:         "Operate the Nemesis matching engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewKeygenCommand())
	cmd.AddCommand(NewHashKeyCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedQuestionsCommand(opts))
	cmd.AddCommand(NewSeedPopulationCommand(opts))
	cmd.AddCommand(NewCycleCommand(opts))
	cmd.AddCommand(NewFindEnemyCommand(opts))
	cmd.AddCommand(NewMatchesCommand(opts))
	cmd.AddCommand(NewScoreCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
