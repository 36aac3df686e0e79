package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SurrealDB schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withEngine(ctx, rootOpts, func(e *Engine) error {
				target := dir
				if target == "" {
					target = e.MigrationsDir
				}
				applied, err := e.Migrate(ctx, target)
				if err != nil {
					return err
				}
				out := map[string]interface{}{"dir": target, "applied": applied}
				return writeResult(cmd.OutOrStdout(), rootOpts.Format, out, func(w io.Writer) {
					fmt.Fprintf(w, "applied %d migrations from %s\n", applied, target)
				})
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (default DB_MIGRATIONS_DIR)")
	return cmd
}
