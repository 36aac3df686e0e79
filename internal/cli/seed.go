package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/forgo/nemesis/api/internal/service"
)

// SeedFile is the YAML layout read by seed-questions:
//
//	questions:
//	  - Pineapple belongs on pizza
//	  - Hot dogs are sandwiches
type SeedFile struct {
	Questions []string `yaml:"questions"`
}

// LoadSeedFile reads question texts from a YAML seed file
func LoadSeedFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	if len(f.Questions) == 0 {
		return nil, errors.New("seed file has no questions")
	}
	return f.Questions, nil
}

// NewSeedQuestionsCommand creates the seed-questions command.
func NewSeedQuestionsCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed-questions",
		Short: "Fill an empty question catalog",
		Long: `Insert the starter questions, or those in --file, when the catalog is
empty. A catalog that already has questions is left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := service.DefaultSeedQuestions
			if file != "" {
				loaded, err := LoadSeedFile(file)
				if err != nil {
					return err
				}
				texts = loaded
			}

			ctx := cmd.Context()
			return withEngine(ctx, rootOpts, func(e *Engine) error {
				created, err := e.Questions.SeedQuestions(ctx, texts)
				if err != nil {
					return err
				}
				out := map[string]int{"created": created}
				return writeResult(cmd.OutOrStdout(), rootOpts.Format, out, func(w io.Writer) {
					if created == 0 {
						fmt.Fprintln(w, "catalog already has questions, nothing seeded")
						return
					}
					fmt.Fprintf(w, "seeded %d questions\n", created)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a questions list")
	return cmd
}

// NewSeedPopulationCommand creates the seed-population command.
func NewSeedPopulationCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		req     service.SeedPopulationRequest
		cleanup bool
	)

	cmd := &cobra.Command{
		Use:   "seed-population",
		Short: "Create mock users with answers for development",
		Long: `Create --count mock users who answer a random share of the active
questions. Seeded accounts are tagged with --prefix; --cleanup removes
their answers and deactivates them again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withEngine(ctx, rootOpts, func(e *Engine) error {
				if cleanup {
					res, err := e.Seeder.Cleanup(ctx, req.Prefix)
					if err != nil {
						return err
					}
					return writeResult(cmd.OutOrStdout(), rootOpts.Format, res, func(w io.Writer) {
						fmt.Fprintf(w, "deactivated %d seeded users\n", res.Deactivated)
					})
				}

				res, err := e.Seeder.SeedPopulation(ctx, req)
				if err != nil {
					return err
				}
				return writeResult(cmd.OutOrStdout(), rootOpts.Format, res, func(w io.Writer) {
					fmt.Fprintf(w, "created %d users with %d answers in %dms\n", res.Created, res.Answers, res.Duration)
				})
			})
		},
	}

	cmd.Flags().IntVar(&req.Count, "count", 20, "number of users to create")
	cmd.Flags().IntVar(&req.AnswerRate, "answer-rate", 80, "percentage of active questions each user answers")
	cmd.Flags().StringVar(&req.Prefix, "prefix", "seed_", "email prefix marking seeded users")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "remove seeded users instead of creating them")
	return cmd
}
