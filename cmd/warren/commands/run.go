package commands

import (
	"github.com/dyluth/warren/internal/floorplan"
	"github.com/dyluth/warren/internal/orchestrator"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/session"
	"github.com/spf13/cobra"
)

var (
	runInitSteps     int
	runMutationSteps int
	runBatchSize     int
	runAPIKey        string
)

var runCmd = &cobra.Command{
	Use:   "run <session-id>",
	Short: "Run the search and append a history step",
	Long: `Run init_steps unconditioned generations followed by mutation_steps
mutations of elites sampled from the archive, then record the archive as a
new history step.

The session is created if it does not exist. Flags left unset fall back to
the run section of warren.yml.

Examples:
  # One init and one mutation iteration with the configured batch size
  warren run demo

  # Ten mutations of four candidates each
  warren run demo --init-steps 0 --mutation-steps 10 --batch-size 4`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runInitSteps, "init-steps", 0, "Unconditioned generation iterations")
	runCmd.Flags().IntVar(&runMutationSteps, "mutation-steps", 0, "Mutation iterations")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "Candidates per iteration")
	runCmd.Flags().StringVar(&runAPIKey, "api-key", "", "Model credential (defaults to the configured environment variable)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	id, err := e.resolveSession(ctx, args[0], true)
	if err != nil {
		return err
	}

	params := orchestrator.RunParams{
		InitSteps:     *e.cfg.Run.InitSteps,
		MutationSteps: *e.cfg.Run.MutationSteps,
		BatchSize:     e.cfg.Run.BatchSize,
	}
	if cmd.Flags().Changed("init-steps") {
		params.InitSteps = runInitSteps
	}
	if cmd.Flags().Changed("mutation-steps") {
		params.MutationSteps = runMutationSteps
	}
	if cmd.Flags().Changed("batch-size") {
		params.BatchSize = runBatchSize
	}

	printer.Step("Running %d init + %d mutation iterations (batch %d) on %s...\n",
		params.InitSteps, params.MutationSteps, params.BatchSize, id)

	var (
		before   int
		steps    int
		occupied int
	)
	err = e.svc.Do(ctx, id, func(s *session.Session) error {
		before = len(s.Record().Steps)
		best, runErr := s.Run(ctx, params, runAPIKey)
		rec := s.Record()
		steps = len(rec.Steps)
		if rec.Population != nil {
			occupied = rec.Population.Genomes.Occupied()
		}
		if runErr != nil {
			return runErr
		}
		printer.Success("Run complete: %d steps, %d elites\n", steps, occupied)
		if occupied > 0 {
			printer.Printf("Best fitness: %.4f\n", best.Fitness)
			if layout, err := floorplan.Parse(best.Genome.ProgramStr); err == nil {
				printer.Printf("Best layout:  %d rooms\n", len(layout.Rooms))
			}
		}
		return nil
	})
	if err != nil {
		if steps > before {
			printer.Warning("run aborted; partial archive recorded as step %d\n", steps-1)
		}
		return sessionError(id, err)
	}

	printer.Info("\nNext: warren view %s\n", shortID(id))
	return nil
}

// shortID trims UUIDs to a prefix the resolver accepts.
func shortID(id string) string {
	if len(id) == 36 {
		return id[:8]
	}
	return id
}
