package commands

import (
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/session"
	"github.com/spf13/cobra"
)

var loadAPIKey string

var saveCmd = &cobra.Command{
	Use:   "save <session-id>",
	Short: "Save the session's archive as the global checkpoint",
	Long: `Write the session's population (elites, recycled genomes, and history)
to the configured checkpoint backend, replacing any previous checkpoint.

A session that has never run has nothing to save; this is reported and
not treated as an error.`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

var loadCmd = &cobra.Command{
	Use:   "load <session-id>",
	Short: "Replace the session's archive with the global checkpoint",
	Long: `Restore the global checkpoint into the session. Its history is reset
to a single step showing the restored archive.

The model credential is checked first because the next run needs it.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadAPIKey, "api-key", "", "Model credential (defaults to the configured environment variable)")
	rootCmd.AddCommand(saveCmd, loadCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return mutateSession(args[0], func(s *session.Session) error {
		saved, err := s.SaveCheckpoint(ctx)
		if err != nil {
			return err
		}
		if !saved {
			printer.Warning("session %s has no population yet; nothing saved\n", s.ID())
			return nil
		}
		printer.Success("Saved checkpoint from %s (%d elites)\n", s.ID(), s.Record().Population.Genomes.Occupied())
		return nil
	})
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	id, err := e.resolveSession(ctx, args[0], true)
	if err != nil {
		return err
	}
	err = e.svc.Do(ctx, id, func(s *session.Session) error {
		if err := s.LoadCheckpoint(ctx, loadAPIKey); err != nil {
			return err
		}
		printer.Success("Loaded checkpoint into %s (%d elites)\n", s.ID(), s.Record().Population.Genomes.Occupied())
		return nil
	})
	if err != nil {
		return sessionError(id, err)
	}
	return nil
}
