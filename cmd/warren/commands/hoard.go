package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/warren/internal/hoard"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/pkg/qd"
	"github.com/spf13/cobra"
)

var (
	hoardCheckpoint bool
	hoardOutput     string
	hoardMinFitness float64
	hoardTypology   string
	hoardLimit      int
	hoardGet        int
)

var hoardCmd = &cobra.Command{
	Use:   "hoard [session-id]",
	Short: "List the elites of a session or the checkpoint",
	Long: `List the elites held by a session's archive, fittest first, or by the
global checkpoint with --checkpoint.

Output Formats:
  default - Table with truncated layouts
  jsonl   - One complete elite per line

Examples:
  # Table of every elite in a session
  warren hoard demo

  # The five fittest three-bedroom layouts in the checkpoint
  warren hoard --checkpoint --typology '3b*' --limit 5

  # One cell in full
  warren hoard demo --get 42`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHoard,
}

func init() {
	hoardCmd.Flags().BoolVar(&hoardCheckpoint, "checkpoint", false, "Read the global checkpoint instead of a session")
	hoardCmd.Flags().StringVarP(&hoardOutput, "output", "o", "default", "Output format (default or jsonl)")
	hoardCmd.Flags().Float64Var(&hoardMinFitness, "min-fitness", 0, "Only elites at least this fit")
	hoardCmd.Flags().StringVar(&hoardTypology, "typology", "", "Glob on the typology column, e.g. '2b*'")
	hoardCmd.Flags().IntVar(&hoardLimit, "limit", 0, "Show at most this many elites")
	hoardCmd.Flags().IntVar(&hoardGet, "get", -1, "Print a single archive cell as JSON")
	rootCmd.AddCommand(hoardCmd)
}

func runHoard(cmd *cobra.Command, args []string) error {
	if hoardCheckpoint == (len(args) == 1) {
		return printer.Error(
			"choose one source",
			"Give either a session id or --checkpoint.",
			[]string{"warren hoard <session-id>", "warren hoard --checkpoint"},
		)
	}

	var format hoard.OutputFormat
	switch hoardOutput {
	case "default":
		format = hoard.OutputFormatDefault
	case "jsonl":
		format = hoard.OutputFormatJSONL
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", hoardOutput),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	ctx := context.Background()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	var (
		pop   *qd.Population
		label string
	)
	if hoardCheckpoint {
		cp, err := e.svc.Checkpoints().LoadCheckpoint(ctx)
		if err != nil {
			return sessionError("", err)
		}
		pop, label = cp.Population(), "the checkpoint"
	} else {
		id, err := e.resolveSession(ctx, args[0], false)
		if err != nil {
			return err
		}
		rec, err := e.svc.Get(ctx, id)
		if err != nil {
			return sessionError(id, err)
		}
		pop, label = rec.Population, fmt.Sprintf("session '%s'", id)
	}

	typologies, axis := e.cfg.Archive.Typologies, e.cfg.YAxis()
	if hoardGet >= 0 {
		err := hoard.GetElite(pop, typologies, axis, hoardGet, printer.Stdout)
		if hoard.IsNotFound(err) {
			return printer.Error("empty cell", err.Error(), nil)
		}
		return err
	}

	filters := &hoard.FilterCriteria{
		MinFitness:   hoardMinFitness,
		TypologyGlob: hoardTypology,
		Limit:        hoardLimit,
	}
	return hoard.ListElites(pop, typologies, axis, format, filters, label, printer.Stdout)
}
