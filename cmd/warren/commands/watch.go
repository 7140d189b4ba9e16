package commands

import (
	"fmt"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchUntil        string
)

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Stream a session's run activity",
	Long: `Stream a session's events as they are published: run starts, each
iteration's candidate counts, generation failures, run completion, and
checkpoint saves and loads.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Follow a session until interrupted
  warren watch demo

  # Wait for the current run to finish
  warren watch demo --until run_completed`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().StringVar(&watchUntil, "until", "", "Exit after the first event of this type")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var format watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		format = watch.OutputFormatDefault
	case "json":
		format = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	ctx, cancel := signalContext()
	defer cancel()

	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	// Events can be watched before the session's first run.
	id, err := e.resolveSession(ctx, args[0], true)
	if err != nil {
		return err
	}

	return watch.StreamEvents(ctx, e.client, id, watch.Options{
		Format: format,
		Until:  watchUntil,
		Ready: func() {
			if format == watch.OutputFormatDefault {
				printer.Step("Watching %s (Ctrl-C to stop)\n", id)
			}
		},
	}, printer.Stdout)
}
