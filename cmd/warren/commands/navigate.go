package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/session"
	"github.com/spf13/cobra"
)

var clickCmd = &cobra.Command{
	Use:   "click <session-id> <index>",
	Short: "Select a window cell",
	Long: `Select a cell of the explorer window by its row-major index
(0 is the top-left cell). An index of -1 clears the selection.`,
	Args: cobra.ExactArgs(2),
	RunE: runClick,
}

var recenterCmd = &cobra.Command{
	Use:   "recenter <session-id>",
	Short: "Move the window so the selected cell sits in its centre",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecenter,
}

var stepCmd = &cobra.Command{
	Use:   "step <session-id> [index|latest]",
	Short: "Pin the history step shown by view",
	Long: `Pin the history step that view renders. Without an index, or with
"latest", the view follows the newest step.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runStep,
}

func init() {
	rootCmd.AddCommand(clickCmd, recenterCmd, stepCmd)
}

func runClick(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return printer.Error("invalid cell index", fmt.Sprintf("'%s' is not an integer", args[1]), nil)
	}
	return mutateSession(args[0], func(s *session.Session) error {
		if err := s.Click(index); err != nil {
			return err
		}
		printer.Success("Selected cell %d\n", index)
		return nil
	})
}

func runRecenter(cmd *cobra.Command, args []string) error {
	return mutateSession(args[0], func(s *session.Session) error {
		if err := s.Recenter(); err != nil {
			return err
		}
		v := s.Record().Viewport
		printer.Success("Window at x_start=%d y_start=%.2f, selected cell %d\n", v.XStart, v.YStart, v.LastClicked)
		return nil
	})
}

func runStep(cmd *cobra.Command, args []string) error {
	var step *int
	if len(args) == 2 && args[1] != "latest" {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return printer.Error("invalid step", fmt.Sprintf("'%s' is not an integer or 'latest'", args[1]), nil)
		}
		step = &n
	}
	return mutateSession(args[0], func(s *session.Session) error {
		if err := s.SelectStep(step); err != nil {
			return err
		}
		if step == nil {
			printer.Success("Following the latest step\n")
		} else {
			printer.Success("Showing step %d of %d\n", *step, len(s.Record().Steps))
		}
		return nil
	})
}

// mutateSession resolves id and applies fn under the session lock.
func mutateSession(id string, fn func(*session.Session) error) error {
	ctx := context.Background()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	id, err = e.resolveSession(ctx, id, false)
	if err != nil {
		return err
	}
	if err := e.svc.Do(ctx, id, fn); err != nil {
		return sessionError(id, err)
	}
	return nil
}
