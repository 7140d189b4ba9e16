package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/warren/internal/floorplan"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/session"
	"github.com/dyluth/warren/pkg/store"
	"github.com/spf13/cobra"
)

var (
	viewStep   int
	viewExport string
)

var viewCmd = &cobra.Command{
	Use:   "view <session-id>",
	Short: "Show the explorer window",
	Long: `Print the explorer window over a history step. Columns are typologies,
rows are aspect-ratio bins. Occupied cells are marked ●, empty cells ·, and
rows outside the archive ×. The selected cell is highlighted and its layout
printed below the grid.

With --export the window's tiles are also written as PNG files named
tile-NN.png.`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

func init() {
	viewCmd.Flags().IntVar(&viewStep, "step", 0, "History step to show (defaults to the pinned or latest step)")
	viewCmd.Flags().StringVar(&viewExport, "export", "", "Directory to write PNG tiles into")
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	id, err := e.resolveSession(ctx, args[0], false)
	if err != nil {
		return err
	}
	rec, err := e.svc.Get(ctx, id)
	if err != nil {
		return sessionError(id, err)
	}

	var step *int
	if cmd.Flags().Changed("step") {
		step = &viewStep
	}
	view, err := e.svc.ViewRecord(rec, step)
	if err != nil {
		return sessionError(id, err)
	}

	printer.Printf("Session %s, step %d of %d\n\n", view.SessionID, view.Step, view.Steps)
	printer.Printf("%s", renderGrid(view))

	if view.Selected >= 0 && view.Selected < len(view.Cells) {
		cell := view.Cells[view.Selected]
		printer.Printf("\nSelected cell %d", cell.Index)
		if cell.Occupied() {
			printer.Printf(":\n%s\n", describeLayout(cell.Genome.ProgramStr))
		} else {
			printer.Printf(" is empty\n")
		}
	}

	if viewExport != "" {
		if err := exportTiles(e.svc, rec, step, view, viewExport); err != nil {
			return err
		}
		printer.Success("Wrote %d tiles to %s\n", len(view.Cells), viewExport)
	}
	return nil
}

// renderGrid lays the window out with column and row labels.
func renderGrid(view *session.View) string {
	const cellWidth = 7
	var b strings.Builder

	fmt.Fprintf(&b, "%-7s", "")
	for _, label := range view.Columns {
		fmt.Fprintf(&b, "%-*s", cellWidth, label)
	}
	b.WriteString("\n")

	for row := 0; row < view.Height; row++ {
		label := ""
		if row < len(view.Rows) {
			label = view.Rows[row]
		}
		fmt.Fprintf(&b, "%-7s", label)
		for col := 0; col < view.Width; col++ {
			cell := view.Cells[row*view.Width+col]
			marker := "·"
			switch {
			case !cell.InArchive:
				marker = "×"
			case cell.Occupied():
				marker = "●"
			}
			text := fmt.Sprintf("%s %-2d", marker, cell.Index)
			b.WriteString(printer.Cell(text, cell.Occupied(), cell.Index == view.Selected))
			b.WriteString(strings.Repeat(" ", cellWidth-len([]rune(text))))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// describeLayout lists the rooms of a layout one per line, falling back to
// the raw text when it does not parse.
func describeLayout(text string) string {
	layout, err := floorplan.Parse(text)
	if err != nil {
		return "  " + text
	}
	var b strings.Builder
	for _, r := range layout.Rooms {
		fmt.Fprintf(&b, "  %-14s area %.0f\n", r.Label, r.Area())
	}
	if d, err := layout.Describe(); err == nil {
		fmt.Fprintf(&b, "  typology %s, aspect %.2f, fitness %.4f", d.Typology, d.Aspect, d.Fitness)
	}
	return strings.TrimRight(b.String(), "\n")
}

func exportTiles(svc *session.Service, rec *store.SessionRecord, step *int, view *session.View, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for _, cell := range view.Cells {
		img, err := svc.TileRecord(rec, step, cell.Index)
		if err != nil {
			return sessionError(rec.SessionID, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("tile-%02d.png", cell.Index))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		encErr := floorplan.EncodePNG(f, img)
		closeErr := f.Close()
		if encErr != nil {
			return fmt.Errorf("failed to encode %s: %w", path, encErr)
		}
		if closeErr != nil {
			return fmt.Errorf("failed to write %s: %w", path, closeErr)
		}
	}
	return nil
}
