// Package hoard prints the elites of an archive population for the CLI.
package hoard

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dyluth/warren/internal/floorplan"
	"github.com/dyluth/warren/pkg/qd"
)

// Entry is one occupied archive cell.
type Entry struct {
	Index     int     `json:"index"`
	Typology  string  `json:"typology"`
	YBin      int     `json:"y_bin"`
	YValue    float64 `json:"y_value"`
	Fitness   float64 `json:"fitness"`
	ErrorCode int     `json:"error_code"`
	Layout    string  `json:"layout"`
}

// Entries flattens the occupied cells of grid, fittest first. Ties keep
// grid order.
func Entries(grid *qd.Grid, typologies []string, axis qd.Axis) []Entry {
	if grid == nil {
		return nil
	}
	var out []Entry
	for x := 0; x < grid.Dims[0]; x++ {
		for y := 0; y < grid.Dims[1]; y++ {
			e := grid.At(x, y)
			if e == nil {
				continue
			}
			typology := fmt.Sprintf("#%d", x)
			if x < len(typologies) {
				typology = typologies[x]
			}
			out = append(out, Entry{
				Index:     grid.Index(x, y),
				Typology:  typology,
				YBin:      y,
				YValue:    axis.Value(y),
				Fitness:   e.Fitness,
				ErrorCode: e.Genome.ErrorCode,
				Layout:    e.Genome.ProgramStr,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Fitness > out[j].Fitness
	})
	return out
}

// FormatTable writes entries as a table and returns how many were written.
func FormatTable(w io.Writer, entries []Entry, label string) int {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No elites found in %s\n", label)
		return 0
	}

	fmt.Fprintf(w, "Elites in %s:\n\n", label)

	fmt.Fprintf(w, "%-6s %-9s %-6s %-8s %s\n", "CELL", "TYPOLOGY", "ASPECT", "FITNESS", "LAYOUT")
	fmt.Fprintf(w, "%-6s %-9s %-6s %-8s %s\n", "------", "---------", "------", "--------", "----------------------------------------")

	for _, e := range entries {
		fmt.Fprintf(w, "%-6d %-9s %-6.2f %-8.4f %s\n",
			e.Index,
			e.Typology,
			e.YValue,
			e.Fitness,
			formatLayout(e.Layout),
		)
	}

	noun := "elite"
	if len(entries) != 1 {
		noun = "elites"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(entries), noun)

	return len(entries)
}

// FormatJSONL writes one compact JSON object per entry.
func FormatJSONL(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal elite to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes one entry as indented JSON.
func FormatSingleJSON(w io.Writer, e Entry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal elite to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// formatLayout drops the prompt and truncates the room list to 40 characters.
func formatLayout(text string) string {
	if i := strings.LastIndex(text, floorplan.LayoutMarker); i >= 0 {
		text = text[i+len(floorplan.LayoutMarker):]
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "-"
	}
	if len(text) > 40 {
		return text[:37] + "..."
	}
	return text
}
