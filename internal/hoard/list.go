package hoard

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dyluth/warren/pkg/qd"
)

// OutputFormat specifies how to format the elite list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated layouts
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete elites as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FilterCriteria narrows the listing. All filters are ANDed together.
type FilterCriteria struct {
	MinFitness   float64 // 0 = no filter
	TypologyGlob string  // e.g. "3b*", empty = no filter
	Limit        int     // 0 = no limit
}

func (fc *FilterCriteria) matchesFilter(e Entry) bool {
	if fc.MinFitness > 0 && e.Fitness < fc.MinFitness {
		return false
	}
	if fc.TypologyGlob != "" {
		matched, err := filepath.Match(fc.TypologyGlob, e.Typology)
		if err != nil || !matched {
			return false
		}
	}
	return true
}

// ListElites writes the elites of pop in the requested format.
func ListElites(pop *qd.Population, typologies []string, axis qd.Axis, format OutputFormat, filters *FilterCriteria, label string, w io.Writer) error {
	var entries []Entry
	if pop != nil {
		entries = Entries(pop.Genomes, typologies, axis)
	}

	if filters != nil {
		kept := entries[:0]
		for _, e := range entries {
			if filters.matchesFilter(e) {
				kept = append(kept, e)
			}
		}
		entries = kept
		if filters.Limit > 0 && len(entries) > filters.Limit {
			entries = entries[:filters.Limit]
		}
	}

	switch format {
	case OutputFormatDefault:
		FormatTable(w, entries, label)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, entries); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}
