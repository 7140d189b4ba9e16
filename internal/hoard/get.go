package hoard

import (
	"fmt"
	"io"

	"github.com/dyluth/warren/pkg/qd"
)

// GetElite writes the elite at a flat archive index as indented JSON.
func GetElite(pop *qd.Population, typologies []string, axis qd.Axis, index int, w io.Writer) error {
	if pop == nil || pop.Genomes == nil {
		return &EliteNotFoundError{Index: index}
	}
	g := pop.Genomes
	if index < 0 || index >= len(g.Cells) {
		return fmt.Errorf("cell index %d out of range [0, %d)", index, len(g.Cells))
	}
	if g.Cells[index] == nil {
		return &EliteNotFoundError{Index: index}
	}

	for _, e := range Entries(g, typologies, axis) {
		if e.Index == index {
			return FormatSingleJSON(w, e)
		}
	}
	return &EliteNotFoundError{Index: index}
}

// EliteNotFoundError reports an empty archive cell.
type EliteNotFoundError struct {
	Index int
}

func (e *EliteNotFoundError) Error() string {
	return fmt.Sprintf("archive cell %d is empty", e.Index)
}

// IsNotFound returns true if the error is an EliteNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*EliteNotFoundError)
	return ok
}
