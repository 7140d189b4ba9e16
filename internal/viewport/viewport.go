// Package viewport maintains a fixed WIDTH x HEIGHT window over the larger
// two-axis archive and recenters it on the operator's last click.
//
// Window-local indices are row-major: index = row*Width + column. Columns walk
// the discrete typology axis starting at State.XStart; rows walk the continuous
// axis starting at State.YStart in steps of YStep.
package viewport

import (
	"fmt"
	"math"

	"github.com/dyluth/warren/pkg/qd"
)

// NoClick marks the absence of a selected cell.
const NoClick = qd.NoClick

// State is the persisted viewport position.
type State = qd.ViewportState

// Explorer owns the viewport geometry and its mutable State.
type Explorer struct {
	Width      int
	Height     int
	YStep      float64
	Typologies []string
	Axis       qd.Axis

	// ClampY bounds YStart to the continuous axis when recentering.
	// Off by default: the vertical offset is allowed to drift past the archive.
	ClampY bool

	State State
}

// Cell is one window position resolved against the archive.
type Cell struct {
	Index     int // window-local index
	X         int // typology index
	Y         int // y-bin index, -1 when the row is outside the axis
	InArchive bool
}

// Validate checks the geometry. A viewport wider than the typology axis
// cannot be rendered and is reported as qd.ErrPrecondition.
func (e *Explorer) Validate() error {
	if e.Width < 1 || e.Height < 1 {
		return fmt.Errorf("viewport must be at least 1x1, got %dx%d: %w", e.Width, e.Height, qd.ErrConfiguration)
	}
	if e.YStep <= 0 || math.IsNaN(e.YStep) {
		return fmt.Errorf("viewport y_step must be > 0, got %v: %w", e.YStep, qd.ErrConfiguration)
	}
	if len(e.Typologies) < e.Width {
		return fmt.Errorf("viewport width %d exceeds %d typologies: %w", e.Width, len(e.Typologies), qd.ErrPrecondition)
	}
	if e.State.XStart < 0 || e.State.XStart > e.maxXStart() {
		return fmt.Errorf("x_start %d outside [0, %d]: %w", e.State.XStart, e.maxXStart(), qd.ErrPrecondition)
	}
	return nil
}

// Size returns the number of cells in the window.
func (e *Explorer) Size() int {
	return e.Width * e.Height
}

// Click records a window-local selection. -1 clears the selection.
func (e *Explorer) Click(index int) error {
	if index != NoClick && (index < 0 || index >= e.Size()) {
		return fmt.Errorf("clicked index %d outside window [0, %d)", index, e.Size())
	}
	e.State.LastClicked = index
	return nil
}

// Recenter moves the window so the last clicked cell sits in the middle
// column (unless clamped at an archive edge) and the middle row.
// It is a no-op when nothing is selected.
func (e *Explorer) Recenter() {
	last := e.State.LastClicked
	if last < 0 || last >= e.Size() {
		return
	}

	lx := last % e.Width
	ly := last / e.Width

	newXStart := clampInt(lx+e.State.XStart-e.Width/2, 0, e.maxXStart())
	newYStart := e.State.YStart + e.YStep*float64(ly-e.Height/2)

	// the clicked typology keeps its real column; only the clamp delta moves it
	newX := lx - newXStart + e.State.XStart
	newY := e.Height / 2

	if e.ClampY {
		lo, hi := e.yBounds()
		clamped := math.Max(lo, math.Min(newYStart, hi))
		if clamped != newYStart {
			realY := e.State.YStart + e.YStep*float64(ly)
			// a YStart already off the axis can leave the clicked row outside
			// the clamped window; keep the selection on its nearest edge row
			newY = clampInt(int(math.Round((realY-clamped)/e.YStep)), 0, e.Height-1)
			newYStart = clamped
		}
	}

	e.State.XStart = newXStart
	e.State.YStart = newYStart
	e.State.LastClicked = newY*e.Width + newX
}

// Window resolves every window-local index to its archive cell.
func (e *Explorer) Window() []Cell {
	cells := make([]Cell, 0, e.Size())
	for row := 0; row < e.Height; row++ {
		y, ok := e.Axis.Bin(e.rowValue(row))
		for col := 0; col < e.Width; col++ {
			x := e.State.XStart + col
			cells = append(cells, Cell{
				Index:     row*e.Width + col,
				X:         x,
				Y:         y,
				InArchive: ok && x < len(e.Typologies),
			})
		}
	}
	return cells
}

// ColumnLabels returns the typology labels shown across the window.
func (e *Explorer) ColumnLabels() []string {
	end := e.State.XStart + e.Width
	if end > len(e.Typologies) {
		end = len(e.Typologies)
	}
	return append([]string{}, e.Typologies[e.State.XStart:end]...)
}

// RowLabels returns the continuous-axis values shown down the window.
func (e *Explorer) RowLabels() []string {
	labels := make([]string, e.Height)
	for row := range labels {
		labels[row] = fmt.Sprintf("%.2f", e.rowValue(row))
	}
	return labels
}

func (e *Explorer) rowValue(row int) float64 {
	return e.State.YStart + float64(row)*e.YStep
}

func (e *Explorer) maxXStart() int {
	return len(e.Typologies) - e.Width
}

// yBounds returns the range YStart may take so the window stays on the axis.
func (e *Explorer) yBounds() (float64, float64) {
	lo := e.Axis.Min
	hi := e.Axis.Min + float64(e.Axis.Bins)*e.Axis.BinWidth - float64(e.Height)*e.YStep
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
