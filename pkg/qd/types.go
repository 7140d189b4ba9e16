package qd

import (
	"fmt"
	"math"
	"time"
)

// Genome error codes. Zero means the candidate decoded and parsed cleanly.
const (
	ErrorCodeOK           = 0
	ErrorCodeDecodeFailed = 1 // model call failed or returned too few continuations
	ErrorCodeEmptyOutput  = 2 // model returned an empty continuation
	ErrorCodeUnparseable  = 3 // text could not be parsed into a layout
	ErrorCodeOutOfBounds  = 4 // behaviour descriptor fell outside the archive
)

// NoClick marks a viewport with no selected cell.
const NoClick = -1

// ViewportState is the persisted position of an explorer window over the
// archive: the first typology column, the continuous-axis value of the first
// row and the selected window-local cell (NoClick when none).
type ViewportState struct {
	XStart      int     `json:"x_start"`
	YStart      float64 `json:"y_start"`
	LastClicked int     `json:"last_clicked"`
}

// Genome is a single candidate artifact.
// ProgramStr and ResultObj carry the same decoded text for layout genomes.
type Genome struct {
	ProgramStr string `json:"program_str"`
	ResultObj  string `json:"result_obj"`
	ErrorCode  int    `json:"error_code"`
}

// OK reports whether the genome was generated without error.
func (g Genome) OK() bool {
	return g.ErrorCode == ErrorCodeOK
}

// Elite is a genome occupying an archive cell together with its fitness.
type Elite struct {
	Genome  Genome  `json:"genome"`
	Fitness float64 `json:"fitness"`
}

// Axis describes the continuous behaviour axis as fixed-width bins.
type Axis struct {
	Min      float64 `json:"min"`       // lower edge of bin 0
	BinWidth float64 `json:"bin_width"` // width of every bin
	Bins     int     `json:"bins"`      // number of bins
}

// Validate checks that the axis describes at least one positive-width bin.
func (a Axis) Validate() error {
	if a.Bins < 1 {
		return fmt.Errorf("axis must have at least one bin, got %d", a.Bins)
	}
	if a.BinWidth <= 0 || math.IsNaN(a.BinWidth) {
		return fmt.Errorf("axis bin width must be > 0, got %v", a.BinWidth)
	}
	return nil
}

// Bin returns the bin containing value v, or (-1, false) when v lies
// outside the axis. Values are snapped to the nearest 1e-9 so that
// y_start + k*step lands on the intended bin despite float drift.
func (a Axis) Bin(v float64) (int, bool) {
	if a.BinWidth <= 0 || math.IsNaN(v) {
		return -1, false
	}
	pos := (v - a.Min) / a.BinWidth
	pos = math.Round(pos*1e9) / 1e9
	idx := int(math.Floor(pos))
	if idx < 0 || idx >= a.Bins {
		return -1, false
	}
	return idx, true
}

// Value returns the lower edge of bin i.
func (a Axis) Value(i int) float64 {
	return a.Min + float64(i)*a.BinWidth
}

// Grid is the archive's two-dimensional mapping from (typology, y-bin) to
// an elite. Cells are stored in (typology outer, y-bin inner) order and a nil
// cell is empty.
type Grid struct {
	Dims  [2]int   `json:"dims"`
	Cells []*Elite `json:"cells"`
}

// NewGrid allocates an empty grid with the given dimensions.
func NewGrid(typologies, yBins int) *Grid {
	return &Grid{
		Dims:  [2]int{typologies, yBins},
		Cells: make([]*Elite, typologies*yBins),
	}
}

// Index returns the flat index of cell (x, y).
func (g *Grid) Index(x, y int) int {
	return x*g.Dims[1] + y
}

// InBounds reports whether (x, y) addresses a cell of the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.Dims[0] && y >= 0 && y < g.Dims[1]
}

// At returns the elite at (x, y), or nil when empty or out of bounds.
func (g *Grid) At(x, y int) *Elite {
	if !g.InBounds(x, y) {
		return nil
	}
	return g.Cells[g.Index(x, y)]
}

// Set stores e at (x, y). Out-of-bounds writes are ignored.
func (g *Grid) Set(x, y int, e *Elite) {
	if !g.InBounds(x, y) {
		return
	}
	g.Cells[g.Index(x, y)] = e
}

// Occupied returns the number of non-empty cells.
func (g *Grid) Occupied() int {
	n := 0
	for _, c := range g.Cells {
		if c != nil {
			n++
		}
	}
	return n
}

// Validate checks that the cell slice matches the declared dimensions.
func (g *Grid) Validate() error {
	if g.Dims[0] < 0 || g.Dims[1] < 0 {
		return fmt.Errorf("invalid grid dims %v", g.Dims)
	}
	if len(g.Cells) != g.Dims[0]*g.Dims[1] {
		return fmt.Errorf("grid has %d cells, dims %v require %d", len(g.Cells), g.Dims, g.Dims[0]*g.Dims[1])
	}
	return nil
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	if g == nil {
		return nil
	}
	out := &Grid{Dims: g.Dims, Cells: make([]*Elite, len(g.Cells))}
	for i, c := range g.Cells {
		if c != nil {
			cp := *c
			out.Cells[i] = &cp
		}
	}
	return out
}

// HistoryEntry is one record of the archive's evolutionary log.
// Warren persists it with checkpoints but does not interpret it.
type HistoryEntry struct {
	Step        int     `json:"step"`
	Inserted    int     `json:"inserted"`
	Replaced    int     `json:"replaced"`
	Rejected    int     `json:"rejected"`
	BestFitness float64 `json:"best_fitness"`
	CreatedAtMs int64   `json:"created_at_ms"`
}

// Population is the archive's persistable state: elites, the recycled bin
// of rejected genomes, and the evolutionary history.
type Population struct {
	Genomes  *Grid          `json:"genomes"`
	Recycled []Genome       `json:"recycled"`
	History  []HistoryEntry `json:"history"`
}

// Validate checks the population is structurally sound.
func (p *Population) Validate() error {
	if p.Genomes == nil {
		return fmt.Errorf("population has no genome grid")
	}
	if err := p.Genomes.Validate(); err != nil {
		return fmt.Errorf("invalid genome grid: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the population.
func (p *Population) Clone() *Population {
	if p == nil {
		return nil
	}
	return &Population{
		Genomes:  p.Genomes.Clone(),
		Recycled: append([]Genome{}, p.Recycled...),
		History:  append([]HistoryEntry{}, p.History...),
	}
}

// Snapshot is an immutable view of the full archive at the end of one run.
// Cells follow Grid ordering; a nil cell renders as the blank placeholder.
type Snapshot struct {
	Dims        [2]int    `json:"dims"`
	Cells       []*Genome `json:"cells"`
	CreatedAtMs int64     `json:"created_at_ms"`
}

// NewSnapshot enumerates grid in (typology outer, y-bin inner) order and
// copies every occupied cell. A nil grid yields an empty 0x0 snapshot.
func NewSnapshot(g *Grid) Snapshot {
	s := Snapshot{CreatedAtMs: time.Now().UnixMilli()}
	if g == nil {
		return s
	}
	s.Dims = g.Dims
	s.Cells = make([]*Genome, 0, g.Dims[0]*g.Dims[1])
	for x := 0; x < g.Dims[0]; x++ {
		for y := 0; y < g.Dims[1]; y++ {
			var cell *Genome
			if e := g.At(x, y); e != nil {
				cp := e.Genome
				cell = &cp
			}
			s.Cells = append(s.Cells, cell)
		}
	}
	return s
}

// BlankSnapshot returns an all-empty snapshot of the given dimensions.
func BlankSnapshot(typologies, yBins int) Snapshot {
	return NewSnapshot(NewGrid(typologies, yBins))
}

// At returns the genome at (x, y), or nil when empty or out of bounds.
func (s Snapshot) At(x, y int) *Genome {
	if x < 0 || x >= s.Dims[0] || y < 0 || y >= s.Dims[1] {
		return nil
	}
	i := x*s.Dims[1] + y
	if i >= len(s.Cells) {
		return nil
	}
	return s.Cells[i]
}

// Occupied returns the number of non-empty cells.
func (s Snapshot) Occupied() int {
	n := 0
	for _, c := range s.Cells {
		if c != nil {
			n++
		}
	}
	return n
}
