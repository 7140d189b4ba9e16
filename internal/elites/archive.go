// Package elites is the reference archive collaborator: a MAP-Elites style
// grid keyed by floor-plan typology and bounding-box aspect ratio.
//
// Warren's core only depends on qd.Archive; this implementation exists so the
// binaries run end to end and can be swapped for any other QD archive.
package elites

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dyluth/warren/internal/floorplan"
	"github.com/dyluth/warren/pkg/qd"
)

// DefaultRecycledMax bounds the recycled bin.
const DefaultRecycledMax = 1000

// Archive keeps the fittest layout per (typology, aspect bin).
// Not safe for concurrent use.
type Archive struct {
	typologies  []string
	index       map[string]int
	axis        qd.Axis
	grid        *qd.Grid
	recycled    []qd.Genome
	recycledMax int
	history     []qd.HistoryEntry
	batchSize   int
}

// New creates an empty archive.
func New(typologies []string, axis qd.Axis, recycledMax int) (*Archive, error) {
	if len(typologies) == 0 {
		return nil, fmt.Errorf("archive needs at least one typology: %w", qd.ErrConfiguration)
	}
	if err := axis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid y axis: %v: %w", err, qd.ErrConfiguration)
	}
	if recycledMax <= 0 {
		recycledMax = DefaultRecycledMax
	}

	index := make(map[string]int, len(typologies))
	for i, t := range typologies {
		if _, dup := index[t]; dup {
			return nil, fmt.Errorf("duplicate typology %q: %w", t, qd.ErrConfiguration)
		}
		index[t] = i
	}

	return &Archive{
		typologies:  append([]string{}, typologies...),
		index:       index,
		axis:        axis,
		grid:        qd.NewGrid(len(typologies), axis.Bins),
		recycledMax: recycledMax,
		batchSize:   1,
	}, nil
}

// SetBatchSize implements qd.Archive.
func (a *Archive) SetBatchSize(n int) {
	if n < 1 {
		n = 1
	}
	a.batchSize = n
}

// BatchSize implements qd.Archive.
func (a *Archive) BatchSize() int {
	return a.batchSize
}

// Insert evaluates each genome and keeps it when its cell is empty or it
// beats the incumbent. Losers and failed genomes go to the recycled bin.
func (a *Archive) Insert(ctx context.Context, batch []qd.Genome) error {
	entry := qd.HistoryEntry{Step: len(a.history) + 1, CreatedAtMs: time.Now().UnixMilli()}

	for _, g := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		x, y, fitness, code := a.evaluate(g)
		if code != qd.ErrorCodeOK {
			g.ErrorCode = code
			a.recycle(g)
			entry.Rejected++
			continue
		}

		incumbent := a.grid.At(x, y)
		switch {
		case incumbent == nil:
			a.grid.Set(x, y, &qd.Elite{Genome: g, Fitness: fitness})
			entry.Inserted++
		case fitness > incumbent.Fitness:
			a.recycle(incumbent.Genome)
			a.grid.Set(x, y, &qd.Elite{Genome: g, Fitness: fitness})
			entry.Replaced++
		default:
			a.recycle(g)
			entry.Rejected++
		}
	}

	if best, ok := a.Best(); ok {
		entry.BestFitness = best.Fitness
	}
	a.history = append(a.history, entry)
	return nil
}

// evaluate places g in behaviour space. A nonzero code means g cannot enter.
func (a *Archive) evaluate(g qd.Genome) (x, y int, fitness float64, code int) {
	if !g.OK() {
		return 0, 0, 0, g.ErrorCode
	}
	layout, err := floorplan.Parse(g.ResultObj)
	if err != nil {
		return 0, 0, 0, qd.ErrorCodeUnparseable
	}
	desc, err := layout.Describe()
	if err != nil {
		return 0, 0, 0, qd.ErrorCodeUnparseable
	}
	x, ok := a.index[desc.Typology]
	if !ok {
		return 0, 0, 0, qd.ErrorCodeOutOfBounds
	}
	y, ok = a.axis.Bin(desc.Aspect)
	if !ok {
		return 0, 0, 0, qd.ErrorCodeOutOfBounds
	}
	return x, y, desc.Fitness, qd.ErrorCodeOK
}

func (a *Archive) recycle(g qd.Genome) {
	a.recycled = append(a.recycled, g)
	if over := len(a.recycled) - a.recycledMax; over > 0 {
		a.recycled = append([]qd.Genome{}, a.recycled[over:]...)
	}
}

// Sample picks a uniformly random occupied cell.
func (a *Archive) Sample(rng *rand.Rand) (qd.Genome, bool) {
	occupied := make([]int, 0, len(a.grid.Cells))
	for i, c := range a.grid.Cells {
		if c != nil {
			occupied = append(occupied, i)
		}
	}
	if len(occupied) == 0 {
		return qd.Genome{}, false
	}
	return a.grid.Cells[occupied[rng.IntN(len(occupied))]].Genome, true
}

// Best returns the fittest elite; ties keep the first in grid order.
func (a *Archive) Best() (qd.Elite, bool) {
	var best *qd.Elite
	for _, c := range a.grid.Cells {
		if c != nil && (best == nil || c.Fitness > best.Fitness) {
			best = c
		}
	}
	if best == nil {
		return qd.Elite{}, false
	}
	return *best, true
}

// Population implements qd.Archive.
func (a *Archive) Population() *qd.Population {
	return (&qd.Population{
		Genomes:  a.grid,
		Recycled: a.recycled,
		History:  a.history,
	}).Clone()
}

// Restore implements qd.Archive. The grid dimensions must match this archive.
func (a *Archive) Restore(p *qd.Population) error {
	if p == nil {
		return fmt.Errorf("cannot restore nil population")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Genomes.Dims != a.grid.Dims {
		return fmt.Errorf("population dims %v do not match archive dims %v: %w", p.Genomes.Dims, a.grid.Dims, qd.ErrPersistence)
	}
	restored := p.Clone()
	a.grid = restored.Genomes
	a.recycled = restored.Recycled
	a.history = restored.History
	return nil
}

// Axes implements qd.Archive.
func (a *Archive) Axes() ([]string, qd.Axis) {
	return append([]string{}, a.typologies...), a.axis
}
