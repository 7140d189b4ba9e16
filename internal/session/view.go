package session

import (
	"fmt"
	"image"

	"github.com/dyluth/warren/internal/history"
	"github.com/dyluth/warren/pkg/qd"
	"github.com/dyluth/warren/pkg/store"
)

// View is the rendered window over one history step.
type View struct {
	SessionID string     `json:"session_id"`
	Step      int        `json:"step"`
	Steps     int        `json:"steps"`
	XStart    int        `json:"x_start"`
	YStart    float64    `json:"y_start"`
	Selected  int        `json:"selected"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Columns   []string   `json:"columns"`
	Rows      []string   `json:"rows"`
	Cells     []ViewCell `json:"cells"`
}

// ViewCell is one window position. Genome is nil for empty cells and for
// rows outside the archive.
type ViewCell struct {
	Index     int        `json:"index"`
	X         int        `json:"x"`
	Y         int        `json:"y"`
	InArchive bool       `json:"in_archive"`
	Genome    *qd.Genome `json:"genome,omitempty"`
}

// Occupied reports whether the cell holds an elite.
func (c ViewCell) Occupied() bool {
	return c.Genome != nil
}

func buildView(svc *Service, record *store.SessionRecord, step *int) (*View, error) {
	e := svc.explorer(record.Viewport)
	if err := e.Validate(); err != nil {
		return nil, err
	}

	if step == nil {
		step = record.SelectedStep
	}
	steps := history.New(record.Steps...)
	index, err := steps.Resolve(step)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	snap, _ := steps.Get(index)

	window := e.Window()
	cells := make([]ViewCell, len(window))
	for i, c := range window {
		cells[i] = ViewCell{Index: c.Index, X: c.X, Y: c.Y, InArchive: c.InArchive}
		if c.InArchive {
			if g := snap.At(c.X, c.Y); g != nil {
				cp := *g
				cells[i].Genome = &cp
			}
		}
	}

	return &View{
		SessionID: record.SessionID,
		Step:      index,
		Steps:     steps.Len(),
		XStart:    record.Viewport.XStart,
		YStart:    record.Viewport.YStart,
		Selected:  record.Viewport.LastClicked,
		Width:     e.Width,
		Height:    e.Height,
		Columns:   e.ColumnLabels(),
		Rows:      e.RowLabels(),
		Cells:     cells,
	}, nil
}

func renderTile(svc *Service, record *store.SessionRecord, step *int, index int) (image.Image, error) {
	view, err := buildView(svc, record, step)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(view.Cells) {
		return nil, fmt.Errorf("tile index %d outside window [0, %d): %w", index, len(view.Cells), ErrInvalidArgument)
	}
	cell := view.Cells[index]
	if !cell.Occupied() {
		return svc.blankTile(), nil
	}
	return svc.renderer.Render(cell.Genome), nil
}

// ViewRecord renders a record loaded without a lock.
func (s *Service) ViewRecord(record *store.SessionRecord, step *int) (*View, error) {
	return buildView(s, record, step)
}

// TileRecord renders one cell of a record loaded without a lock.
func (s *Service) TileRecord(record *store.SessionRecord, step *int, index int) (image.Image, error) {
	return renderTile(s, record, step, index)
}
