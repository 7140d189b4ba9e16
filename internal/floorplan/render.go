package floorplan

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/dyluth/warren/pkg/qd"
	"golang.org/x/image/vector"
)

// DefaultTileSize is the edge length of a rendered tile in pixels.
const DefaultTileSize = 256

var (
	blankColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	unknownColor = color.RGBA{R: 200, G: 200, B: 200, A: 255}

	roomColors = map[string]color.RGBA{
		"bedroom":     {R: 238, G: 130, B: 99, A: 255},
		"bathroom":    {R: 95, G: 158, B: 209, A: 255},
		"kitchen":     {R: 245, G: 200, B: 90, A: 255},
		"living_room": {R: 132, G: 190, B: 120, A: 255},
		"corridor":    {R: 170, G: 150, B: 200, A: 255},
	}
)

// Renderer rasterizes genomes into square tiles.
type Renderer struct {
	TileSize int
}

// NewRenderer returns a renderer for tiles of the given size.
func NewRenderer(tileSize int) *Renderer {
	if tileSize < 1 {
		tileSize = DefaultTileSize
	}
	return &Renderer{TileSize: tileSize}
}

// Blank returns the placeholder tile used for empty cells.
func (r *Renderer) Blank() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.TileSize, r.TileSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(blankColor), image.Point{}, draw.Src)
	return img
}

// Render draws g's rooms scaled into a tile. Empty cells, failed genomes and
// unparseable layouts render as the blank placeholder.
func (r *Renderer) Render(g *qd.Genome) *image.RGBA {
	img := r.Blank()
	if g == nil || !g.OK() {
		return img
	}
	layout, err := Parse(g.ResultObj)
	if err != nil {
		return img
	}

	lo, hi := layout.Bounds()
	w, h := hi.X-lo.X, hi.Y-lo.Y
	if w <= 0 || h <= 0 {
		return img
	}

	margin := float64(r.TileSize) * 0.05
	scale := (float64(r.TileSize) - 2*margin) / math.Max(w, h)

	for _, room := range layout.Rooms {
		raster := vector.NewRasterizer(r.TileSize, r.TileSize)
		for i, p := range room.Polygon {
			x := float32(margin + (p.X-lo.X)*scale)
			y := float32(margin + (p.Y-lo.Y)*scale)
			if i == 0 {
				raster.MoveTo(x, y)
			} else {
				raster.LineTo(x, y)
			}
		}
		raster.ClosePath()

		fill, ok := roomColors[room.Kind()]
		if !ok {
			fill = unknownColor
		}
		raster.Draw(img, img.Bounds(), image.NewUniform(fill), image.Point{})
	}
	return img
}

// EncodePNG writes img to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode tile: %w", err)
	}
	return nil
}
