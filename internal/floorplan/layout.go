// Package floorplan parses the text form of a generated floor plan, derives
// its behaviour descriptor and rasterizes it for the explorer grid.
//
// A layout reads like:
//
//	[prompt] a house with two bedrooms [layout] bedroom1: (0,0)(80,0)(80,60)(0,60), kitchen: (...)
//
// Everything up to the last "[layout]" marker is ignored. Rooms are separated
// by ", " and each room is "label: (x,y)(x,y)...".
package floorplan

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// LayoutMarker separates the natural-language prompt from the room list.
const LayoutMarker = "[layout]"

// ErrNoRooms is returned when no well-formed room could be parsed.
var ErrNoRooms = errors.New("layout contains no parseable rooms")

var pointPattern = regexp.MustCompile(`\((-?\d+(?:\.\d+)?),\s*(-?\d+(?:\.\d+)?)\)`)

// Point is a vertex in layout coordinates.
type Point struct {
	X, Y float64
}

// Room is one labelled polygon.
type Room struct {
	Label   string
	Polygon []Point
}

// Kind returns the label without its trailing ordinal: "bedroom2" -> "bedroom".
func (r Room) Kind() string {
	return strings.TrimRightFunc(r.Label, unicode.IsDigit)
}

// Area returns the polygon's absolute shoelace area.
func (r Room) Area() float64 {
	var sum float64
	n := len(r.Polygon)
	for i := 0; i < n; i++ {
		a, b := r.Polygon[i], r.Polygon[(i+1)%n]
		sum += a.X*b.Y - b.X*a.Y
	}
	return math.Abs(sum) / 2
}

// Layout is a parsed floor plan.
type Layout struct {
	Rooms []Room
}

// Parse extracts the rooms from text. Malformed room segments (for example a
// continuation truncated mid-room) are skipped; a layout with no valid room
// is an error.
func Parse(text string) (*Layout, error) {
	if i := strings.LastIndex(text, LayoutMarker); i >= 0 {
		text = text[i+len(LayoutMarker):]
	}
	text = strings.TrimSpace(text)

	layout := &Layout{}
	for _, segment := range strings.Split(text, ", ") {
		room, ok := parseRoom(segment)
		if ok {
			layout.Rooms = append(layout.Rooms, room)
		}
	}
	if len(layout.Rooms) == 0 {
		return nil, ErrNoRooms
	}
	return layout, nil
}

func parseRoom(segment string) (Room, bool) {
	label, coords, found := strings.Cut(strings.TrimSpace(segment), ":")
	if !found {
		return Room{}, false
	}
	label = strings.TrimSpace(label)
	if label == "" || strings.ContainsAny(label, " ()[]") {
		return Room{}, false
	}

	matches := pointPattern.FindAllStringSubmatch(coords, -1)
	if len(matches) < 3 {
		return Room{}, false
	}
	room := Room{Label: label, Polygon: make([]Point, 0, len(matches))}
	for _, m := range matches {
		x, errX := strconv.ParseFloat(m[1], 64)
		y, errY := strconv.ParseFloat(m[2], 64)
		if errX != nil || errY != nil {
			return Room{}, false
		}
		room.Polygon = append(room.Polygon, Point{X: x, Y: y})
	}
	return room, true
}

// Bounds returns the bounding box of all rooms.
func (l *Layout) Bounds() (lo, hi Point) {
	lo = Point{X: math.Inf(1), Y: math.Inf(1)}
	hi = Point{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, r := range l.Rooms {
		for _, p := range r.Polygon {
			lo.X, lo.Y = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y)
			hi.X, hi.Y = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y)
		}
	}
	return lo, hi
}

// Count returns how many rooms are of the given kind.
func (l *Layout) Count(kind string) int {
	n := 0
	for _, r := range l.Rooms {
		if r.Kind() == kind {
			n++
		}
	}
	return n
}

// Descriptor is a layout's position in behaviour space plus its fitness.
type Descriptor struct {
	Typology string  // "<bedrooms>b<bathrooms>b"
	Aspect   float64 // bounding-box width / height
	Fitness  float64 // fraction of the bounding box covered by rooms, capped at 1
}

// Describe computes the behaviour descriptor and fitness of a layout.
func (l *Layout) Describe() (Descriptor, error) {
	lo, hi := l.Bounds()
	w, h := hi.X-lo.X, hi.Y-lo.Y
	if w <= 0 || h <= 0 {
		return Descriptor{}, fmt.Errorf("degenerate layout bounds %.1fx%.1f", w, h)
	}

	var covered float64
	for _, r := range l.Rooms {
		covered += r.Area()
	}

	return Descriptor{
		Typology: fmt.Sprintf("%db%db", l.Count("bedroom"), l.Count("bathroom")),
		Aspect:   w / h,
		Fitness:  math.Min(1, covered/(w*h)),
	}, nil
}
