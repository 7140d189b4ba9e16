package viewport

import (
	"math/rand/v2"
	"testing"

	"github.com/dyluth/warren/pkg/qd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTypologies = []string{"1b1b", "2b1b", "2b2b", "3b1b", "3b2b", "3b3b", "4b1b", "4b2b", "4b3b", "4b4b"}

func newTestExplorer() *Explorer {
	return &Explorer{
		Width:      5,
		Height:     5,
		YStep:      0.1,
		Typologies: testTypologies,
		Axis:       qd.Axis{Min: 0.5, BinWidth: 0.1, Bins: 20},
		State:      State{XStart: 0, YStart: 1.0, LastClicked: NoClick},
	}
}

func TestRecenter_NoClickIsNoop(t *testing.T) {
	e := newTestExplorer()
	e.State.XStart = 3
	before := e.State

	e.Recenter()

	assert.Equal(t, before, e.State)
}

func TestRecenter_AlreadyCentered(t *testing.T) {
	e := newTestExplorer()
	require.NoError(t, e.Click(12))

	e.Recenter()

	assert.Equal(t, 0, e.State.XStart)
	assert.InDelta(t, 1.0, e.State.YStart, 1e-9)
	assert.Equal(t, 12, e.State.LastClicked)
}

func TestRecenter_MovesClickedCellToMiddle(t *testing.T) {
	e := newTestExplorer()
	e.State.XStart = 2
	// row 0, column 4 -> real typology 6
	require.NoError(t, e.Click(4))

	e.Recenter()

	assert.Equal(t, 4, e.State.XStart)
	assert.InDelta(t, 0.8, e.State.YStart, 1e-9)
	assert.Equal(t, 2*5+2, e.State.LastClicked)
	assert.Equal(t, "4b1b", e.Typologies[e.State.XStart+e.State.LastClicked%e.Width])
}

func TestRecenter_ClampsAtLeftEdge(t *testing.T) {
	e := newTestExplorer()
	// row 4, column 0 -> typology 0
	require.NoError(t, e.Click(20))

	e.Recenter()

	assert.Equal(t, 0, e.State.XStart)
	assert.InDelta(t, 1.2, e.State.YStart, 1e-9)
	// column stays 0 because of the clamp, row becomes the middle row
	assert.Equal(t, 2*5+0, e.State.LastClicked)
}

func TestRecenter_ClampsAtRightEdge(t *testing.T) {
	e := newTestExplorer()
	e.State.XStart = 5
	// row 2, column 4 -> typology 9
	require.NoError(t, e.Click(14))

	e.Recenter()

	assert.Equal(t, 5, e.State.XStart)
	assert.Equal(t, 14, e.State.LastClicked)
	assert.Equal(t, "4b4b", e.Typologies[e.State.XStart+e.State.LastClicked%e.Width])
}

func TestRecenter_YStartUnclampedByDefault(t *testing.T) {
	e := newTestExplorer()
	for i := 0; i < 20; i++ {
		require.NoError(t, e.Click(0))
		e.Recenter()
	}
	assert.Less(t, e.State.YStart, e.Axis.Min)
}

func TestRecenter_ClampY(t *testing.T) {
	e := newTestExplorer()
	e.ClampY = true
	e.State.YStart = 0.5
	// row 0, column 2: wants to move up two rows, axis floor stops it
	require.NoError(t, e.Click(2))

	e.Recenter()

	assert.InDelta(t, 0.5, e.State.YStart, 1e-9)
	assert.Equal(t, 2, e.State.LastClicked)
}

func TestRecenter_ClampY_StartOffAxis(t *testing.T) {
	tests := []struct {
		name     string
		yStart   float64
		click    int
		wantY    float64
		wantLast int
	}{
		{"above the axis", 3.0, 2, 2.0, 4*5 + 2},
		{"below the axis", 0.0, 4*5 + 1, 0.5, 0*5 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExplorer()
			e.ClampY = true
			e.State.YStart = tt.yStart
			require.NoError(t, e.Click(tt.click))

			e.Recenter()

			assert.InDelta(t, tt.wantY, e.State.YStart, 1e-9)
			assert.Equal(t, tt.wantLast, e.State.LastClicked)
		})
	}
}

func TestRecenter_XStartInvariantHolds(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	e := newTestExplorer()

	for i := 0; i < 500; i++ {
		require.NoError(t, e.Click(rng.IntN(e.Size())))
		e.Recenter()

		assert.GreaterOrEqual(t, e.State.XStart, 0)
		assert.LessOrEqual(t, e.State.XStart, len(e.Typologies)-e.Width)
		assert.GreaterOrEqual(t, e.State.LastClicked, 0)
		assert.Less(t, e.State.LastClicked, e.Size())
	}
}

func TestRecenter_PreservesRealColumn(t *testing.T) {
	for xStart := 0; xStart <= 5; xStart++ {
		for idx := 0; idx < 25; idx++ {
			e := newTestExplorer()
			e.State.XStart = xStart
			require.NoError(t, e.Click(idx))
			realCol := xStart + idx%5

			e.Recenter()

			assert.Equal(t, realCol, e.State.XStart+e.State.LastClicked%5, "xStart=%d idx=%d", xStart, idx)
			assert.Equal(t, 2, e.State.LastClicked/5, "clicked cell must land on the middle row")
		}
	}
}

func TestClick(t *testing.T) {
	e := newTestExplorer()
	assert.NoError(t, e.Click(24))
	assert.NoError(t, e.Click(NoClick))
	assert.Equal(t, NoClick, e.State.LastClicked)
	assert.Error(t, e.Click(25))
	assert.Error(t, e.Click(-2))
}

func TestValidate(t *testing.T) {
	e := newTestExplorer()
	assert.NoError(t, e.Validate())

	narrow := newTestExplorer()
	narrow.Typologies = testTypologies[:4]
	err := narrow.Validate()
	require.Error(t, err)
	assert.True(t, qd.IsPrecondition(err))

	zero := newTestExplorer()
	zero.YStep = 0
	assert.True(t, qd.IsConfiguration(zero.Validate()))
}

func TestWindowAndLabels(t *testing.T) {
	e := newTestExplorer()
	e.State.XStart = 3
	e.State.YStart = 2.3

	cells := e.Window()
	require.Len(t, cells, 25)

	assert.Equal(t, 3, cells[0].X)
	assert.Equal(t, 18, cells[0].Y)
	assert.True(t, cells[0].InArchive)
	assert.Equal(t, 19, cells[5].Y)
	// rows from 2.50 upward fall past the top of the axis
	assert.False(t, cells[10].InArchive)
	assert.Equal(t, 7, cells[24].X)

	assert.Equal(t, []string{"3b1b", "3b2b", "3b3b", "4b1b", "4b2b"}, e.ColumnLabels())
	assert.Equal(t, []string{"2.30", "2.40", "2.50", "2.60", "2.70"}, e.RowLabels())
}
