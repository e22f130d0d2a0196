package numpad

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asusnumpad/internal/layout"
)

var testExtents = Extents{MinX: 0, MaxX: 1000, MinY: 0, MaxY: 600}

func m433ia(t *testing.T) *layout.Spec {
	t.Helper()
	lay, err := layout.ForModel("m433ia")
	require.NoError(t, err)
	return lay
}

func TestClassifyNumlockCorner(t *testing.T) {
	lay := m433ia(t)
	// Anywhere with x > 0.95*maxX and y < 0.09*maxY is the numlock corner.
	for _, pos := range [][2]int32{{980, 20}, {951, 0}, {1000, 53}} {
		z := Classify(pos[0], pos[1], testExtents, lay, evdev.KEY_5)
		assert.Equal(t, ZoneNumlockCorner, z.Kind, "at %v", pos)
	}
	// Just outside either threshold is not.
	z := Classify(950, 20, testExtents, lay, evdev.KEY_5)
	assert.NotEqual(t, ZoneNumlockCorner, z.Kind)
	z = Classify(980, 54, testExtents, lay, evdev.KEY_5)
	assert.NotEqual(t, ZoneNumlockCorner, z.Kind)
}

func TestClassifyActionCorner(t *testing.T) {
	lay := m433ia(t)
	for _, pos := range [][2]int32{{10, 10}, {0, 0}, {59, 41}} {
		z := Classify(pos[0], pos[1], testExtents, lay, evdev.KEY_5)
		assert.Equal(t, ZoneActionCorner, z.Kind, "at %v", pos)
	}
	z := Classify(60, 10, testExtents, lay, evdev.KEY_5)
	assert.NotEqual(t, ZoneActionCorner, z.Kind)
}

func TestClassifyGridCell(t *testing.T) {
	lay := m433ia(t)
	// row = floor(4*200/600 - 0.3) = 1, col = floor(5*500/1001) = 2.
	z := Classify(500, 200, testExtents, lay, evdev.KEY_5)
	require.Equal(t, ZoneKey, z.Kind)
	assert.Equal(t, 1, z.Row)
	assert.Equal(t, 2, z.Col)
	assert.Equal(t, evdev.EvCode(evdev.KEY_KP6), z.Key)
	assert.False(t, z.Shift)
}

func TestClassifyDeadZone(t *testing.T) {
	lay := m433ia(t)
	// y inside the reserved top strip, away from both corners.
	z := Classify(500, 10, testExtents, lay, evdev.KEY_5)
	assert.Equal(t, ZoneDead, z.Kind)
}

func TestClassifyUnmappedCell(t *testing.T) {
	// A grid whose key table is shorter than the declared rows: positions
	// past the table classify as unmapped instead of panicking.
	short := &layout.Spec{
		Cols:      5,
		Rows:      4,
		TopOffset: 0.3,
		Keys: [][]evdev.EvCode{
			{evdev.KEY_KP7, evdev.KEY_KP8, evdev.KEY_KP9, evdev.KEY_KPSLASH, evdev.KEY_BACKSPACE},
			{evdev.KEY_KP4, evdev.KEY_KP5, evdev.KEY_KP6, evdev.KEY_KPASTERISK, evdev.KEY_BACKSPACE},
		},
	}
	z := Classify(500, 550, testExtents, short, evdev.KEY_5)
	assert.Equal(t, ZoneUnmapped, z.Kind)
}

func TestClassifyPercentageSubstitution(t *testing.T) {
	lay := m433ia(t)
	// keys[2][4] is the KEY_5 placeholder: col 4 needs x >= 801, row 2
	// needs y around 400.
	z := Classify(900, 400, testExtents, lay, evdev.KEY_APOSTROPHE)
	require.Equal(t, ZoneKey, z.Kind)
	assert.Equal(t, 2, z.Row)
	assert.Equal(t, 4, z.Col)
	assert.Equal(t, evdev.EvCode(evdev.KEY_APOSTROPHE), z.Key)
	assert.True(t, z.Shift, "substituted percentage key carries shift")

	// With the default percentage key the cell stays a bare KEY_5.
	z = Classify(900, 400, testExtents, lay, evdev.KEY_5)
	require.Equal(t, ZoneKey, z.Kind)
	assert.Equal(t, evdev.EvCode(evdev.KEY_5), z.Key)
	assert.False(t, z.Shift)
}

func TestExtentsValidate(t *testing.T) {
	assert.NoError(t, testExtents.Validate())
	assert.Error(t, Extents{MinX: 10, MaxX: 10, MinY: 0, MaxY: 5}.Validate())
	assert.Error(t, Extents{MinX: 0, MaxX: 5, MinY: 9, MaxY: 3}.Validate())
}
