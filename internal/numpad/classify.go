// Package numpad implements the touchpad-to-numpad interpretation core:
// zone classification, the press-and-hold gesture timers, and the contact
// state machine that turns raw touchpad events into key and backlight
// commands.
package numpad

import (
	"fmt"
	"math"

	evdev "github.com/holoplot/go-evdev"

	"asusnumpad/internal/layout"
)

// Extents are the absolute axis bounds reported by the touchpad, read once
// at startup.
type Extents struct {
	MinX, MaxX int32
	MinY, MaxY int32
}

// Validate rejects degenerate axis ranges.
func (e Extents) Validate() error {
	if e.MaxX <= e.MinX || e.MaxY <= e.MinY {
		return fmt.Errorf("degenerate touchpad extents x=%d..%d y=%d..%d", e.MinX, e.MaxX, e.MinY, e.MaxY)
	}
	return nil
}

// ZoneKind is the result of classifying a touch position.
type ZoneKind int

const (
	// ZoneNumlockCorner is the top-right sliver that toggles numpad mode.
	ZoneNumlockCorner ZoneKind = iota
	// ZoneActionCorner is the top-left sliver (custom key / brightness).
	ZoneActionCorner
	// ZoneDead is the reserved strip above the grid; produces nothing.
	ZoneDead
	// ZoneUnmapped is a grid cell outside the key table; produces nothing.
	ZoneUnmapped
	// ZoneKey is an ordinary numpad key.
	ZoneKey
)

// Zone is a classified touch position. Key and Shift are meaningful only
// when Kind is ZoneKey; Key is already percentage-substituted.
type Zone struct {
	Kind     ZoneKind
	Key      evdev.EvCode
	Shift    bool // bracket the key with left shift
	Row, Col int
}

// Corner thresholds, as fractions of the axis maximum.
const (
	numlockCornerX = 0.95 // x above this and
	numlockCornerY = 0.09 // y below this is the numlock corner
	actionCornerX  = 0.06 // x below this and
	actionCornerY  = 0.07 // y below this is the action corner
)

func inNumlockCorner(x, y int32, e Extents) bool {
	return float64(x) > numlockCornerX*float64(e.MaxX) && float64(y) < numlockCornerY*float64(e.MaxY)
}

func inActionCorner(x, y int32, e Extents) bool {
	return float64(x) < actionCornerX*float64(e.MaxX) && float64(y) < actionCornerY*float64(e.MaxY)
}

// Classify maps a touch position to a zone. percentKey replaces the KEY_5
// placeholder cell; when it is a key other than KEY_5 the emitted key gets a
// shift bracket (shift+key is how "%" is typed on such locales).
func Classify(x, y int32, e Extents, lay *layout.Spec, percentKey evdev.EvCode) Zone {
	if inNumlockCorner(x, y, e) {
		return Zone{Kind: ZoneNumlockCorner}
	}
	if inActionCorner(x, y, e) {
		return Zone{Kind: ZoneActionCorner}
	}

	col := int(math.Floor(float64(lay.Cols) * float64(x) / float64(e.MaxX+1)))
	row := int(math.Floor(float64(lay.Rows)*float64(y)/float64(e.MaxY) - lay.TopOffset))
	if row < 0 {
		return Zone{Kind: ZoneDead, Row: row, Col: col}
	}

	key, ok := lay.KeyAt(row, col)
	if !ok {
		return Zone{Kind: ZoneUnmapped, Row: row, Col: col}
	}

	z := Zone{Kind: ZoneKey, Key: key, Row: row, Col: col}
	if key == evdev.KEY_5 && percentKey != evdev.KEY_5 {
		z.Key = percentKey
		z.Shift = true
	}
	return z
}
