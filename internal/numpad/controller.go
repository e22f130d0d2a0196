package numpad

import (
	"time"

	evdev "github.com/holoplot/go-evdev"
	"github.com/rs/zerolog"

	"asusnumpad/internal/layout"
)

// Brightness is the backlight tier, cycled low -> medium -> high -> low.
type Brightness int

const (
	BrightnessLow Brightness = iota
	BrightnessMedium
	BrightnessHigh
)

func (b Brightness) next() Brightness {
	return (b + 1) % 3
}

func (b Brightness) String() string {
	switch b {
	case BrightnessLow:
		return "low"
	case BrightnessMedium:
		return "medium"
	case BrightnessHigh:
		return "high"
	}
	return "invalid"
}

// KeySink emits key events on the virtual keyboard. Implementations must
// pair every emission with a SYN_REPORT.
type KeySink interface {
	KeyDown(code evdev.EvCode) error
	KeyUp(code evdev.EvCode) error
	// Tap emits one down+up pulse.
	Tap(code evdev.EvCode) error
}

// Backlight drives the numpad overlay light. off is level-independent.
type Backlight interface {
	Set(on bool, level Brightness) error
}

// Grabber takes and releases the exclusive grab on the physical touchpad.
// Grabbed while numpad mode is active so finger motion stops moving the
// pointer.
type Grabber interface {
	Grab() error
	Ungrab() error
}

// Notifier is told about numpad mode changes. Optional.
type Notifier interface {
	NumpadToggled(enabled bool)
}

// Options tune the controller.
type Options struct {
	PercentKey  evdev.EvCode  // replaces the KEY_5 placeholder cell
	CustomKey   evdev.EvCode  // emitted by the action-corner hold gesture
	NumpadDelay time.Duration // hold time for the numlock corner
	CustomDelay time.Duration // hold time for the action corner
}

// GestureKind identifies which corner a pending hold gesture belongs to.
type GestureKind int

const (
	GestureNumlock GestureKind = iota
	GestureAction
)

func (g GestureKind) String() string {
	if g == GestureNumlock {
		return "numlock"
	}
	return "custom-action"
}

// stopper is the cancel side of a scheduled gesture timer.
type stopper interface {
	Stop() bool
}

// scheduleFunc schedules fn once after d. The returned stopper cancels a
// fire that has not happened yet; a fire that already raced past Stop is
// discarded by the sequence check in gestureTimeout.
type scheduleFunc func(d time.Duration, fn func()) stopper

type pendingGesture struct {
	kind GestureKind
	seq  uint64
	stop stopper
}

type timeout struct {
	kind GestureKind
	seq  uint64
}

// Controller is the interaction state machine. It is not safe for
// concurrent use: Run owns it, and every mutation (including gesture timer
// fires) happens on Run's goroutine.
type Controller struct {
	log   zerolog.Logger
	lay   *layout.Spec
	ext   Extents
	opts  Options
	sink  KeySink
	light Backlight
	pad   Grabber
	notif Notifier

	schedule scheduleFunc
	timeouts chan timeout

	// Touch state, single writer.
	x, y       int32
	activeKey  evdev.EvCode
	keyHeld    bool
	shiftHeld  bool
	enabled    bool
	brightness Brightness
	pending    *pendingGesture
	seq        uint64
}

// New builds a controller. notif may be nil.
func New(log zerolog.Logger, lay *layout.Spec, ext Extents, opts Options, sink KeySink, light Backlight, pad Grabber, notif Notifier) *Controller {
	c := &Controller{
		log:      log,
		lay:      lay,
		ext:      ext,
		opts:     opts,
		sink:     sink,
		light:    light,
		pad:      pad,
		notif:    notif,
		timeouts: make(chan timeout, 2),
	}
	c.schedule = func(d time.Duration, fn func()) stopper {
		return time.AfterFunc(d, fn)
	}
	return c
}

// Enabled reports whether numpad mode is active.
func (c *Controller) Enabled() bool { return c.enabled }

// EventKind distinguishes the touchpad reports the controller consumes.
type EventKind int

const (
	// PositionX and PositionY update one coordinate of the latest known
	// touch position. The hardware reports them before the contact state
	// in the same frame, so position updates never trigger decisions.
	PositionX EventKind = iota
	PositionY
	// ContactDown and ContactUp are finger contact transitions.
	ContactDown
	ContactUp
)

// Event is one touchpad report.
type Event struct {
	Kind  EventKind
	Value int32
}

// HandleEvent feeds one touchpad event through the state machine.
func (c *Controller) HandleEvent(ev Event) {
	switch ev.Kind {
	case PositionX:
		c.x = ev.Value
	case PositionY:
		c.y = ev.Value
	case ContactDown:
		c.contactDown()
	case ContactUp:
		c.contactUp()
	}
}

func (c *Controller) contactDown() {
	// A down while a key is held (or a gesture is pending) means we missed
	// or dropped a release; ignore it so a key cannot repeat-fire without
	// an intervening up.
	if c.keyHeld || c.pending != nil {
		return
	}

	c.log.Debug().Int32("x", c.x).Int32("y", c.y).Msg("finger down")

	z := Classify(c.x, c.y, c.ext, c.lay, c.opts.PercentKey)
	switch z.Kind {
	case ZoneNumlockCorner:
		c.startGesture(GestureNumlock, c.opts.NumpadDelay)

	case ZoneActionCorner:
		if c.enabled {
			// With the numpad on, the corner cycles brightness
			// immediately; the hold delay applies only to the custom
			// action.
			c.cycleBrightness()
		} else {
			c.startGesture(GestureAction, c.opts.CustomDelay)
		}

	case ZoneDead, ZoneUnmapped:
		if !c.enabled {
			return
		}
		c.log.Debug().Int("row", z.Row).Int("col", z.Col).Msg("touch outside key grid")

	case ZoneKey:
		if !c.enabled {
			return
		}
		c.pressKey(z)
	}
}

func (c *Controller) pressKey(z Zone) {
	if z.Shift {
		if err := c.sink.KeyDown(evdev.KEY_LEFTSHIFT); err != nil {
			c.log.Warn().Err(err).Msg("cannot send shift press")
		}
	}
	c.log.Debug().Str("key", layout.KeyName(z.Key)).Msg("send key press")
	if err := c.sink.KeyDown(z.Key); err != nil {
		c.log.Warn().Err(err).Str("key", layout.KeyName(z.Key)).Msg("cannot send key press")
	}
	// The key is considered held even when the write failed, so the
	// matching release still runs. See DESIGN.md on this compatibility
	// choice.
	c.activeKey = z.Key
	c.keyHeld = true
	c.shiftHeld = z.Shift
}

func (c *Controller) contactUp() {
	c.log.Debug().Int32("x", c.x).Int32("y", c.y).Msg("finger up")

	switch {
	case c.pending != nil && c.pending.kind == GestureNumlock:
		c.cancelPending()

	case c.pending != nil && c.pending.kind == GestureAction:
		c.cancelPending()

	case c.keyHeld:
		if err := c.sink.KeyUp(c.activeKey); err != nil {
			c.log.Error().Err(err).Str("key", layout.KeyName(c.activeKey)).Msg("cannot send key release")
		}
		if c.shiftHeld {
			if err := c.sink.KeyUp(evdev.KEY_LEFTSHIFT); err != nil {
				c.log.Error().Err(err).Msg("cannot send shift release")
			}
		}
		// Always clear, even on a failed write, or the state machine
		// would wedge in the held state.
		c.activeKey = 0
		c.keyHeld = false
		c.shiftHeld = false
	}
}

func (c *Controller) startGesture(kind GestureKind, delay time.Duration) {
	c.seq++
	p := &pendingGesture{kind: kind, seq: c.seq}
	seq := c.seq
	p.stop = c.schedule(delay, func() {
		c.timeouts <- timeout{kind: kind, seq: seq}
	})
	c.pending = p
	c.log.Debug().Stringer("gesture", kind).Dur("delay", delay).Msg("hold gesture started")
}

func (c *Controller) cancelPending() {
	p := c.pending
	c.pending = nil
	p.stop.Stop()
	c.log.Debug().Stringer("gesture", p.kind).Msg("hold gesture aborted")
}

// gestureTimeout runs on Run's goroutine when a hold timer fires. The
// sequence check drops fires that raced with a cancellation; the position
// re-check guards against a finger that drifted out of the corner while
// the timer ran.
func (c *Controller) gestureTimeout(t timeout) {
	if c.pending == nil || c.pending.seq != t.seq {
		return
	}
	c.pending = nil

	switch t.kind {
	case GestureNumlock:
		if !inNumlockCorner(c.x, c.y, c.ext) {
			return
		}
		c.toggleNumpad()

	case GestureAction:
		if !inActionCorner(c.x, c.y, c.ext) {
			return
		}
		c.log.Debug().Str("key", layout.KeyName(c.opts.CustomKey)).Msg("send custom action")
		if err := c.sink.Tap(c.opts.CustomKey); err != nil {
			c.log.Warn().Err(err).Msg("cannot send custom action")
		}
	}
}

func (c *Controller) toggleNumpad() {
	c.enabled = !c.enabled
	c.log.Info().Bool("enabled", c.enabled).Msg("numpad toggled")

	if c.enabled {
		if err := c.sink.KeyDown(evdev.KEY_NUMLOCK); err != nil {
			c.log.Warn().Err(err).Msg("cannot send numlock press")
		}
		if err := c.pad.Grab(); err != nil {
			c.log.Warn().Err(err).Msg("cannot grab touchpad")
		}
		if err := c.light.Set(true, c.brightness); err != nil {
			c.log.Warn().Err(err).Msg("cannot light numpad backlight")
		}
	} else {
		if err := c.sink.KeyUp(evdev.KEY_NUMLOCK); err != nil {
			c.log.Warn().Err(err).Msg("cannot send numlock release")
		}
		if err := c.pad.Ungrab(); err != nil {
			c.log.Warn().Err(err).Msg("cannot release touchpad grab")
		}
		if err := c.light.Set(false, c.brightness); err != nil {
			c.log.Warn().Err(err).Msg("cannot turn numpad backlight off")
		}
	}

	if c.notif != nil {
		c.notif.NumpadToggled(c.enabled)
	}
}

func (c *Controller) cycleBrightness() {
	c.brightness = c.brightness.next()
	c.log.Info().Stringer("brightness", c.brightness).Msg("backlight brightness")
	if err := c.light.Set(true, c.brightness); err != nil {
		c.log.Warn().Err(err).Msg("cannot set numpad brightness")
	}
}

// Close releases everything the controller may hold: a pending gesture
// timer, a held key, and, when numpad mode is on, the touchpad grab and the
// backlight. Runs on the loop goroutine on every exit path.
func (c *Controller) Close() {
	if c.pending != nil {
		c.cancelPending()
	}
	if c.keyHeld {
		c.contactUp()
	}
	if c.enabled {
		c.toggleNumpad()
	}
}
