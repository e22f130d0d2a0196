package numpad

import (
	"errors"
	"testing"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyEv struct {
	code  evdev.EvCode
	value int32
}

type fakeSink struct {
	events  []keyEv
	downErr error
	upErr   error
	tapErr  error
}

func (s *fakeSink) KeyDown(code evdev.EvCode) error {
	s.events = append(s.events, keyEv{code, 1})
	return s.downErr
}

func (s *fakeSink) KeyUp(code evdev.EvCode) error {
	s.events = append(s.events, keyEv{code, 0})
	return s.upErr
}

func (s *fakeSink) Tap(code evdev.EvCode) error {
	s.events = append(s.events, keyEv{code, 1}, keyEv{code, 0})
	return s.tapErr
}

type lightSet struct {
	on    bool
	level Brightness
}

type fakeLight struct {
	sets []lightSet
	err  error
}

func (l *fakeLight) Set(on bool, level Brightness) error {
	l.sets = append(l.sets, lightSet{on, level})
	return l.err
}

type fakeGrab struct {
	grabs, ungrabs int
}

func (g *fakeGrab) Grab() error   { g.grabs++; return nil }
func (g *fakeGrab) Ungrab() error { g.ungrabs++; return nil }

type fakeNotify struct {
	toggles []bool
}

func (n *fakeNotify) NumpadToggled(enabled bool) {
	n.toggles = append(n.toggles, enabled)
}

type fakeTimer struct {
	fn      func()
	delay   time.Duration
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := t.stopped
	t.stopped = true
	return !was
}

type harness struct {
	ctrl   *Controller
	sink   *fakeSink
	light  *fakeLight
	grab   *fakeGrab
	notify *fakeNotify
	timers []*fakeTimer
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	if opts.PercentKey == 0 {
		opts.PercentKey = evdev.KEY_5
	}
	if opts.CustomKey == 0 {
		opts.CustomKey = evdev.KEY_PLAYPAUSE
	}
	if opts.NumpadDelay == 0 {
		opts.NumpadDelay = 400 * time.Millisecond
	}
	if opts.CustomDelay == 0 {
		opts.CustomDelay = 400 * time.Millisecond
	}

	h := &harness{
		sink:   &fakeSink{},
		light:  &fakeLight{},
		grab:   &fakeGrab{},
		notify: &fakeNotify{},
	}
	h.ctrl = New(zerolog.Nop(), m433ia(t), testExtents, opts, h.sink, h.light, h.grab, h.notify)
	h.ctrl.schedule = func(d time.Duration, fn func()) stopper {
		ft := &fakeTimer{fn: fn, delay: d}
		h.timers = append(h.timers, ft)
		return ft
	}
	return h
}

func (h *harness) touch(x, y int32) {
	h.ctrl.HandleEvent(Event{Kind: PositionX, Value: x})
	h.ctrl.HandleEvent(Event{Kind: PositionY, Value: y})
	h.ctrl.HandleEvent(Event{Kind: ContactDown})
}

func (h *harness) release() {
	h.ctrl.HandleEvent(Event{Kind: ContactUp})
}

// fire runs the most recent timer's callback and delivers the resulting
// timeout the way Run's select loop would.
func (h *harness) fire(t *testing.T) {
	t.Helper()
	require.NotEmpty(t, h.timers, "no gesture timer scheduled")
	h.timers[len(h.timers)-1].fn()
	h.drain()
}

func (h *harness) drain() {
	for {
		select {
		case to := <-h.ctrl.timeouts:
			h.ctrl.gestureTimeout(to)
		default:
			return
		}
	}
}

// enable toggles numpad mode on via the corner hold and clears the fakes.
func (h *harness) enable(t *testing.T) {
	t.Helper()
	h.touch(980, 20)
	h.fire(t)
	h.release()
	require.True(t, h.ctrl.Enabled())
	h.sink.events = nil
	h.light.sets = nil
	h.timers = nil
	h.notify.toggles = nil
}

func TestNumlockHoldTogglesNumpad(t *testing.T) {
	h := newHarness(t, Options{NumpadDelay: 250 * time.Millisecond})

	h.touch(980, 20)
	require.Len(t, h.timers, 1)
	assert.Equal(t, 250*time.Millisecond, h.timers[0].delay)
	assert.Empty(t, h.sink.events, "nothing fires before the hold elapses")

	h.fire(t)
	assert.True(t, h.ctrl.Enabled())
	assert.Equal(t, []keyEv{{evdev.KEY_NUMLOCK, 1}}, h.sink.events)
	assert.Equal(t, 1, h.grab.grabs)
	assert.Equal(t, []lightSet{{true, BrightnessLow}}, h.light.sets)
	assert.Equal(t, []bool{true}, h.notify.toggles)
	h.release()

	// A second hold toggles back off and releases the grab.
	h.touch(990, 30)
	h.fire(t)
	h.release()
	assert.False(t, h.ctrl.Enabled())
	assert.Equal(t, keyEv{evdev.KEY_NUMLOCK, 0}, h.sink.events[len(h.sink.events)-1])
	assert.Equal(t, 1, h.grab.ungrabs)
	assert.Equal(t, lightSet{false, BrightnessLow}, h.light.sets[len(h.light.sets)-1])
	assert.Equal(t, []bool{true, false}, h.notify.toggles)
}

func TestNumlockReleasedBeforeDelayTogglesNothing(t *testing.T) {
	h := newHarness(t, Options{})

	h.touch(980, 20)
	h.release()
	require.Len(t, h.timers, 1)
	assert.True(t, h.timers[0].stopped)

	// Even if the callback raced past Stop, the stale sequence number
	// keeps it from acting.
	h.timers[0].fn()
	h.drain()
	assert.False(t, h.ctrl.Enabled())
	assert.Empty(t, h.sink.events)
	assert.Empty(t, h.light.sets)
}

func TestNumlockFingerDriftedOutOfCorner(t *testing.T) {
	h := newHarness(t, Options{})

	h.touch(980, 20)
	// Finger slides away while the timer runs.
	h.ctrl.HandleEvent(Event{Kind: PositionX, Value: 500})
	h.fire(t)
	assert.False(t, h.ctrl.Enabled())
	assert.Empty(t, h.sink.events)
}

func TestBrightnessCyclesImmediatelyWhenEnabled(t *testing.T) {
	h := newHarness(t, Options{})
	h.enable(t)

	h.touch(10, 10)
	assert.Empty(t, h.timers, "brightness cycling never waits for the hold delay")
	assert.Empty(t, h.sink.events, "no key is emitted")
	assert.Equal(t, []lightSet{{true, BrightnessMedium}}, h.light.sets)
	h.release()

	h.touch(10, 10)
	h.release()
	h.touch(10, 10)
	h.release()
	assert.Equal(t, []lightSet{
		{true, BrightnessMedium},
		{true, BrightnessHigh},
		{true, BrightnessLow},
	}, h.light.sets, "rotation wraps low -> medium -> high -> low")
}

func TestCustomActionHoldFiresOnce(t *testing.T) {
	h := newHarness(t, Options{CustomKey: evdev.KEY_PLAYPAUSE, CustomDelay: 300 * time.Millisecond})

	h.touch(10, 10)
	require.Len(t, h.timers, 1)
	assert.Equal(t, 300*time.Millisecond, h.timers[0].delay)

	h.fire(t)
	assert.Equal(t, []keyEv{{evdev.KEY_PLAYPAUSE, 1}, {evdev.KEY_PLAYPAUSE, 0}}, h.sink.events)

	// Keeping the finger down does not refire; releasing emits nothing.
	h.release()
	assert.Equal(t, []keyEv{{evdev.KEY_PLAYPAUSE, 1}, {evdev.KEY_PLAYPAUSE, 0}}, h.sink.events)
}

func TestCustomActionReleasedEarlyFiresNothing(t *testing.T) {
	h := newHarness(t, Options{})

	h.touch(10, 10)
	h.release()
	require.Len(t, h.timers, 1)
	assert.True(t, h.timers[0].stopped)
	h.timers[0].fn()
	h.drain()
	assert.Empty(t, h.sink.events)
}

func TestKeyRoundTrip(t *testing.T) {
	h := newHarness(t, Options{})
	h.enable(t)

	h.touch(500, 200) // keys[1][2] = KP6
	h.release()
	assert.Equal(t, []keyEv{{evdev.KEY_KP6, 1}, {evdev.KEY_KP6, 0}}, h.sink.events)
}

func TestPercentageKeyShiftBracketing(t *testing.T) {
	h := newHarness(t, Options{PercentKey: evdev.KEY_APOSTROPHE})
	h.enable(t)

	h.touch(900, 400) // the KEY_5 placeholder cell
	h.release()
	assert.Equal(t, []keyEv{
		{evdev.KEY_LEFTSHIFT, 1},
		{evdev.KEY_APOSTROPHE, 1},
		{evdev.KEY_APOSTROPHE, 0},
		{evdev.KEY_LEFTSHIFT, 0},
	}, h.sink.events)
}

func TestSecondDownWhileHeldIsIgnored(t *testing.T) {
	h := newHarness(t, Options{})
	h.enable(t)

	h.touch(500, 200)
	// A duplicate down without an intervening up must not repeat-fire.
	h.ctrl.HandleEvent(Event{Kind: ContactDown})
	assert.Equal(t, []keyEv{{evdev.KEY_KP6, 1}}, h.sink.events)

	h.release()
	assert.Equal(t, []keyEv{{evdev.KEY_KP6, 1}, {evdev.KEY_KP6, 0}}, h.sink.events)
}

func TestFailedKeyUpStillClearsHeldState(t *testing.T) {
	h := newHarness(t, Options{})
	h.enable(t)

	h.touch(500, 200)
	h.sink.upErr = errors.New("device gone")
	h.release()
	h.sink.upErr = nil

	// The machine must not wedge in the held state: the next tap works.
	h.touch(500, 200)
	h.release()
	assert.Equal(t, []keyEv{
		{evdev.KEY_KP6, 1},
		{evdev.KEY_KP6, 0},
		{evdev.KEY_KP6, 1},
		{evdev.KEY_KP6, 0},
	}, h.sink.events)
}

func TestFailedKeyDownStillMarksHeld(t *testing.T) {
	h := newHarness(t, Options{})
	h.enable(t)

	h.sink.downErr = errors.New("device busy")
	h.touch(500, 200)
	h.sink.downErr = nil

	// Compatibility behavior: the key counts as held even though the
	// press never reached the device, so further downs are ignored until
	// the release arrives.
	h.ctrl.HandleEvent(Event{Kind: ContactDown})
	assert.Equal(t, []keyEv{{evdev.KEY_KP6, 1}}, h.sink.events)
	h.release()
	assert.Equal(t, keyEv{evdev.KEY_KP6, 0}, h.sink.events[len(h.sink.events)-1])
}

func TestDisabledNumpadIgnoresGridTouches(t *testing.T) {
	h := newHarness(t, Options{})

	h.touch(500, 200)
	h.release()
	assert.Empty(t, h.sink.events)
	assert.Empty(t, h.timers)
}

func TestDeadZoneAndUnmappedProduceNoKeys(t *testing.T) {
	h := newHarness(t, Options{})
	h.enable(t)

	h.touch(500, 10) // reserved top strip
	h.release()
	assert.Empty(t, h.sink.events)
}

func TestCloseReleasesGrabAndKey(t *testing.T) {
	h := newHarness(t, Options{})
	h.enable(t)

	h.touch(500, 200)
	h.ctrl.Close()

	assert.Equal(t, []keyEv{
		{evdev.KEY_KP6, 1},
		{evdev.KEY_KP6, 0},
		{evdev.KEY_NUMLOCK, 0},
	}, h.sink.events)
	assert.Equal(t, 1, h.grab.ungrabs)
	require.NotEmpty(t, h.light.sets)
	assert.False(t, h.light.sets[len(h.light.sets)-1].on)
	assert.False(t, h.ctrl.Enabled())
}

func TestCloseCancelsPendingGesture(t *testing.T) {
	h := newHarness(t, Options{})

	h.touch(980, 20)
	require.Len(t, h.timers, 1)
	h.ctrl.Close()
	assert.True(t, h.timers[0].stopped)
	assert.False(t, h.ctrl.Enabled())
}
