package numpad

import (
	"context"
	"fmt"

	evdev "github.com/holoplot/go-evdev"
)

// Source yields raw touchpad events. *evdev.InputDevice satisfies it.
type Source interface {
	ReadOne() (*evdev.InputEvent, error)
}

// translate filters the raw stream down to the events the state machine
// consumes: multitouch position reports and the single-finger tool state.
// Everything else (sync frames, multi-finger tools, pressure) is dropped.
func translate(ev *evdev.InputEvent) (Event, bool) {
	switch ev.Type {
	case evdev.EV_ABS:
		switch ev.Code {
		case evdev.ABS_MT_POSITION_X:
			return Event{Kind: PositionX, Value: ev.Value}, true
		case evdev.ABS_MT_POSITION_Y:
			return Event{Kind: PositionY, Value: ev.Value}, true
		}
	case evdev.EV_KEY:
		if ev.Code == evdev.BTN_TOOL_FINGER {
			if ev.Value == 1 {
				return Event{Kind: ContactDown}, true
			}
			if ev.Value == 0 {
				return Event{Kind: ContactUp}, true
			}
		}
	}
	return Event{}, false
}

// Run drives the controller until ctx is cancelled or the touchpad read
// fails. A single goroutine consumes both device events and gesture timer
// fires, so the controller never sees concurrent mutation. The only
// blocking points are the outer device read and the gesture timers.
func (c *Controller) Run(ctx context.Context, src Source) error {
	defer c.Close()

	events := make(chan Event, 32)
	readErr := make(chan error, 1)
	go func() {
		for {
			raw, err := src.ReadOne()
			if err != nil {
				readErr <- err
				return
			}
			ev, ok := translate(raw)
			if !ok {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			// Events already buffered ahead of the failure still count.
			for {
				select {
				case ev := <-events:
					c.HandleEvent(ev)
				default:
					return fmt.Errorf("touchpad read: %w", err)
				}
			}
		case ev := <-events:
			c.HandleEvent(ev)
		case t := <-c.timeouts:
			c.gestureTimeout(t)
		}
	}
}
