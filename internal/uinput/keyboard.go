// Package uinput exposes the virtual keyboard the driver types on.
package uinput

import (
	"fmt"

	evdev "github.com/holoplot/go-evdev"
)

// The virtual device identifies as an Asus USB keyboard.
const (
	busUSB    = 0x03
	vendorID  = 0x0b05
	productID = 0x1866
)

// Keyboard is a uinput keyboard limited to the key codes it was created
// with. Every emission is paired with a SYN_REPORT so consumers see
// complete frames.
type Keyboard struct {
	dev *evdev.InputDevice
}

// NewKeyboard registers a virtual keyboard capable of exactly the given
// keys.
func NewKeyboard(name string, keys []evdev.EvCode) (*Keyboard, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("virtual keyboard needs at least one key")
	}
	dev, err := evdev.CreateDevice(name, evdev.InputID{
		BusType: busUSB,
		Vendor:  vendorID,
		Product: productID,
		Version: 1,
	}, map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: keys,
	})
	if err != nil {
		return nil, fmt.Errorf("create uinput keyboard: %w", err)
	}
	return &Keyboard{dev: dev}, nil
}

func (k *Keyboard) write(code evdev.EvCode, value int32) error {
	if err := k.dev.WriteOne(&evdev.InputEvent{
		Type:  evdev.EV_KEY,
		Code:  code,
		Value: value,
	}); err != nil {
		return err
	}
	return k.dev.WriteOne(&evdev.InputEvent{
		Type: evdev.EV_SYN,
		Code: evdev.SYN_REPORT,
	})
}

// KeyDown presses a key.
func (k *Keyboard) KeyDown(code evdev.EvCode) error {
	return k.write(code, 1)
}

// KeyUp releases a key.
func (k *Keyboard) KeyUp(code evdev.EvCode) error {
	return k.write(code, 0)
}

// Tap emits one down+up pulse.
func (k *Keyboard) Tap(code evdev.EvCode) error {
	if err := k.write(code, 1); err != nil {
		return err
	}
	return k.write(code, 0)
}

// Close destroys the virtual device.
func (k *Keyboard) Close() error {
	return k.dev.Close()
}
