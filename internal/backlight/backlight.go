// Package backlight drives the numpad overlay light over I2C.
//
// The touchpad controller listens on address 0x15 of the I2C bus it hangs
// off; one 13-byte write sets the backlight state. Byte 11 selects the
// brightness tier (0x00 turns the light off). This replaces the historical
// shelling out to i2ctransfer with a direct /dev/i2c-* write.
package backlight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"asusnumpad/internal/numpad"
)

const ctrlAddr = 0x15

// i2cSlaveForce is the I2C_SLAVE_FORCE ioctl from <linux/i2c-dev.h>;
// golang.org/x/sys/unix does not export it.
const i2cSlaveForce = 0x0706

// brightnessByte maps a tier to the controller's brightness value.
func brightnessByte(level numpad.Brightness) byte {
	switch level {
	case numpad.BrightnessMedium:
		return 0x18
	case numpad.BrightnessHigh:
		return 0x01
	default:
		return 0x1f
	}
}

// command builds the 13-byte set-state payload.
func command(bright byte) []byte {
	return []byte{
		0x05, 0x00, 0x3d, 0x03, 0x06, 0x00,
		0x07, 0x00, 0x0d, 0x14, 0x03, bright, 0xad,
	}
}

// Device is an open handle on the touchpad controller's I2C bus.
type Device struct {
	f   *os.File
	bus string
}

// Open binds to the controller on /dev/i2c-<bus>.
func Open(bus string) (*Device, error) {
	path := "/dev/i2c-" + bus
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// The kernel driver owns the address; force-claim it the way
	// i2ctransfer -f does.
	if err := unix.IoctlSetInt(int(f.Fd()), i2cSlaveForce, ctrlAddr); err != nil {
		f.Close()
		return nil, fmt.Errorf("claim i2c address %#x on %s: %w", ctrlAddr, path, err)
	}
	return &Device{f: f, bus: bus}, nil
}

// Bus returns the bound bus number, for logs.
func (d *Device) Bus() string { return d.bus }

// Set lights the numpad at the given tier, or turns it off.
func (d *Device) Set(on bool, level numpad.Brightness) error {
	var bright byte
	if on {
		bright = brightnessByte(level)
	}
	if _, err := d.f.Write(command(bright)); err != nil {
		return fmt.Errorf("i2c backlight write: %w", err)
	}
	return nil
}

func (d *Device) Close() error {
	return d.f.Close()
}
