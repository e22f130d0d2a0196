// Package device locates the physical devices the driver needs: the Asus
// touchpad (and the I2C bus its controller hangs off), and the internal
// keyboard. Discovery failures here are the only fatal errors in the
// program.
package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	evdev "github.com/holoplot/go-evdev"
	"github.com/rs/zerolog"
)

const inputDir = "/dev/input"

// Distinct startup failures, per reason, so the exit path can say which
// device is missing.
var (
	ErrNoTouchpad = errors.New("no Asus touchpad found")
	ErrNoDeviceID = errors.New("cannot resolve the touchpad's I2C bus")
	ErrNoKeyboard = errors.New("no internal keyboard found")
)

// Found is the result of discovery. The keyboard is located only to prove
// we are on a machine with the expected input topology; the driver types on
// its own virtual device.
type Found struct {
	TouchpadPath string
	TouchpadName string
	KeyboardPath string
	KeyboardName string
	I2CBus       string
}

func isTouchpadName(name string) bool {
	return (strings.Contains(name, "ASUE") || strings.Contains(name, "ELAN")) &&
		strings.Contains(name, "Touchpad")
}

func isKeyboardName(name string) bool {
	return strings.Contains(name, "AT Translated Set 2 keyboard") ||
		strings.Contains(name, "Asus Keyboard")
}

// scan opens every event node once and matches by device name.
func scan(log zerolog.Logger) (touchpadPath, touchpadName, keyboardPath, keyboardName string) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		log.Debug().Err(err).Msg("cannot list input devices")
		return
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].Path < paths[j].Path })

	for _, p := range paths {
		dev, err := evdev.OpenWithFlags(p.Path, os.O_RDONLY)
		if err != nil {
			continue
		}
		name, _ := dev.Name()
		dev.Close()

		if touchpadPath == "" && isTouchpadName(name) {
			log.Debug().Str("path", p.Path).Str("name", name).Msg("detected touchpad")
			touchpadPath, touchpadName = p.Path, name
		}
		if keyboardPath == "" && isKeyboardName(name) {
			log.Debug().Str("path", p.Path).Str("name", name).Msg("detected keyboard")
			keyboardPath, keyboardName = p.Path, name
		}
		if touchpadPath != "" && keyboardPath != "" {
			break
		}
	}
	return
}

var i2cBusRe = regexp.MustCompile(`i2c-(\d+)`)

// parseI2CBus extracts the bus number from a resolved sysfs device path
// such as .../i2c_designware.0/i2c-1/i2c-ASUE1209:00/....
func parseI2CBus(sysPath string) (string, bool) {
	m := i2cBusRe.FindStringSubmatch(sysPath)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// i2cBusFor resolves the I2C bus of an event node via its sysfs device
// link.
func i2cBusFor(eventPath string) (string, error) {
	link := filepath.Join("/sys/class/input", filepath.Base(eventPath), "device")
	sysPath, err := filepath.EvalSymlinks(link)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", link, err)
	}
	bus, ok := parseI2CBus(sysPath)
	if !ok {
		return "", fmt.Errorf("no i2c bus in %s", sysPath)
	}
	return bus, nil
}

// Find locates the touchpad, its I2C bus, and the keyboard in one scan.
func Find(log zerolog.Logger) (*Found, error) {
	tp, tpName, kb, kbName := scan(log)
	if tp == "" {
		return nil, ErrNoTouchpad
	}
	if kb == "" {
		return nil, ErrNoKeyboard
	}
	bus, err := i2cBusFor(tp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDeviceID, err)
	}
	return &Found{
		TouchpadPath: tp,
		TouchpadName: tpName,
		KeyboardPath: kb,
		KeyboardName: kbName,
		I2CBus:       bus,
	}, nil
}

// WaitAndFind behaves like Find but blocks until the devices appear,
// watching /dev/input for new nodes. Lets the daemon start from a boot
// unit before the kernel has bound the touchpad.
func WaitAndFind(ctx context.Context, log zerolog.Logger) (*Found, error) {
	if found, err := Find(log); err == nil {
		return found, nil
	} else if !errors.Is(err, ErrNoTouchpad) && !errors.Is(err, ErrNoKeyboard) {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", inputDir, err)
	}
	defer w.Close()
	if err := w.Add(inputDir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", inputDir, err)
	}
	log.Info().Str("dir", inputDir).Msg("waiting for input devices")

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-w.Errors:
			return nil, fmt.Errorf("watch %s: %w", inputDir, err)
		case ev := <-w.Events:
			if !ev.Has(fsnotify.Create) {
				continue
			}
			// The node may not be openable the instant it appears;
			// a failed rescan just waits for the next event.
			found, err := Find(log)
			if err == nil {
				return found, nil
			}
			if !errors.Is(err, ErrNoTouchpad) && !errors.Is(err, ErrNoKeyboard) {
				return nil, err
			}
		}
	}
}

// List prints every input device's path and name, for --list-devices.
func List(out func(format string, a ...any)) error {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return err
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].Path < paths[j].Path })
	for _, p := range paths {
		dev, err := evdev.OpenWithFlags(p.Path, os.O_RDONLY)
		if err != nil {
			out("%s\t(unreadable: %v)\n", p.Path, err)
			continue
		}
		name, _ := dev.Name()
		dev.Close()
		out("%s\t%q\n", p.Path, name)
	}
	return nil
}
