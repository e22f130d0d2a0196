// asusnumpad turns the touchpad of Asus laptops with a numpad overlay into
// a virtual numeric keypad.
//
// It reads raw touch events from the touchpad, classifies finger downs
// against the model's key grid, types on a virtual uinput keyboard, and
// drives the overlay backlight over I2C. Holding the top-right corner
// toggles numpad mode; the top-left corner cycles brightness (numpad on)
// or fires the custom action key after a hold (numpad off).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	evdev "github.com/holoplot/go-evdev"
	"github.com/spf13/cobra"

	"asusnumpad/internal/backlight"
	"asusnumpad/internal/config"
	"asusnumpad/internal/device"
	"asusnumpad/internal/layout"
	"asusnumpad/internal/logging"
	"asusnumpad/internal/notify"
	"asusnumpad/internal/numpad"
	"asusnumpad/internal/uinput"
)

var flags struct {
	model          string
	percentageKey  string
	customKey      string
	numpadDelay    float64
	customKeyDelay float64
	configPath     string
	wait           bool
	notify         bool
	listDevices    bool
	logLevel       string
}

func main() {
	root := &cobra.Command{
		Use:   "asusnumpad",
		Short: "Numpad driver for Asus touchpads with a numpad overlay",
		Long: `Numpad driver for Asus laptops whose numeric keypad is printed on the
touchpad. Hold the top-right corner to toggle numpad mode; with the numpad
on, the top-left corner cycles the backlight brightness, and with it off, a
hold on the top-left corner fires the custom action key.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd)
		},
	}

	root.Flags().StringVar(&flags.model, "model", "", "touchpad model: "+strings.Join(layout.Models(), ", "))
	root.Flags().StringVar(&flags.percentageKey, "percentage-key", "", `key for the "5" cell ("%" on qwerty layouts), as an evdev name or code`)
	root.Flags().StringVar(&flags.customKey, "custom-key", "", "key fired by holding the top-left corner with the numpad off")
	root.Flags().Float64Var(&flags.numpadDelay, "numpad-delay", 0, "hold time (seconds) before the numpad toggles")
	root.Flags().Float64Var(&flags.customKeyDelay, "custom-key-delay", 0, "hold time (seconds) before the custom key fires")
	root.Flags().StringVar(&flags.configPath, "config", "", "TOML config file (flags override it)")
	root.Flags().BoolVar(&flags.wait, "wait", false, "wait for the touchpad to appear instead of failing")
	root.Flags().BoolVar(&flags.notify, "notify", false, "send a desktop notification when the numpad toggles")
	root.Flags().BoolVar(&flags.listDevices, "list-devices", false, "print input device paths and names, then exit")
	root.Flags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default: LOG env or info)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command) error {
	log := logging.New(flags.logLevel)

	if flags.listDevices {
		return device.List(func(format string, a ...any) {
			fmt.Printf(format, a...)
		})
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var found *device.Found
	if flags.wait {
		found, err = device.WaitAndFind(ctx, log)
	} else {
		found, err = device.Find(log)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	log.Info().
		Str("touchpad", found.TouchpadName).
		Str("path", found.TouchpadPath).
		Str("keyboard", found.KeyboardName).
		Str("i2c_bus", found.I2CBus).
		Msg("devices bound")

	touchpad, err := evdev.Open(found.TouchpadPath)
	if err != nil {
		return fmt.Errorf("open touchpad %s: %w", found.TouchpadPath, err)
	}
	defer touchpad.Close()

	ext, err := touchpadExtents(touchpad)
	if err != nil {
		return err
	}
	log.Debug().
		Int32("min_x", ext.MinX).Int32("max_x", ext.MaxX).
		Int32("min_y", ext.MinY).Int32("max_y", ext.MaxY).
		Msg("touchpad extents")

	light, err := backlight.Open(found.I2CBus)
	if err != nil {
		return err
	}
	defer light.Close()

	keyboard, err := uinput.NewKeyboard("Asus Touchpad/Numpad", keyCapabilities(cfg))
	if err != nil {
		return err
	}
	defer keyboard.Close()

	var notif numpad.Notifier
	if cfg.Notify {
		desktop, err := notify.New(log)
		if err != nil {
			log.Warn().Err(err).Msg("desktop notifications unavailable")
		} else {
			defer desktop.Close()
			notif = desktop
		}
	}

	ctrl := numpad.New(log, cfg.Layout, ext, numpad.Options{
		PercentKey:  cfg.PercentKey,
		CustomKey:   cfg.CustomKey,
		NumpadDelay: cfg.NumpadDelay,
		CustomDelay: cfg.CustomDelay,
	}, keyboard, light, touchpad, notif)

	log.Info().Str("model", cfg.Model).Msg("asusnumpad running")
	if err := ctrl.Run(ctx, touchpad); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("asusnumpad stopped")
	return nil
}

// loadConfig layers defaults, the optional TOML file, and explicit flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	f := config.Default()
	if flags.configPath != "" {
		var err error
		f, err = config.Load(flags.configPath, f)
		if err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("model") {
		f.Model = flags.model
	}
	if cmd.Flags().Changed("percentage-key") {
		f.PercentageKey = flags.percentageKey
	}
	if cmd.Flags().Changed("custom-key") {
		f.CustomKey = flags.customKey
	}
	if cmd.Flags().Changed("numpad-delay") {
		f.NumpadDelay = flags.numpadDelay
	}
	if cmd.Flags().Changed("custom-key-delay") {
		f.CustomKeyDelay = flags.customKeyDelay
	}
	if cmd.Flags().Changed("notify") {
		f.Notify = flags.notify
	}
	return f.Resolve()
}

// touchpadExtents reads the absolute axis bounds once at startup.
func touchpadExtents(dev *evdev.InputDevice) (numpad.Extents, error) {
	infos, err := dev.AbsInfos()
	if err != nil {
		return numpad.Extents{}, fmt.Errorf("read touchpad axis ranges: %w", err)
	}
	x, ok := infos[evdev.ABS_X]
	if !ok {
		return numpad.Extents{}, fmt.Errorf("touchpad reports no ABS_X axis")
	}
	y, ok := infos[evdev.ABS_Y]
	if !ok {
		return numpad.Extents{}, fmt.Errorf("touchpad reports no ABS_Y axis")
	}
	ext := numpad.Extents{
		MinX: x.Minimum, MaxX: x.Maximum,
		MinY: y.Minimum, MaxY: y.Maximum,
	}
	if err := ext.Validate(); err != nil {
		return numpad.Extents{}, err
	}
	return ext, nil
}

// keyCapabilities is the full key set the virtual keyboard registers: the
// grid keys plus shift, numlock, the custom key, and the percentage key
// when it differs from KEY_5.
func keyCapabilities(cfg *config.Config) []evdev.EvCode {
	keys := cfg.Layout.KeyCodes()
	keys = append(keys, evdev.KEY_LEFTSHIFT, evdev.KEY_NUMLOCK, cfg.CustomKey)
	if cfg.PercentKey != evdev.KEY_5 {
		keys = append(keys, cfg.PercentKey)
	}
	seen := make(map[evdev.EvCode]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
