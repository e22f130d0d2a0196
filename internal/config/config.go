// Package config loads the driver configuration: built-in defaults, an
// optional TOML file, and flag overrides applied by the CLI on top.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	evdev "github.com/holoplot/go-evdev"

	"asusnumpad/internal/layout"
)

// File is the raw configuration as written by the user. Key fields hold
// evdev names ("KEY_KPENTER", "apostrophe") or numeric codes; delays are in
// seconds, matching the historical CLI.
type File struct {
	Model          string      `toml:"model"`
	PercentageKey  string      `toml:"percentage_key"`
	CustomKey      string      `toml:"custom_key"`
	NumpadDelay    float64     `toml:"numpad_delay"`
	CustomKeyDelay float64     `toml:"custom_key_delay"`
	Notify         bool        `toml:"notify"`
	Layout         *LayoutFile `toml:"layout"`
}

// LayoutFile overrides the model's built-in grid.
type LayoutFile struct {
	Cols      int        `toml:"cols"`
	Rows      int        `toml:"rows"`
	TopOffset float64    `toml:"top_offset"`
	Keys      [][]string `toml:"keys"`
}

// Default mirrors the driver's historical defaults.
func Default() File {
	return File{
		Model:          "m433ia",
		PercentageKey:  "KEY_5",
		CustomKey:      "KEY_PLAYPAUSE",
		NumpadDelay:    0.4,
		CustomKeyDelay: 0.4,
	}
}

// Load reads a TOML file over the given base values. Unknown keys are an
// error so typos do not silently fall back to defaults.
func Load(path string, base File) (File, error) {
	f := base
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config: %w", err)
	}
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return f, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return f, fmt.Errorf("config %s: unknown key %q", path, undec[0].String())
	}
	return f, nil
}

// Config is the resolved, validated runtime configuration.
type Config struct {
	Model       string
	PercentKey  evdev.EvCode
	CustomKey   evdev.EvCode
	NumpadDelay time.Duration
	CustomDelay time.Duration
	Notify      bool
	Layout      *layout.Spec
}

// Resolve validates a File and turns it into runtime values.
func (f File) Resolve() (*Config, error) {
	if f.NumpadDelay <= 0 {
		return nil, fmt.Errorf("numpad_delay %v must be positive", f.NumpadDelay)
	}
	if f.CustomKeyDelay <= 0 {
		return nil, fmt.Errorf("custom_key_delay %v must be positive", f.CustomKeyDelay)
	}

	percent, err := layout.ParseKey(f.PercentageKey)
	if err != nil {
		return nil, fmt.Errorf("percentage_key: %w", err)
	}
	custom, err := layout.ParseKey(f.CustomKey)
	if err != nil {
		return nil, fmt.Errorf("custom_key: %w", err)
	}

	var lay *layout.Spec
	if f.Layout != nil {
		lay, err = layout.FromGrid(f.Layout.Cols, f.Layout.Rows, f.Layout.TopOffset, f.Layout.Keys)
		if err != nil {
			return nil, fmt.Errorf("custom layout: %w", err)
		}
	} else {
		lay, err = layout.ForModel(f.Model)
		if err != nil {
			return nil, err
		}
		if err := lay.Validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", f.Model, err)
		}
	}

	return &Config{
		Model:       f.Model,
		PercentKey:  percent,
		CustomKey:   custom,
		NumpadDelay: time.Duration(f.NumpadDelay * float64(time.Second)),
		CustomDelay: time.Duration(f.CustomKeyDelay * float64(time.Second)),
		Notify:      f.Notify,
		Layout:      lay,
	}, nil
}
