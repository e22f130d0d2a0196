// Package layout holds the per-model numpad grid geometry.
//
// A layout is pure data: column/row counts, the fraction of a row height
// reserved as a dead zone at the top of the pad, and the key grid itself.
// The KEY_5 cell is a placeholder for the locale-configurable percentage
// key; substitution happens at classification time, not here.
package layout

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// Spec describes one model's numpad grid.
type Spec struct {
	Cols      int
	Rows      int
	TopOffset float64 // fraction of a row height, dead zone at the top
	Keys      [][]evdev.EvCode
}

// Validate checks that the declared dimensions match the key grid.
func (s *Spec) Validate() error {
	if s.Cols <= 0 || s.Rows <= 0 {
		return fmt.Errorf("layout dimensions %dx%d must be positive", s.Cols, s.Rows)
	}
	if s.TopOffset < 0 || s.TopOffset >= 1 {
		return fmt.Errorf("top offset %v out of range [0, 1)", s.TopOffset)
	}
	if len(s.Keys) != s.Rows {
		return fmt.Errorf("layout declares %d rows but key grid has %d", s.Rows, len(s.Keys))
	}
	for r, row := range s.Keys {
		if len(row) != s.Cols {
			return fmt.Errorf("layout row %d has %d keys, want %d", r, len(row), s.Cols)
		}
	}
	return nil
}

// KeyAt returns the key at (row, col), or ok=false when the cell is outside
// the grid. Out-of-range cells are expected near the pad edges and are not
// an error.
func (s *Spec) KeyAt(row, col int) (evdev.EvCode, bool) {
	if row < 0 || row >= len(s.Keys) {
		return 0, false
	}
	if col < 0 || col >= len(s.Keys[row]) {
		return 0, false
	}
	return s.Keys[row][col], true
}

// KeyCodes returns the distinct key codes of the grid, sorted. Used to
// register the virtual keyboard's capabilities.
func (s *Spec) KeyCodes() []evdev.EvCode {
	seen := make(map[evdev.EvCode]struct{})
	for _, row := range s.Keys {
		for _, k := range row {
			seen[k] = struct{}{}
		}
	}
	out := make([]evdev.EvCode, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Built-in model tables. The UX433FA shares the M433IA's 5x4 grid; it has no
// table of its own.
var models = map[string]*Spec{
	"gx701": {
		Cols:      4,
		Rows:      5,
		TopOffset: 0,
		Keys: [][]evdev.EvCode{
			{evdev.KEY_CALC, evdev.KEY_KPSLASH, evdev.KEY_KPASTERISK, evdev.KEY_KPMINUS},
			{evdev.KEY_KP7, evdev.KEY_KP8, evdev.KEY_KP9, evdev.KEY_KPPLUS},
			{evdev.KEY_KP4, evdev.KEY_KP5, evdev.KEY_KP6, evdev.KEY_KPPLUS},
			{evdev.KEY_KP1, evdev.KEY_KP2, evdev.KEY_KP3, evdev.KEY_KPENTER},
			{evdev.KEY_KP0, evdev.KEY_KP0, evdev.KEY_KPDOT, evdev.KEY_KPENTER},
		},
	},
	"m433ia": {
		Cols:      5,
		Rows:      4,
		TopOffset: 0.3,
		Keys: [][]evdev.EvCode{
			{evdev.KEY_KP7, evdev.KEY_KP8, evdev.KEY_KP9, evdev.KEY_KPSLASH, evdev.KEY_BACKSPACE},
			{evdev.KEY_KP4, evdev.KEY_KP5, evdev.KEY_KP6, evdev.KEY_KPASTERISK, evdev.KEY_BACKSPACE},
			{evdev.KEY_KP1, evdev.KEY_KP2, evdev.KEY_KP3, evdev.KEY_KPMINUS, evdev.KEY_5},
			{evdev.KEY_KP0, evdev.KEY_KPDOT, evdev.KEY_KPENTER, evdev.KEY_KPPLUS, evdev.KEY_KPEQUAL},
		},
	},
	"ux581l": {
		Cols:      4,
		Rows:      5,
		TopOffset: 0.3,
		Keys: [][]evdev.EvCode{
			{evdev.KEY_KPEQUAL, evdev.KEY_5, evdev.KEY_BACKSPACE, evdev.KEY_BACKSPACE},
			{evdev.KEY_KP7, evdev.KEY_KP8, evdev.KEY_KP9, evdev.KEY_KPSLASH},
			{evdev.KEY_KP4, evdev.KEY_KP5, evdev.KEY_KP6, evdev.KEY_KPASTERISK},
			{evdev.KEY_KP1, evdev.KEY_KP2, evdev.KEY_KP3, evdev.KEY_KPMINUS},
			{evdev.KEY_KP0, evdev.KEY_KPDOT, evdev.KEY_KPENTER, evdev.KEY_KPPLUS},
		},
	},
}

var aliases = map[string]string{
	"ux433fa": "m433ia",
}

// Models lists the supported model names, sorted.
func Models() []string {
	out := make([]string, 0, len(models)+len(aliases))
	for m := range models {
		out = append(out, m)
	}
	for m := range aliases {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// ForModel returns the built-in layout for a model name.
func ForModel(model string) (*Spec, error) {
	name := strings.ToLower(strings.TrimSpace(model))
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	s, ok := models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q (supported: %s)", model, strings.Join(Models(), ", "))
	}
	return s, nil
}

// FromGrid builds a custom layout from key names, as read from a config
// file. The result is validated.
func FromGrid(cols, rows int, topOffset float64, names [][]string) (*Spec, error) {
	s := &Spec{Cols: cols, Rows: rows, TopOffset: topOffset}
	for r, row := range names {
		keys := make([]evdev.EvCode, 0, len(row))
		for c, name := range row {
			code, err := ParseKey(name)
			if err != nil {
				return nil, fmt.Errorf("layout cell [%d][%d]: %w", r, c, err)
			}
			keys = append(keys, code)
		}
		s.Keys = append(s.Keys, keys)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseKey resolves a key given as an evdev name ("KEY_KPENTER", "kpenter")
// or a numeric key code.
func ParseKey(name string) (evdev.EvCode, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return 0, fmt.Errorf("empty key name")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > int(evdev.KEY_MAX) {
			return 0, fmt.Errorf("key code %d out of range", n)
		}
		return evdev.EvCode(n), nil
	}
	full := strings.ToUpper(s)
	if !strings.HasPrefix(full, "KEY_") {
		full = "KEY_" + full
	}
	if code, ok := evdev.KEYFromString[full]; ok {
		return code, nil
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

// KeyName returns the evdev name for a key code, for logs.
func KeyName(code evdev.EvCode) string {
	return evdev.CodeName(evdev.EV_KEY, code)
}
