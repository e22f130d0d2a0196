// Package notify sends optional desktop notifications when numpad mode
// toggles. Failure to reach a session bus only disables the feature; the
// driver usually runs as root, where no session bus exists.
package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = "/org/freedesktop/Notifications"
	method     = "org.freedesktop.Notifications.Notify"

	expireMs = 2000
)

// Desktop posts notifications over the session bus.
type Desktop struct {
	log  zerolog.Logger
	conn *dbus.Conn
}

// New connects to the session bus.
func New(log zerolog.Logger) (*Desktop, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &Desktop{log: log, conn: conn}, nil
}

// NumpadToggled posts a transient mode-change notification. Errors are
// logged and swallowed; notifications are cosmetic.
func (d *Desktop) NumpadToggled(enabled bool) {
	summary := "Numpad disabled"
	if enabled {
		summary = "Numpad enabled"
	}
	obj := d.conn.Object(busName, objectPath)
	call := obj.Call(method, 0,
		"asusnumpad",       // app name
		uint32(0),          // replaces id
		"input-keyboard",   // icon
		summary,
		"",                 // body
		[]string{},         // actions
		map[string]dbus.Variant{},
		int32(expireMs),
	)
	if call.Err != nil {
		d.log.Warn().Err(call.Err).Msg("cannot send desktop notification")
	}
}

func (d *Desktop) Close() error {
	return d.conn.Close()
}
