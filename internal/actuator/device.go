package actuator

import (
	"errors"
	"fmt"
)

// Group is the unit of mutual exclusion.
type Group string

// Device groups.
const (
	GroupDisplay    Group = "display"
	GroupStatusLEDs Group = "status_leds"
	GroupAlertLEDs  Group = "alert_leds"
	GroupRoomLight  Group = "room_light"
)

// DeviceID names one output.
type DeviceID string

// Devices of the rig.
const (
	// Display is the status LCD.
	Display DeviceID = "display"
	// MotionLED is the red indicator lit while motion is active.
	MotionLED DeviceID = "led_motion"
	// ClearLED is the green indicator lit while the scene is clear.
	ClearLED DeviceID = "led_clear"
	// BadgeLED is the green LED pulsed on badge scans.
	BadgeLED DeviceID = "led_badge"
	// AlertLED is the red LED flashed by the intruder alarm.
	AlertLED DeviceID = "led_alert"
	// RoomLight is the room light relay.
	RoomLight DeviceID = "room_light"
)

// ValueOn is the value written to switch a binary output on.
const ValueOn = "on"

// Driver writes to physical outputs. Implementations must be fast relative to loop cadences.
type Driver interface {
	Set(id DeviceID, value string) error
	Clear(id DeviceID) error
}

// ErrUnknownDevice is returned by drivers for ids they do not handle.
var ErrUnknownDevice = errors.New("unknown device")

// Layout maps every device to the group that guards it.
type Layout map[DeviceID]Group

// DefaultLayout is the rig's device-to-group assignment.
func DefaultLayout() Layout {
	return Layout{
		Display:   GroupDisplay,
		MotionLED: GroupStatusLEDs,
		ClearLED:  GroupStatusLEDs,
		BadgeLED:  GroupStatusLEDs,
		AlertLED:  GroupAlertLEDs,
		RoomLight: GroupRoomLight,
	}
}

// Groups returns the distinct groups in a fixed order.
func (l Layout) Groups() []Group {
	order := []Group{GroupDisplay, GroupStatusLEDs, GroupAlertLEDs, GroupRoomLight}

	seen := make(map[Group]bool, len(l))
	for _, g := range l {
		seen[g] = true
	}

	out := make([]Group, 0, len(seen))
	for _, g := range order {
		if seen[g] {
			out = append(out, g)
			delete(seen, g)
		}
	}

	for g := range seen {
		out = append(out, g)
	}

	return out
}

// Mux routes each device to its own driver.
type Mux map[DeviceID]Driver

// Set implements Driver.
func (m Mux) Set(id DeviceID, value string) error {
	d, ok := m[id]
	if !ok {
		return fmt.Errorf("set %s: %w", id, ErrUnknownDevice)
	}

	return d.Set(id, value)
}

// Clear implements Driver.
func (m Mux) Clear(id DeviceID) error {
	d, ok := m[id]
	if !ok {
		return fmt.Errorf("clear %s: %w", id, ErrUnknownDevice)
	}

	return d.Clear(id)
}
