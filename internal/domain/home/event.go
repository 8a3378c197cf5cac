package home

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventKind names what happened.
type EventKind string

// Event kinds emitted by the loops.
const (
	EventMotionStart        EventKind = "MotionStart"
	EventMotionEnd          EventKind = "MotionEnd"
	EventIntruderDetected   EventKind = "IntruderDetected"
	EventBadgeIn            EventKind = "BadgeIn"
	EventBadgeOut           EventKind = "BadgeOut"
	EventSensorDegraded     EventKind = "SensorDegraded"
	EventLightOn            EventKind = "LightOn"
	EventLightOff           EventKind = "LightOff"
	EventLightSystemToggled EventKind = "LightSystemToggled"
)

// Event is an immutable activity record. Build it with NewEvent and never modify it afterwards.
type Event struct {
	// ID uniquely identifies the event.
	ID string
	// Kind names what happened.
	Kind EventKind
	// Timestamp is when it happened.
	Timestamp time.Time
	// Source names the loop that produced the event (motion, intruder, badge, ...).
	Source string
	// Payload carries kind-specific details.
	Payload map[string]string
}

// NewEvent creates an event with a fresh ID. The payload map is copied.
func NewEvent(kind EventKind, source string, at time.Time, payload map[string]string) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: at,
		Source:    source,
		Payload:   maps.Clone(payload),
	}
}

// Detail renders the payload as sorted key=value pairs.
func (e Event) Detail() string {
	keys := slices.Sorted(maps.Keys(e.Payload))

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, e.Payload[k]))
	}

	return strings.Join(parts, " ")
}
