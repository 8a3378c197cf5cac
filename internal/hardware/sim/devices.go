package sim

import (
	"context"
	"maps"
	"sync"

	"github.com/oshokin/homee/internal/actuator"
	"github.com/oshokin/homee/internal/logger"
)

// Devices is an actuator.Driver that remembers and logs every write.
type Devices struct {
	ctx    context.Context //nolint:containedctx // Logging only.
	mu     sync.Mutex
	states map[actuator.DeviceID]string
	writes int
}

// NewDevices creates a driver that logs through the context logger.
func NewDevices(ctx context.Context) *Devices {
	return &Devices{
		ctx:    logger.WithName(ctx, "sim"),
		states: make(map[actuator.DeviceID]string),
	}
}

// Set implements actuator.Driver.
func (d *Devices) Set(id actuator.DeviceID, value string) error {
	d.mu.Lock()
	d.states[id] = value
	d.writes++
	d.mu.Unlock()

	logger.DebugKV(d.ctx, "Device set", "device", id, "value", value)

	return nil
}

// Clear implements actuator.Driver.
func (d *Devices) Clear(id actuator.DeviceID) error {
	d.mu.Lock()
	delete(d.states, id)
	d.writes++
	d.mu.Unlock()

	logger.DebugKV(d.ctx, "Device cleared", "device", id)

	return nil
}

// State returns the last value written to id.
func (d *Devices) State(id actuator.DeviceID) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	value, found := d.states[id]

	return value, found
}

// States returns a copy of every device that is currently set.
func (d *Devices) States() map[actuator.DeviceID]string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return maps.Clone(d.states)
}

// Writes returns the number of operations performed.
func (d *Devices) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.writes
}
