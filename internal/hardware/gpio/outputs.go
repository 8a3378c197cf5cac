package gpio

import (
	"fmt"
	"sync"

	"github.com/oshokin/homee/internal/actuator"
)

// Outputs drives on/off devices: LEDs and the room light relay.
// Any value other than actuator.ValueOn switches the device off.
type Outputs struct {
	mu    sync.Mutex
	lines map[actuator.DeviceID]Line
}

// NewOutputs configures every line as an output, initially low.
func NewOutputs(lines map[actuator.DeviceID]Line) *Outputs {
	for _, line := range lines {
		line.Output()
		line.Low()
	}

	return &Outputs{lines: lines}
}

// Set implements actuator.Driver.
func (o *Outputs) Set(id actuator.DeviceID, value string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	line, found := o.lines[id]
	if !found {
		return fmt.Errorf("%w: %s", actuator.ErrUnknownDevice, id)
	}

	if value == actuator.ValueOn {
		line.High()
	} else {
		line.Low()
	}

	return nil
}

// Clear implements actuator.Driver.
func (o *Outputs) Clear(id actuator.DeviceID) error {
	return o.Set(id, "")
}
