package serialdev

import (
	"fmt"
	"sync"

	"github.com/oshokin/homee/internal/actuator"
)

// LCD command bytes for SerLCD-compatible backpacks.
const (
	lcdCommand = 0xFE
	lcdClear   = 0x01
)

// LCD drives a serial character display as the actuator.Display device.
type LCD struct {
	mu   sync.Mutex
	port Port
}

// NewLCD wraps an open port.
func NewLCD(port Port) *LCD {
	return &LCD{port: port}
}

// Set implements actuator.Driver: it writes text at the cursor.
func (l *LCD) Set(id actuator.DeviceID, value string) error {
	if id != actuator.Display {
		return fmt.Errorf("%w: %s", actuator.ErrUnknownDevice, id)
	}

	return l.write([]byte(value))
}

// Clear implements actuator.Driver: it blanks the screen and homes the cursor.
func (l *LCD) Clear(id actuator.DeviceID) error {
	if id != actuator.Display {
		return fmt.Errorf("%w: %s", actuator.ErrUnknownDevice, id)
	}

	return l.write([]byte{lcdCommand, lcdClear})
}

// Close releases the port.
func (l *LCD) Close() error {
	return l.port.Close()
}

func (l *LCD) write(b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.port.Write(b); err != nil {
		return fmt.Errorf("write lcd: %w", err)
	}

	return nil
}
