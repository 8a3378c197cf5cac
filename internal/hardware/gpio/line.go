package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// Line is a single GPIO pin.
type Line interface {
	Output()
	Input()
	PullUp()
	High()
	Low()
	Read() rpio.State
}

// Open maps the GPIO registers. Call Close when done.
func Open() error {
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("open gpio: %w", err)
	}

	return nil
}

// Close unmaps the GPIO registers.
func Close() error {
	return rpio.Close()
}

// Pin returns the BCM pin as a Line.
func Pin(bcm int) Line {
	return rpio.Pin(bcm)
}
