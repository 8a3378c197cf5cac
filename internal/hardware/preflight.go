package hardware

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/homee/internal/logger"
)

// ErrAlreadyRunning is returned when another monitor process owns the hardware.
var ErrAlreadyRunning = errors.New("another instance is already running")

// pigpiodExecutable holds the GPIO daemon that conflicts with direct register access.
const pigpiodExecutable = "pigpiod"

// ProcessLister lists running processes. ps.Processes satisfies it.
type ProcessLister func() ([]ps.Process, error)

// Preflight checks the host before any pin is touched. It fails when another
// process runs the same executable and warns when pigpiod may fight over GPIO.
func Preflight(ctx context.Context, executable string, list ProcessLister) error {
	if list == nil {
		list = ps.Processes
	}

	processList, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		switch process.Executable() {
		case executable:
			return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, executable, process.Pid())
		case pigpiodExecutable:
			logger.WarnKV(ctx, "pigpiod is running and may conflict with GPIO access",
				"pid", process.Pid())
		}
	}

	return nil
}
