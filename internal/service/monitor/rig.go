package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/oshokin/homee/internal/actuator"
	"github.com/oshokin/homee/internal/config"
	"github.com/oshokin/homee/internal/hardware/gpio"
	"github.com/oshokin/homee/internal/hardware/serialdev"
	"github.com/oshokin/homee/internal/hardware/sim"
	"github.com/oshokin/homee/internal/logger"
	"github.com/oshokin/homee/internal/sensor"
	"github.com/oshokin/homee/internal/service/badge"
)

// Seeds of the simulated rangers. Fixed so that simulator runs are reproducible.
const (
	motionSeed   = 1
	intruderSeed = 2
)

// rig is the hardware the loops drive.
type rig struct {
	// driver writes every output device.
	driver actuator.Driver
	// motion and intruder are the two distance sensors.
	motion   sensor.Ranger
	intruder sensor.Ranger
	// badges is nil when badge reading is disabled.
	badges badge.Reader
	// presses is nil when there is no light-system button.
	presses func(ctx context.Context) <-chan struct{}
	// closers are released in reverse order by close.
	closers []io.Closer
}

// closerFunc adapts a function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openRig builds the hardware named by cfg.Hardware.Driver.
func openRig(ctx context.Context, cfg *config.Config) (*rig, error) {
	switch cfg.Hardware.Driver {
	case config.DriverSim:
		return openSimRig(ctx, cfg), nil
	case config.DriverGPIO:
		return openGPIORig(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown hardware driver %q", cfg.Hardware.Driver)
	}
}

// openSimRig returns log-only outputs, noisy rangers and a scripted badge reader.
func openSimRig(ctx context.Context, cfg *config.Config) *rig {
	s := cfg.Hardware.Sim

	visit := sim.Visit{
		Every:    s.VisitEvery,
		For:      s.VisitFor,
		Distance: s.VisitCM,
	}

	logger.InfoKV(ctx, "Using simulated hardware",
		"motion_base_cm", s.MotionBaseCM, "intruder_base_cm", s.IntruderBaseCM, "badges", len(s.Badges))

	return &rig{
		driver:   sim.NewDevices(ctx),
		motion:   sim.NewNoisyRanger(s.MotionBaseCM, s.JitterCM, visit, motionSeed),
		intruder: sim.NewNoisyRanger(s.IntruderBaseCM, s.JitterCM, sim.Visit{}, intruderSeed),
		badges:   sim.NewBadgeReader(s.BadgeInterval, s.Badges...),
	}
}

// openGPIORig maps the GPIO registers and opens the serial devices.
// Whatever was opened is released again when a later step fails.
func openGPIORig(ctx context.Context, cfg *config.Config) (r *rig, err error) {
	hw := cfg.Hardware

	if err = gpio.Open(); err != nil {
		return nil, err
	}

	r = &rig{closers: []io.Closer{closerFunc(gpio.Close)}}

	defer func() {
		if err != nil {
			_ = r.close()
			r = nil
		}
	}()

	outputs := gpio.NewOutputs(map[actuator.DeviceID]gpio.Line{
		actuator.MotionLED: gpio.Pin(hw.MotionLEDPin),
		actuator.ClearLED:  gpio.Pin(hw.ClearLEDPin),
		actuator.BadgeLED:  gpio.Pin(hw.BadgeLEDPin),
		actuator.AlertLED:  gpio.Pin(hw.AlertLEDPin),
		actuator.RoomLight: gpio.Pin(hw.RelayPin),
	})

	mux := actuator.Mux{
		actuator.MotionLED: outputs,
		actuator.ClearLED:  outputs,
		actuator.BadgeLED:  outputs,
		actuator.AlertLED:  outputs,
		actuator.RoomLight: outputs,
	}

	if hw.LCDPort == "" {
		logger.Warn(ctx, "No LCD port configured, display messages are only logged")

		mux[actuator.Display] = sim.NewDevices(logger.WithName(ctx, "display"))
	} else {
		port, openErr := serialdev.OpenPort(hw.LCDPort, hw.LCDBaud)
		if openErr != nil {
			return r, fmt.Errorf("open lcd: %w", openErr)
		}

		lcd := serialdev.NewLCD(port)
		r.closers = append(r.closers, lcd)
		mux[actuator.Display] = lcd
	}

	r.driver = mux
	r.motion = gpio.NewHCSR04(gpio.Pin(hw.MotionTriggerPin), gpio.Pin(hw.MotionEchoPin), hw.CMPerSecond)
	r.intruder = gpio.NewHCSR04(gpio.Pin(hw.IntruderTriggerPin), gpio.Pin(hw.IntruderEchoPin), hw.CMPerSecond)
	r.presses = gpio.NewButton(gpio.Pin(hw.ButtonPin), cfg.Button.Debounce, 0).Presses

	if hw.RFIDPort == "" {
		logger.Warn(ctx, "No RFID port configured, badge presence is disabled")

		return r, nil
	}

	port, err := serialdev.OpenPort(hw.RFIDPort, hw.RFIDBaud)
	if err != nil {
		return r, fmt.Errorf("open rfid reader: %w", err)
	}

	reader, err := serialdev.NewRDM6300(port, func(frameErr error) {
		logger.WarnKV(ctx, "Malformed RFID frame", "error", frameErr)
	})
	if err != nil {
		_ = port.Close()

		return r, fmt.Errorf("open rfid reader: %w", err)
	}

	r.closers = append(r.closers, reader)
	r.badges = reader

	logger.InfoKV(ctx, "GPIO hardware ready", "lcd_port", hw.LCDPort, "rfid_port", hw.RFIDPort)

	return r, nil
}

// close releases every device in reverse order of opening.
func (r *rig) close() error {
	var errs []error

	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	r.closers = nil

	return errors.Join(errs...)
}
