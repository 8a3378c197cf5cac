package gpio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// DefaultCMPerSecond is half the speed of sound in cm/s: the echo covers the distance twice.
const DefaultCMPerSecond = 17150.0

const (
	triggerPulse = 10 * time.Microsecond
	settleTime   = 2 * time.Microsecond
)

var (
	errEchoStart = errors.New("echo did not start")
	errEchoEnd   = errors.New("echo did not end")
)

// HCSR04 is an ultrasonic ranger with separate trigger and echo pins.
// It busy-waits on the echo pin, so callers must pass a context with a deadline.
type HCSR04 struct {
	trigger     Line
	echo        Line
	cmPerSecond float64
}

// NewHCSR04 configures the pins. A non-positive cmPerSecond uses DefaultCMPerSecond.
func NewHCSR04(trigger, echo Line, cmPerSecond float64) *HCSR04 {
	if cmPerSecond <= 0 {
		cmPerSecond = DefaultCMPerSecond
	}

	trigger.Output()
	trigger.Low()
	echo.Input()

	return &HCSR04{
		trigger:     trigger,
		echo:        echo,
		cmPerSecond: cmPerSecond,
	}
}

// Measure sends one trigger pulse and times the echo.
func (r *HCSR04) Measure(ctx context.Context) (float64, error) {
	r.trigger.Low()
	spin(settleTime)
	r.trigger.High()
	spin(triggerPulse)
	r.trigger.Low()

	start, err := r.waitFor(ctx, rpio.High, errEchoStart)
	if err != nil {
		return 0, err
	}

	end, err := r.waitFor(ctx, rpio.Low, errEchoEnd)
	if err != nil {
		return 0, err
	}

	return DistanceCM(end.Sub(start), r.cmPerSecond), nil
}

// DistanceCM converts an echo duration to centimetres.
func DistanceCM(echo time.Duration, cmPerSecond float64) float64 {
	return echo.Seconds() * cmPerSecond
}

func (r *HCSR04) waitFor(ctx context.Context, state rpio.State, errTimeout error) (time.Time, error) {
	for r.echo.Read() != state {
		if ctx.Err() != nil {
			return time.Time{}, fmt.Errorf("%w: %w", errTimeout, ctx.Err())
		}
	}

	return time.Now(), nil
}

// spin waits for very short intervals that time.Sleep cannot honour.
func spin(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) { //nolint:revive // Busy wait.
	}
}
