package motion

import (
	"context"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/homee/internal/actuator"
	"github.com/oshokin/homee/internal/domain/home"
	"github.com/oshokin/homee/internal/logger"
	"github.com/oshokin/homee/internal/metrics"
	"github.com/oshokin/homee/internal/repository/events"
)

// Source tags the events emitted by the machine.
const Source = "motion"

const (
	// DefaultThreshold is the baseline deviation, in centimetres, that counts as motion.
	DefaultThreshold = 15.0
	// DefaultGrace keeps the light on after the last motion.
	DefaultGrace = 5 * time.Second
)

// Light-off reasons carried in LightOff payloads.
const (
	reasonGrace    = "grace"
	reasonDisabled = "disabled"
	reasonShutdown = "shutdown"
)

// Options configures a Machine.
type Options struct {
	// Threshold is the deviation from the baseline, in centimetres, that counts as motion.
	Threshold float64
	// Grace keeps the light on after motion ends.
	Grace time.Duration
	// LightEnabled is the initial light-system flag.
	LightEnabled bool
}

// Machine is the motion state machine. It is safe for concurrent use by the
// sampling loop, the watcher, the light-switch owner and status readers.
type Machine struct {
	arbiter   *actuator.Arbiter
	sink      events.Sink
	metrics   *metrics.Manager
	threshold float64
	grace     time.Duration

	// lightEnabled has a single writer, the light-switch owner.
	lightEnabled atomic.Bool

	mu           sync.Mutex
	phase        home.Phase
	baseline     float64
	state        home.MotionState
	activeSince  time.Time
	lastMotionAt time.Time
	lightOn      bool
	distance     float64
	delta        float64
	hasDistance  bool
}

// NewMachine creates a machine in the calibrating phase. m may be nil.
func NewMachine(arbiter *actuator.Arbiter, sink events.Sink, m *metrics.Manager, opts Options) *Machine {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}

	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}

	machine := &Machine{
		arbiter:   arbiter,
		sink:      sink,
		metrics:   m,
		threshold: opts.Threshold,
		grace:     opts.Grace,
		phase:     home.PhaseCalibrating,
	}

	machine.lightEnabled.Store(opts.LightEnabled)
	m.SetLightEnabled(opts.LightEnabled)

	return machine
}

// Start fixes the baseline, enters the running phase and shows the idle indicators.
func (m *Machine) Start(ctx context.Context, baseline float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.baseline = baseline
	m.phase = home.PhaseRunning
	m.state = home.MotionIdle
	m.showIndicators(ctx)

	logger.InfoKV(ctx, "Motion detection started",
		"baseline_cm", baseline, "threshold_cm", m.threshold, "grace", m.grace)
}

// Fail marks startup calibration as failed.
func (m *Machine) Fail() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = home.PhaseCalibrationFailed
}

// Observe feeds one filtered distance taken at at.
func (m *Machine) Observe(ctx context.Context, distance float64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.distance = distance
	m.delta = math.Abs(distance - m.baseline)
	m.hasDistance = true

	if m.delta > m.threshold {
		m.lastMotionAt = at

		if m.state == home.MotionActive {
			return
		}

		m.state = home.MotionActive
		m.activeSince = at
		m.metrics.SetMotionActive(true)

		logger.InfoKV(ctx, "Motion started", "distance_cm", distance, "delta_cm", m.delta)

		m.emit(home.EventMotionStart, at, map[string]string{
			"distance_cm": formatCM(distance),
			"delta_cm":    formatCM(m.delta),
			"baseline_cm": formatCM(m.baseline),
		})

		m.showIndicators(ctx)

		if m.lightEnabled.Load() && !m.lightOn {
			m.switchLight(ctx, true, at, "motion")
		}

		return
	}

	if m.state == home.MotionActive {
		m.endMotion(ctx, at)
	}
}

// CheckGrace switches the light off once the grace period after the end of
// the last motion has elapsed.
func (m *Machine) CheckGrace(ctx context.Context, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lightOn || !m.lightEnabled.Load() || m.state == home.MotionActive {
		return
	}

	if now.Sub(m.lastMotionAt) >= m.grace {
		m.switchLight(ctx, false, now, reasonGrace)
	}
}

// SetLightEnabled switches the light system. Disabling forces the light off
// at once. Enabling never turns the light on by itself: the next motion does.
// Only the light-switch owner may call it.
func (m *Machine) SetLightEnabled(ctx context.Context, enabled bool) {
	m.lightEnabled.Store(enabled)
	m.metrics.SetLightEnabled(enabled)

	if enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lightOn {
		m.switchLight(ctx, false, time.Now(), reasonDisabled)
	}
}

// LightEnabled reports the light-system flag.
func (m *Machine) LightEnabled() bool {
	return m.lightEnabled.Load()
}

// Shutdown ends an open motion block and switches the light off.
func (m *Machine) Shutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	if m.state == home.MotionActive {
		m.endMotion(ctx, now)
	}

	if m.lightOn {
		m.switchLight(ctx, false, now, reasonShutdown)
	}

	if m.phase == home.PhaseRunning {
		m.phase = home.PhaseStopped
	}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() home.MotionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return home.MotionStatus{
		Phase:        m.phase,
		State:        m.state,
		Baseline:     m.baseline,
		Distance:     m.distance,
		Delta:        m.delta,
		HasDistance:  m.hasDistance,
		LastMotionAt: m.lastMotionAt,
		LightOn:      m.lightOn,
		LightEnabled: m.lightEnabled.Load(),
	}
}

func (m *Machine) endMotion(ctx context.Context, at time.Time) {
	duration := at.Sub(m.activeSince)

	// The grace period runs from the idle edge.
	m.lastMotionAt = at
	m.state = home.MotionIdle
	m.metrics.SetMotionActive(false)

	logger.InfoKV(ctx, "Motion ended", "duration", duration)

	m.emit(home.EventMotionEnd, at, map[string]string{
		"duration_s": strconv.FormatFloat(duration.Seconds(), 'f', 1, 64),
	})

	m.showIndicators(ctx)
}

// showIndicators mirrors the state on the status LEDs: red while active, green while idle.
func (m *Machine) showIndicators(ctx context.Context) {
	active := m.state == home.MotionActive

	_ = m.arbiter.WithExclusiveAccess(ctx, actuator.GroupStatusLEDs, func(d *actuator.Devices) error {
		if active {
			d.On(actuator.MotionLED)
			d.Off(actuator.ClearLED)
		} else {
			d.Off(actuator.MotionLED)
			d.On(actuator.ClearLED)
		}

		return nil
	})
}

func (m *Machine) switchLight(ctx context.Context, on bool, at time.Time, reason string) {
	_ = m.arbiter.WithExclusiveAccess(ctx, actuator.GroupRoomLight, func(d *actuator.Devices) error {
		if on {
			d.On(actuator.RoomLight)
		} else {
			d.Off(actuator.RoomLight)
		}

		return nil
	})

	m.lightOn = on
	m.metrics.SetLightOn(on)

	kind := home.EventLightOff
	if on {
		kind = home.EventLightOn
	}

	logger.InfoKV(ctx, "Room light switched", "on", on, "reason", reason)

	m.emit(kind, at, map[string]string{"reason": reason})
}

func (m *Machine) emit(kind home.EventKind, at time.Time, payload map[string]string) {
	if m.sink != nil {
		m.sink.Emit(home.NewEvent(kind, Source, at, payload))
	}
}

func formatCM(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
