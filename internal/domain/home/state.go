package home

import "time"

// MotionState is the phase of the motion state machine.
type MotionState int

const (
	// MotionIdle means the live distance is within threshold of the baseline.
	MotionIdle MotionState = iota
	// MotionActive means the live distance deviates from the baseline beyond the threshold.
	MotionActive
)

// String implements fmt.Stringer.
func (s MotionState) String() string {
	if s == MotionActive {
		return "active"
	}

	return "idle"
}

// Phase describes the lifecycle of the motion engine as shown on status surfaces.
type Phase string

const (
	// PhaseCalibrating is reported while the baseline is being measured.
	PhaseCalibrating Phase = "calibrating"
	// PhaseRunning is reported once steady-state sensing started.
	PhaseRunning Phase = "running"
	// PhaseCalibrationFailed is reported when startup calibration gave up.
	PhaseCalibrationFailed Phase = "calibration_failed"
	// PhaseStopped is reported after shutdown.
	PhaseStopped Phase = "stopped"
)

// MotionStatus is a point-in-time copy of the motion engine state.
type MotionStatus struct {
	Phase        Phase
	State        MotionState
	Baseline     float64
	Distance     float64
	Delta        float64
	HasDistance  bool
	LastMotionAt time.Time
	LightOn      bool
	LightEnabled bool
}

// AlarmStatus is the intruder loop state: Clear when Deadline is zero,
// Alerting until Deadline otherwise.
type AlarmStatus struct {
	Deadline time.Time
}

// Alerting reports whether an alert flash is in progress.
func (a AlarmStatus) Alerting() bool {
	return !a.Deadline.IsZero()
}

// String implements fmt.Stringer.
func (a AlarmStatus) String() string {
	if a.Alerting() {
		return "alerting"
	}

	return "clear"
}

// ControlState is the process-wide toggle state that survives restarts.
type ControlState struct {
	// LightEnabled is the room light system switch.
	LightEnabled bool
	// LastBadgeUID is the UID of the badge currently checked in, empty when nobody is.
	LastBadgeUID string
	// UpdatedAt is when either field last changed.
	UpdatedAt time.Time
}

// DefaultControlState is used when no state was persisted yet.
func DefaultControlState() ControlState {
	return ControlState{LightEnabled: true}
}
