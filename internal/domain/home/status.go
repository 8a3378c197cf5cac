package home

import (
	"math"
	"time"
)

// Status is what the status surfaces show: the dashboard and the control API.
type Status struct {
	Motion       MotionStatus
	Alarm        AlarmStatus
	LastBadgeUID string
}

// Map flattens the status into JSON-friendly values. Unknown values are nil.
func (s Status) Map() map[string]any {
	m := s.Motion

	fields := map[string]any{
		"phase":          string(m.Phase),
		"motion":         m.State.String(),
		"baseline_cm":    nil,
		"distance_cm":    nil,
		"delta_cm":       nil,
		"light_on":       m.LightOn,
		"light_enabled":  m.LightEnabled,
		"alarm":          s.Alarm.String(),
		"last_badge_uid": nil,
		"last_motion_at": nil,
	}

	if m.Phase != PhaseCalibrating && m.Phase != PhaseCalibrationFailed {
		fields["baseline_cm"] = round1(m.Baseline)
	}

	if m.HasDistance {
		fields["distance_cm"] = round1(m.Distance)
		fields["delta_cm"] = round1(m.Delta)
	}

	if s.LastBadgeUID != "" {
		fields["last_badge_uid"] = s.LastBadgeUID
	}

	if !m.LastMotionAt.IsZero() {
		fields["last_motion_at"] = m.LastMotionAt.UTC().Format(time.RFC3339)
	}

	return fields
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
