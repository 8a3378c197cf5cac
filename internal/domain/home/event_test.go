package home

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestNewEvent_CopiesPayload verifies the event does not share the caller's payload map.
func TestNewEvent_CopiesPayload(t *testing.T) {
	t.Parallel()

	payload := map[string]string{"uid": "AABBCC"}
	ev := NewEvent(EventBadgeIn, "badge", time.Unix(10, 0), payload)

	payload["uid"] = "changed"

	require.Equal(t, "AABBCC", ev.Payload["uid"])
	require.NotEmpty(t, ev.ID)
	require.Equal(t, EventBadgeIn, ev.Kind)
}

// TestEvent_Detail checks deterministic key ordering.
func TestEvent_Detail(t *testing.T) {
	t.Parallel()

	ev := NewEvent(EventMotionStart, "motion", time.Unix(10, 0), map[string]string{
		"distance_cm": "80.0",
		"delta_cm":    "20.0",
	})

	require.Equal(t, "delta_cm=20.0 distance_cm=80.0", ev.Detail())
	require.Empty(t, NewEvent(EventMotionEnd, "motion", time.Unix(0, 0), nil).Detail())
}

// TestAlarmStatus reports alerting only while a deadline is set.
func TestAlarmStatus(t *testing.T) {
	t.Parallel()

	require.False(t, AlarmStatus{}.Alerting())
	require.Equal(t, "clear", AlarmStatus{}.String())

	a := AlarmStatus{Deadline: time.Unix(5, 0)}
	require.True(t, a.Alerting())
	require.Equal(t, "alerting", a.String())
	require.Equal(t, "active", MotionActive.String())
	require.Equal(t, "idle", MotionIdle.String())
}
