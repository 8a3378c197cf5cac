package sensor

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/homee/internal/domain/home"
)

var errTestEcho = errors.New("echo timeout")

// scriptedRanger replays readings, failing where errs is set. The last entry repeats.
type scriptedRanger struct {
	readings []float64
	errs     []bool
	calls    int
}

func (r *scriptedRanger) Measure(ctx context.Context) (float64, error) {
	i := min(r.calls, len(r.readings)-1)
	r.calls++

	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("missing deadline")
	}

	if r.errs != nil && r.errs[i] {
		return 0, errTestEcho
	}

	return r.readings[i], nil
}

// memorySink records emitted events.
type memorySink struct {
	mu     sync.Mutex
	events []home.Event
}

func (s *memorySink) Emit(ev home.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, ev)
}

// TestSampler_ValidatesRange treats negative, NaN and too-large values as missing.
func TestSampler_ValidatesRange(t *testing.T) {
	t.Parallel()

	r := &scriptedRanger{readings: []float64{120, -3, math.NaN(), 5000, 0, 399.9}}
	s := NewSampler(r, Options{Name: "motion", DegradedAfter: 10}, nil, nil)
	ctx := context.Background()

	want := []bool{true, false, false, false, false, true}
	for i, ok := range want {
		got := s.Sample(ctx)
		require.Equal(t, ok, got.Valid, "reading %d", i)
		require.False(t, got.At.IsZero())
	}

	require.Zero(t, s.ConsecutiveFailures())
}

// TestSampler_DegradedOncePerStreak checks the degraded event is emitted once
// per streak and re-armed after recovery.
func TestSampler_DegradedOncePerStreak(t *testing.T) {
	t.Parallel()

	r := &scriptedRanger{
		readings: []float64{0, 0, 0, 0, 0, 100, 0, 0, 0},
		errs:     []bool{true, true, true, true, true, false, true, true, true},
	}
	sink := new(memorySink)
	s := NewSampler(r, Options{Name: "intruder"}, sink, nil)
	ctx := context.Background()

	for range 5 {
		require.False(t, s.Sample(ctx).Valid)
	}

	require.Len(t, sink.events, 1)
	require.Equal(t, home.EventSensorDegraded, sink.events[0].Kind)
	require.Equal(t, "intruder", sink.events[0].Source)
	require.Equal(t, "3", sink.events[0].Payload["failures"])
	require.Equal(t, 5, s.ConsecutiveFailures())

	require.True(t, s.Sample(ctx).Valid)
	require.Zero(t, s.ConsecutiveFailures())

	for range 3 {
		require.False(t, s.Sample(ctx).Valid)
	}

	require.Len(t, sink.events, 2)
}
