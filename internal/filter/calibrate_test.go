package filter

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/homee/internal/domain/home"
)

// scriptedSource replays distances; NaN-free negative values stand for timeouts.
type scriptedSource struct {
	values []float64
	calls  int
}

// Sample returns the next scripted reading, repeating the last one when exhausted.
func (s *scriptedSource) Sample(context.Context) home.RawSample {
	idx := min(s.calls, len(s.values)-1)
	s.calls++

	v := s.values[idx]
	if v < 0 {
		return home.Missing(time.Now())
	}

	return home.Sample(v, time.Now())
}

// TestCalibrator_ConstantStream checks that a constant input V yields exactly V.
func TestCalibrator_ConstantStream(t *testing.T) {
	t.Parallel()

	c := &Calibrator{Window: 50, Count: 50, MaxAttempts: 500}
	src := &scriptedSource{values: []float64{123.4}}

	res, err := c.Run(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 123.4, res.Baseline)
	require.InDelta(t, 0, res.StdDev, 1e-9)
	require.Equal(t, 99, res.Attempts)
}

// TestCalibrator_SkipsMissing ensures timeouts consume attempts but not filtered slots.
func TestCalibrator_SkipsMissing(t *testing.T) {
	t.Parallel()

	c := &Calibrator{Window: 3, Count: 3, MaxAttempts: 20}
	src := &scriptedSource{values: []float64{100, -1, 100, -1, 100, 100, 100}}

	res, err := c.Run(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 100.0, res.Baseline)
	require.Equal(t, 7, res.Attempts)
}

// TestCalibrator_InsufficientSamples guards against a permanently failing sensor.
func TestCalibrator_InsufficientSamples(t *testing.T) {
	t.Parallel()

	c := &Calibrator{Window: 5, Count: 5, MaxAttempts: 30}
	src := &scriptedSource{values: []float64{-1}}

	res, err := c.Run(context.Background(), src)
	require.ErrorIs(t, err, ErrInsufficientSamples)
	require.Nil(t, res)
	require.Equal(t, 30, src.calls)
}

// TestCalibrator_RespectsInterval uses a fake clock to check pacing and cancellation.
func TestCalibrator_RespectsInterval(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := &Calibrator{Window: 1, Count: 3, Interval: 50 * time.Millisecond}
		src := &scriptedSource{values: []float64{10, 20, 30}}

		start := time.Now()
		res, err := c.Run(context.Background(), src)
		require.NoError(t, err)
		require.Equal(t, 20.0, res.Baseline)
		require.Equal(t, 100*time.Millisecond, time.Since(start))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = c.Run(ctx, src)
		require.ErrorIs(t, err, context.Canceled)
	})
}

// TestBaseline covers the pure batch median.
func TestBaseline(t *testing.T) {
	t.Parallel()

	_, err := Baseline(nil)
	require.ErrorIs(t, err, ErrInsufficientSamples)

	in := []float64{4, 1, 3, 2}
	got, err := Baseline(in)
	require.NoError(t, err)
	require.Equal(t, 2.5, got)
	require.Equal(t, []float64{4, 1, 3, 2}, in)
}
