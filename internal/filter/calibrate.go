package filter

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/oshokin/homee/internal/domain/home"
	"github.com/oshokin/homee/internal/logger"
)

// ErrInsufficientSamples is returned when calibration could not collect enough
// filtered samples within its attempt budget.
var ErrInsufficientSamples = errors.New("insufficient samples for calibration")

// SampleSource yields raw samples, one per call.
type SampleSource interface {
	Sample(ctx context.Context) home.RawSample
}

// Calibration is the outcome of a calibration run.
type Calibration struct {
	// Baseline is the median of the collected filtered samples.
	Baseline float64
	// Mean and StdDev describe the spread of the filtered samples.
	Mean   float64
	StdDev float64
	// Attempts is the number of raw samples consumed.
	Attempts int
}

// Calibrator measures the empty-scene distance.
type Calibrator struct {
	// Window is the size of the calibration median window.
	Window int
	// Count is the number of filtered samples the baseline is computed from.
	Count int
	// MaxAttempts bounds the raw samples taken before giving up.
	MaxAttempts int
	// Interval is the pause between raw samples.
	Interval time.Duration
}

// Run pulls raw samples from src until Count filtered samples were collected and
// returns their median. It fails with ErrInsufficientSamples when MaxAttempts raw
// samples pass first, and with the context error when ctx is canceled.
func (c *Calibrator) Run(ctx context.Context, src SampleSource) (*Calibration, error) {
	var (
		count    = max(c.Count, 1)
		filter   = NewMedian(c.Window)
		filtered = make([]float64, 0, count)
		attempts int
	)

	for len(filtered) < count {
		if c.MaxAttempts > 0 && attempts >= c.MaxAttempts {
			return nil, fmt.Errorf("%w: got %d of %d after %d attempts",
				ErrInsufficientSamples, len(filtered), count, attempts)
		}

		if attempts > 0 && c.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.Interval):
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw := src.Sample(ctx)
		attempts++

		if d, ok := filter.Push(raw); ok && raw.Valid {
			filtered = append(filtered, d)
		}
	}

	baseline, err := Baseline(filtered)
	if err != nil {
		return nil, err
	}

	mean, stdDev := stat.MeanStdDev(filtered, nil)
	if len(filtered) < 2 {
		stdDev = 0
	}

	logger.DebugKV(ctx, "Calibration samples collected", "count", len(filtered), "attempts", attempts)

	return &Calibration{
		Baseline: baseline,
		Mean:     mean,
		StdDev:   stdDev,
		Attempts: attempts,
	}, nil
}

// Baseline returns the median of samples.
func Baseline(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrInsufficientSamples
	}

	return medianInPlace(slices.Clone(samples)), nil
}
