package motion

import (
	"context"
	"time"

	"github.com/oshokin/homee/internal/filter"
	"github.com/oshokin/homee/internal/logger"
)

const (
	// DefaultCadence is the sampling period of the motion loop.
	DefaultCadence = 300 * time.Millisecond
	// DefaultWatchTick is the period of the light watcher.
	DefaultWatchTick = time.Second
)

// Run samples src every cadence, filters the readings through f and feeds the
// machine. It returns when ctx is done, between two samples.
func (m *Machine) Run(ctx context.Context, src filter.SampleSource, f *filter.Median, cadence time.Duration) error {
	if cadence <= 0 {
		cadence = DefaultCadence
	}

	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	for {
		sample := src.Sample(ctx)

		if value, ok := f.Push(sample); ok && sample.Valid {
			m.Observe(ctx, value, sample.At)
			m.logStatus(ctx)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Watch checks the grace period every tick until ctx is done.
func (m *Machine) Watch(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		tick = DefaultWatchTick
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			m.CheckGrace(ctx, now)
		}
	}
}

func (m *Machine) logStatus(ctx context.Context) {
	s := m.Snapshot()

	logger.DebugKV(ctx, "Status",
		"distance_cm", s.Distance,
		"delta_cm", s.Delta,
		"state", s.State,
		"light_on", s.LightOn,
		"light_enabled", s.LightEnabled)
}
